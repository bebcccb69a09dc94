package households

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// inviteAlphabet leaves out 0, O, 1 and I so codes can be read aloud
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const inviteCodeLength = 8

func generateInviteCode() (string, error) {
	max := big.NewInt(int64(len(inviteAlphabet)))
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		code[i] = inviteAlphabet[n.Int64()]
	}
	return string(code), nil
}

// NormalizeInviteCode upper-cases and trims a user supplied code.
// It returns ErrInvalidInviteCode when the result cannot be a code we issued.
func NormalizeInviteCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != inviteCodeLength {
		return "", ErrInvalidInviteCode
	}
	for _, r := range code {
		if !strings.ContainsRune(inviteAlphabet, r) {
			return "", ErrInvalidInviteCode
		}
	}
	return code, nil
}
