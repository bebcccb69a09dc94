package server

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	localUserID      = "user_id"
	localHouseholdID = "household_id"
)

var jwtSigningMethod = jwt.SigningMethodHS256

var errAuthNotConfigured = errors.New("auth secret is not configured")

// parseUserToken validates an access token issued by the auth provider and
// returns the user id carried in its sub claim.
func parseUserToken(secret, audience, tokenString string) (uuid.UUID, error) {
	if secret == "" {
		return uuid.Nil, errAuthNotConfigured
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		opts...,
	)
	if err != nil {
		return uuid.Nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid sub claim: %w", err)
	}
	return userID, nil
}

func requireAuth(secret, audience string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := parseUserToken(secret, audience, strings.TrimSpace(token))
		if err != nil {
			logger.Debug("Rejected bearer token", "error", err, "path", c.Path())
			return fiber.NewError(fiber.StatusUnauthorized, "invalid bearer token")
		}

		c.Locals(localUserID, userID)
		return c.Next()
	}
}

// requireMembership resolves :householdID and lets only its members through
func requireMembership(households HouseholdService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		householdID, err := uuid.Parse(c.Params("householdID"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid household id")
		}

		member, err := households.IsMember(c.UserContext(), householdID, userIDFrom(c))
		if err != nil {
			return err
		}
		if !member {
			return fiber.NewError(fiber.StatusForbidden, "you are not a member of this household")
		}

		c.Locals(localHouseholdID, householdID)
		return c.Next()
	}
}

func userIDFrom(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(localUserID).(uuid.UUID)
	return id
}

func householdIDFrom(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(localHouseholdID).(uuid.UUID)
	return id
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}
