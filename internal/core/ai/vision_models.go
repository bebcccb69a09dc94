package ai

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// VisionTicket is the JSON document the vision model returns for a ticket photo.
// Every field may be missing or null; callers coerce it before use.
type VisionTicket struct {
	StoreName *string             `json:"store_name"`
	Date      *string             `json:"date"`
	Items     []VisionLineItem    `json:"items"`
	Total     decimal.NullDecimal `json:"total"`
}

type VisionLineItem struct {
	Name      *string             `json:"name"`
	Quantity  decimal.NullDecimal `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Total     decimal.NullDecimal `json:"total"`
}

// VisionClient extracts structured ticket data from a photo
type VisionClient interface {
	ExtractTicket(ctx context.Context, image []byte, contentType string) (*VisionTicket, error)
}

// VisionError represents an error returned by the vision model call
type VisionError struct {
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

func (e *VisionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *VisionError) Unwrap() error {
	return e.Cause
}

// Common vision error codes
const (
	ErrCodeInvalidResponse = "invalid_response"
	ErrCodeUpstream        = "upstream_error"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeNotConfigured   = "not_configured"
)

// NewVisionError creates a new VisionError
func NewVisionError(code, message string, cause error) *VisionError {
	return &VisionError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
