package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dakino/household-service/internal/core/ai"
	"github.com/dakino/household-service/internal/core/cloud"
	"github.com/dakino/household-service/internal/core/households"
	"github.com/dakino/household-service/internal/core/inventory"
	"github.com/dakino/household-service/internal/core/products"
	"github.com/dakino/household-service/internal/core/purchases"
	"github.com/dakino/household-service/internal/core/tickets"
	"github.com/dakino/household-service/pkg/telemetry"
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{products.ErrProductNotFound, fiber.StatusNotFound},
	{inventory.ErrProductNotFound, fiber.StatusNotFound},
	{households.ErrHouseholdNotFound, fiber.StatusNotFound},
	{households.ErrMemberNotFound, fiber.StatusNotFound},
	{purchases.ErrPurchaseNotFound, fiber.StatusNotFound},
	{cloud.ErrFileNotFound, fiber.StatusNotFound},

	{products.ErrDuplicateProduct, fiber.StatusConflict},
	{households.ErrAlreadyMember, fiber.StatusConflict},

	{households.ErrNotOwner, fiber.StatusForbidden},
	{households.ErrOwnerCannotLeave, fiber.StatusForbidden},

	{households.ErrInvalidInviteCode, fiber.StatusBadRequest},
	{households.ErrInvalidName, fiber.StatusBadRequest},
	{products.ErrInvalidUnitType, fiber.StatusBadRequest},
	{products.ErrInvalidName, fiber.StatusBadRequest},
	{products.ErrNegativePrice, fiber.StatusBadRequest},
	{purchases.ErrInvalidQuantity, fiber.StatusBadRequest},
	{purchases.ErrNegativeAmount, fiber.StatusBadRequest},
	{purchases.ErrEmptyCommit, fiber.StatusBadRequest},
	{purchases.ErrMissingName, fiber.StatusBadRequest},
	{purchases.ErrInvalidRange, fiber.StatusBadRequest},
	{inventory.ErrNegativeQuantity, fiber.StatusBadRequest},
	{tickets.ErrEmptyImage, fiber.StatusBadRequest},
	{cloud.ErrInvalidFileID, fiber.StatusBadRequest},

	{tickets.ErrUnsupportedImage, fiber.StatusUnsupportedMediaType},

	{cloud.ErrArchiveDisabled, fiber.StatusNotImplemented},

	{context.DeadlineExceeded, fiber.StatusGatewayTimeout},
}

// errorStatus maps domain errors to HTTP statuses, 500 when unknown
func errorStatus(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return fiber.StatusBadRequest
	}

	var visionErr *ai.VisionError
	if errors.As(err, &visionErr) {
		switch visionErr.Code {
		case ai.ErrCodeRateLimited, ai.ErrCodeNotConfigured:
			return fiber.StatusServiceUnavailable
		default:
			return fiber.StatusBadGateway
		}
	}

	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return fiber.StatusInternalServerError
}

func newErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := errorStatus(err)

		body := fiber.Map{"error": err.Error()}
		var ve *ValidationError
		if errors.As(err, &ve) {
			body["fields"] = ve.Fields
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("Request failed",
				"component", "http_handler",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"error", err)
			telemetry.ApplicationErrorsTotal.Add(c.UserContext(), 1,
				metric.WithAttributes(
					attribute.String("component", "http"),
					attribute.Int("status_code", status),
				))
			if status == fiber.StatusInternalServerError {
				body["error"] = "internal server error"
			}
		}

		return c.Status(status).JSON(body)
	}
}
