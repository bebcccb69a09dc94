package server

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dakino/household-service/internal/core/cloud"
	"github.com/dakino/household-service/internal/core/matching"
	"github.com/dakino/household-service/internal/core/purchases"
	"github.com/dakino/household-service/internal/core/tickets"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type commitLineBody struct {
	ProductID *uuid.UUID      `json:"product_id"`
	Name      string          `json:"name" validate:"max=200"`
	UnitType  string          `json:"unit_type" validate:"omitempty,max=16"`
	Category  string          `json:"category" validate:"max=100"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	Skip      bool            `json:"skip"`
}

type commitBody struct {
	ScanID      *uuid.UUID       `json:"scan_id"`
	StoreName   string           `json:"store_name" validate:"max=200"`
	PurchasedAt string           `json:"purchased_at" validate:"omitempty,datetime=2006-01-02"`
	Lines       []commitLineBody `json:"lines" validate:"required,min=1,dive"`
}

const ticketImageURLTTL = 15 * time.Minute

type ticketImage struct {
	*cloud.FileInfo
	DownloadURL string `json:"download_url"`
}

type uploadedImage struct {
	fileName    string
	contentType string
	data        []byte
}

// readImage reads the multipart "image" field of a scan request
func readImage(c *fiber.Ctx) (*uploadedImage, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "multipart field 'image' is required")
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(fh.Header.Get(fiber.HeaderContentType), ";", 2)[0]))
	if !tickets.IsSupportedContentType(contentType) {
		return nil, tickets.ErrUnsupportedImage
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded image: %w", err)
	}

	return &uploadedImage{fileName: fh.Filename, contentType: contentType, data: data}, nil
}

func (h *handlers) scanTicket(c *fiber.Ctx) error {
	img, err := readImage(c)
	if err != nil {
		return err
	}

	result, err := h.Tickets.Scan(c.UserContext(), tickets.ScanRequest{
		HouseholdID: householdIDFrom(c),
		UserID:      userIDFrom(c),
		FileName:    img.fileName,
		ContentType: img.contentType,
		Data:        img.data,
	})
	if err != nil {
		return err
	}

	return c.JSON(result)
}

func (h *handlers) analyzeTicket(c *fiber.Ctx) error {
	img, err := readImage(c)
	if err != nil {
		return err
	}

	ticket, err := h.Tickets.Analyze(c.UserContext(), img.data, img.contentType)
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

func (h *handlers) matchTicket(c *fiber.Ctx) error {
	var ticket matching.Ticket
	if err := c.BodyParser(&ticket); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid ticket body")
	}
	if ticket.Items == nil {
		ticket.Items = []matching.TicketLineItem{}
	}

	matched, err := h.Tickets.Match(c.UserContext(), householdIDFrom(c), ticket)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"ticket": matched, "stats": matched.Stats()})
}

func (h *handlers) commitTicket(c *fiber.Ctx) error {
	var body commitBody
	if err := parseBody(c, &body); err != nil {
		return err
	}

	var purchasedAt time.Time
	if body.PurchasedAt != "" {
		purchasedAt, _ = time.Parse(dateLayout, body.PurchasedAt)
	}

	lines := make([]purchases.CommitLine, len(body.Lines))
	for i, l := range body.Lines {
		lines[i] = purchases.CommitLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitType:  l.UnitType,
			Category:  l.Category,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Total:     l.Total,
			Skip:      l.Skip,
		}
	}

	result, err := h.Purchases.CommitTicket(c.UserContext(), purchases.CommitRequest{
		HouseholdID: householdIDFrom(c),
		UserID:      userIDFrom(c),
		ScanID:      body.ScanID,
		StoreName:   body.StoreName,
		PurchasedAt: purchasedAt,
		Lines:       lines,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *handlers) listTicketImages(c *fiber.Ctx) error {
	if h.Archive == nil {
		return cloud.ErrArchiveDisabled
	}

	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 200")
	}

	files, err := h.Archive.ListHouseholdTickets(c.UserContext(), householdIDFrom(c), limit)
	if err != nil {
		return err
	}

	images := make([]ticketImage, 0, len(files))
	for _, f := range files {
		url, err := h.Archive.GetTemporaryFileURL(c.UserContext(), f.FileID, ticketImageURLTTL)
		if err != nil {
			h.logger.Warn("Failed to presign ticket photo", "file_id", f.FileID, "error", err)
		}
		images = append(images, ticketImage{FileInfo: f, DownloadURL: url})
	}

	return c.JSON(fiber.Map{"images": images})
}

func (h *handlers) deleteTicketImage(c *fiber.Ctx) error {
	if h.Archive == nil {
		return cloud.ErrArchiveDisabled
	}

	fileID, err := cloud.TicketImageKey(householdIDFrom(c), c.Params("imageName"))
	if err != nil {
		return err
	}

	if _, err := h.Archive.GetFileInfo(c.UserContext(), fileID); err != nil {
		return err
	}
	if err := h.Archive.DeleteFile(c.UserContext(), fileID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
