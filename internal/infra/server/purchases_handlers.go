package server

import (
	"bytes"
	"strconv"
	"time"

	"github.com/dakino/household-service/internal/core/purchases"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type createPurchaseBody struct {
	ProductID   uuid.UUID        `json:"product_id" validate:"required"`
	Quantity    *decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice   *decimal.Decimal `json:"unit_price" validate:"required"`
	Total       *decimal.Decimal `json:"total"`
	StoreName   string           `json:"store_name" validate:"max=200"`
	PurchasedAt string           `json:"purchased_at" validate:"omitempty,datetime=2006-01-02"`
}

// dateQuery parses an optional YYYY-MM-DD query parameter
func dateQuery(c *fiber.Ctx, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, name+" must be a date formatted as "+dateLayout)
	}
	return t, nil
}

func (h *handlers) listPurchasesInRange(c *fiber.Ctx) ([]*purchases.Purchase, error) {
	from, err := dateQuery(c, "from")
	if err != nil {
		return nil, err
	}
	to, err := dateQuery(c, "to")
	if err != nil {
		return nil, err
	}
	return h.Purchases.ListPurchases(c.UserContext(), householdIDFrom(c), from, to)
}

func (h *handlers) listPurchases(c *fiber.Ctx) error {
	list, err := h.listPurchasesInRange(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"purchases": list})
}

func (h *handlers) createPurchase(c *fiber.Ctx) error {
	var body createPurchaseBody
	if err := parseBody(c, &body); err != nil {
		return err
	}

	req := purchases.CreatePurchaseRequest{
		HouseholdID: householdIDFrom(c),
		ProductID:   body.ProductID,
		Quantity:    *body.Quantity,
		UnitPrice:   *body.UnitPrice,
		StoreName:   body.StoreName,
		CreatedBy:   userIDFrom(c),
	}
	if body.Total != nil {
		req.Total = *body.Total
	}
	if body.PurchasedAt != "" {
		req.PurchasedAt, _ = time.Parse(dateLayout, body.PurchasedAt)
	}

	purchase, err := h.Purchases.CreatePurchase(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(purchase)
}

func (h *handlers) deletePurchase(c *fiber.Ctx) error {
	purchaseID, err := uuidParam(c, "purchaseID")
	if err != nil {
		return err
	}

	if err := h.Purchases.DeletePurchase(c.UserContext(), householdIDFrom(c), purchaseID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) exportPurchases(c *fiber.Ctx) error {
	format := c.Query("format", "csv")
	if format != "csv" && format != "json" {
		return fiber.NewError(fiber.StatusBadRequest, "format must be csv or json")
	}

	list, err := h.listPurchasesInRange(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if format == "csv" {
		err = purchases.WriteCSV(&buf, list)
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	} else {
		err = purchases.WriteJSON(&buf, list)
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	}
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="purchases.`+format+`"`)
	return c.Send(buf.Bytes())
}

func (h *handlers) purchaseStats(c *fiber.Ctx) error {
	year := time.Now().Year()
	if raw := c.Query("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1970 || y > 9999 {
			return fiber.NewError(fiber.StatusBadRequest, "year must be a four digit year")
		}
		year = y
	}

	months, err := h.Purchases.MonthlySpending(c.UserContext(), householdIDFrom(c), year)
	if err != nil {
		return err
	}

	total := decimal.Zero
	count := 0
	for _, m := range months {
		total = total.Add(m.Total)
		count += m.Purchases
	}

	return c.JSON(fiber.Map{
		"year":      year,
		"months":    months,
		"total":     total,
		"purchases": count,
	})
}
