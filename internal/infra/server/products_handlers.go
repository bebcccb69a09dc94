package server

import (
	"strings"

	"github.com/dakino/household-service/internal/core/products"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type productBody struct {
	Name         string           `json:"name" validate:"required,max=200"`
	DefaultPrice *decimal.Decimal `json:"default_price"`
	UnitType     string           `json:"unit_type" validate:"omitempty,max=16"`
	Category     string           `json:"category" validate:"max=100"`
	Notes        string           `json:"notes" validate:"max=1000"`
}

func (h *handlers) listProducts(c *fiber.Ctx) error {
	householdID := householdIDFrom(c)

	var (
		list []*products.Product
		err  error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		list, err = h.Products.SearchProducts(c.UserContext(), householdID, q)
	} else {
		list, err = h.Products.ListProducts(c.UserContext(), householdID)
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"products": list})
}

func (h *handlers) createProduct(c *fiber.Ctx) error {
	var body productBody
	if err := parseBody(c, &body); err != nil {
		return err
	}

	product, err := h.Products.CreateProduct(c.UserContext(), products.CreateProductRequest{
		HouseholdID:  householdIDFrom(c),
		Name:         body.Name,
		DefaultPrice: body.DefaultPrice,
		UnitType:     body.UnitType,
		Category:     body.Category,
		Notes:        body.Notes,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *handlers) getProduct(c *fiber.Ctx) error {
	productID, err := uuidParam(c, "productID")
	if err != nil {
		return err
	}

	product, err := h.Products.GetProduct(c.UserContext(), householdIDFrom(c), productID)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *handlers) updateProduct(c *fiber.Ctx) error {
	productID, err := uuidParam(c, "productID")
	if err != nil {
		return err
	}

	var body productBody
	if err := parseBody(c, &body); err != nil {
		return err
	}

	product, err := h.Products.UpdateProduct(c.UserContext(), products.UpdateProductRequest{
		ID:           productID,
		HouseholdID:  householdIDFrom(c),
		Name:         body.Name,
		DefaultPrice: body.DefaultPrice,
		UnitType:     body.UnitType,
		Category:     body.Category,
		Notes:        body.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *handlers) deleteProduct(c *fiber.Ctx) error {
	productID, err := uuidParam(c, "productID")
	if err != nil {
		return err
	}

	if err := h.Products.DeleteProduct(c.UserContext(), householdIDFrom(c), productID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
