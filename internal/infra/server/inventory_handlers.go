package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// inventoryPatchBody carries either a relative delta or an absolute quantity
type inventoryPatchBody struct {
	Delta    *decimal.Decimal `json:"delta" validate:"required_without=Quantity"`
	Quantity *decimal.Decimal `json:"quantity" validate:"required_without=Delta,excluded_with=Delta"`
}

func (h *handlers) listInventory(c *fiber.Ctx) error {
	items, err := h.Inventory.ListInventory(c.UserContext(), householdIDFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *handlers) patchInventory(c *fiber.Ctx) error {
	productID, err := uuidParam(c, "productID")
	if err != nil {
		return err
	}

	var body inventoryPatchBody
	if err := parseBody(c, &body); err != nil {
		return err
	}

	if body.Delta != nil {
		item, err := h.Inventory.Adjust(c.UserContext(), householdIDFrom(c), productID, *body.Delta)
		if err != nil {
			return err
		}
		return c.JSON(item)
	}

	item, err := h.Inventory.Set(c.UserContext(), householdIDFrom(c), productID, *body.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(item)
}
