package server

import (
	"github.com/dakino/household-service/internal/core/households"
	"github.com/gofiber/fiber/v2"
)

type createHouseholdBody struct {
	Name string `json:"name" validate:"required,max=100"`
}

type joinHouseholdBody struct {
	InviteCode string `json:"invite_code" validate:"required,max=16"`
}

func (h *handlers) createHousehold(c *fiber.Ctx) error {
	var body createHouseholdBody
	if err := parseBody(c, &body); err != nil {
		return err
	}

	household, err := h.Households.CreateHousehold(c.UserContext(), households.CreateHouseholdRequest{
		Name:      body.Name,
		CreatedBy: userIDFrom(c),
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(household)
}

func (h *handlers) listHouseholds(c *fiber.Ctx) error {
	list, err := h.Households.GetUserHouseholds(c.UserContext(), userIDFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"households": list})
}

func (h *handlers) getHousehold(c *fiber.Ctx) error {
	household, err := h.Households.GetHousehold(c.UserContext(), householdIDFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(household)
}

func (h *handlers) joinHousehold(c *fiber.Ctx) error {
	var body joinHouseholdBody
	if err := parseBody(c, &body); err != nil {
		return err
	}

	household, err := h.Households.JoinByInviteCode(c.UserContext(), body.InviteCode, userIDFrom(c))
	if err != nil {
		return err
	}

	h.logger.Info("User joined household",
		"household_id", household.ID,
		"user_id", userIDFrom(c))
	return c.JSON(household)
}

func (h *handlers) regenerateInviteCode(c *fiber.Ctx) error {
	code, err := h.Households.RegenerateInviteCode(c.UserContext(), householdIDFrom(c), userIDFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"invite_code": code})
}

func (h *handlers) removeMember(c *fiber.Ctx) error {
	memberID, err := uuidParam(c, "userID")
	if err != nil {
		return err
	}

	if err := h.Households.RemoveMember(c.UserContext(), householdIDFrom(c), memberID, userIDFrom(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
