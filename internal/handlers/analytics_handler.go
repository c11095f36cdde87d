package handlers

import (
	"pharmahub/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// HandleGetAnalytics returns order analytics over the caller's scope.
func (h *OrderHandler) HandleGetAnalytics(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)
	analytics, err := h.analytics.GetOrderAnalytics(c.UserContext(), identity)
	if err != nil {
		return respondError(c, h.logger, "Could not compute order analytics", err)
	}
	return c.JSON(analytics)
}

// HandleTopSelling returns a vendor's best-selling medications.
func (h *OrderHandler) HandleTopSelling(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)
	rows, err := h.analytics.TopSellingMedications(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not compute top-selling medications", err)
	}
	return c.JSON(rows)
}
