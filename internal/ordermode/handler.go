package ordermode

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/storefront-admin/internal/admin"
	"github.com/wichananm65/storefront-admin/internal/apperr"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Get("/api/v1/order-mode", h.getMode)
	app.Put("/api/v1/order-mode", h.updateMode)
}

type updateModeRequest struct {
	IsQuickActive     *bool `json:"isQuickActive"`
	IsScheduledActive *bool `json:"isScheduledActive"`
}

func (h *Handler) getMode(c *fiber.Ctx) error {
	m, err := h.service.Get(c.UserContext())
	if err != nil {
		return c.Status(apperr.HTTPStatus(err)).JSON(apperr.BodyOf(err))
	}
	return c.JSON(m)
}

func (h *Handler) updateMode(c *fiber.Ctx) error {
	payload := new(updateModeRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(apperr.Body{Message: err.Error(), Code: apperr.InvalidArgument})
	}

	// updatedBy is informational; an unidentified admin still may toggle
	adminID, _ := admin.IDFromCtx(c)

	m, err := h.service.Update(c.UserContext(), Patch{
		IsQuickActive:     payload.IsQuickActive,
		IsScheduledActive: payload.IsScheduledActive,
		UpdatedBy:         adminID,
	})
	if err != nil {
		return c.Status(apperr.HTTPStatus(err)).JSON(apperr.BodyOf(err))
	}
	return c.JSON(m)
}
