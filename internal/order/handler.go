package order

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/storefront-admin/internal/apperr"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Post("/api/v1/orders", h.createOrder)
	app.Get("/api/v1/orders", h.listOrders)
	app.Get("/api/v1/orders/:id", h.getOrder)
	app.Put("/api/v1/orders/:id", h.updateOrder)
	app.Delete("/api/v1/orders/:id", h.deleteOrder)
	app.Post("/api/v1/orders/:id/cancel", h.cancelOrder)
	app.Post("/api/v1/orders/:id/otp", h.generateOTP)
	app.Post("/api/v1/orders/:id/verify-otp", h.verifyOTP)
	app.Post("/api/v1/orders/:id/confirm-delivery", h.confirmDelivery)
}

type otpRequest struct {
	OTP string `json:"otp"`
}

func (h *Handler) createOrder(c *fiber.Ctx) error {
	payload := new(CreateRequest)
	if err := c.BodyParser(payload); err != nil {
		return badBody(c, err)
	}
	o, err := h.service.Create(c.UserContext(), *payload)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "orderId": o.ID, "order": o})
}

func (h *Handler) listOrders(c *fiber.Ctx) error {
	filter, err := NewListFilter(c.Query("status"), c.Query("paymentMethod"), c.Query("deliveryStatus"))
	if err != nil {
		return fail(c, err)
	}
	orders, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	o, err := h.service.View(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) updateOrder(c *fiber.Ctx) error {
	payload := new(UpdateRequest)
	if err := c.BodyParser(payload); err != nil {
		return badBody(c, err)
	}
	o, err := h.service.Update(c.UserContext(), c.Params("id"), *payload)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "order": o})
}

func (h *Handler) deleteOrder(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) cancelOrder(c *fiber.Ctx) error {
	o, err := h.service.Cancel(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Order cancelled", "order": o})
}

func (h *Handler) generateOTP(c *fiber.Ctx) error {
	code, err := h.service.GenerateOTP(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if code == "" {
		return c.JSON(fiber.Map{"otp": nil})
	}
	return c.JSON(fiber.Map{"otp": code})
}

func (h *Handler) verifyOTP(c *fiber.Ctx) error {
	payload := new(otpRequest)
	if err := c.BodyParser(payload); err != nil {
		return badBody(c, err)
	}
	res, err := h.service.VerifyOTP(c.UserContext(), c.Params("id"), payload.OTP)
	if err != nil {
		return fail(c, err)
	}
	if !res.Success {
		return c.Status(fiber.StatusBadRequest).JSON(res)
	}
	return c.JSON(res)
}

func (h *Handler) confirmDelivery(c *fiber.Ctx) error {
	payload := new(otpRequest)
	if err := c.BodyParser(payload); err != nil {
		return badBody(c, err)
	}
	o, err := h.service.ConfirmDelivery(c.UserContext(), c.Params("id"), payload.OTP)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Delivery confirmed", "order": o})
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(apperr.HTTPStatus(err)).JSON(apperr.BodyOf(err))
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(apperr.Body{Message: err.Error(), Code: apperr.InvalidArgument})
}
