package push

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/storefront-admin/internal/admin"
	"github.com/wichananm65/storefront-admin/internal/apperr"
)

type Handler struct {
	service  *Service
	apiToken string
}

// NewHandler takes the bearer token that guards the public broadcast
// route. An empty token disables that route.
func NewHandler(s *Service, apiToken string) *Handler {
	return &Handler{service: s, apiToken: apiToken}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Post("/api/v1/notifications/push-all", h.pushAll)
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Post("/api/v1/push/subscribe", h.subscribe)
	app.Post("/api/v1/push/unsubscribe", h.unsubscribe)
}

type subscribeRequest struct {
	UserID       string `json:"userId"`
	Subscription struct {
		Endpoint string `json:"endpoint"`
		Keys     Keys   `json:"keys"`
	} `json:"subscription"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *Handler) subscribe(c *fiber.Ctx) error {
	payload := new(subscribeRequest)
	if err := c.BodyParser(payload); err != nil {
		return badBody(c, err)
	}
	userID := payload.UserID
	if userID == "" {
		userID, _ = admin.IDFromCtx(c)
	}

	err := h.service.Subscribe(c.UserContext(), SubscribeRequest{
		UserID:   userID,
		Endpoint: payload.Subscription.Endpoint,
		Keys:     payload.Subscription.Keys,
		Browser:  payload.Browser,
		Device:   payload.Device,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Subscribed successfully"})
}

func (h *Handler) unsubscribe(c *fiber.Ctx) error {
	payload := new(unsubscribeRequest)
	if err := c.BodyParser(payload); err != nil {
		return badBody(c, err)
	}
	if err := h.service.Unsubscribe(c.UserContext(), payload.Endpoint); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Unsubscribed successfully"})
}

func (h *Handler) pushAll(c *fiber.Ctx) error {
	if !h.authorized(c.Get(fiber.HeaderAuthorization)) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	msg := new(Message)
	if err := c.BodyParser(msg); err != nil {
		return badBody(c, err)
	}
	res, err := h.service.SendToAllAdmins(c.UserContext(), *msg)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Notifications dispatched", "result": res})
}

func (h *Handler) authorized(header string) bool {
	if h.apiToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.apiToken)) == 1
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(apperr.HTTPStatus(err)).JSON(apperr.BodyOf(err))
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(apperr.Body{Message: err.Error(), Code: apperr.InvalidArgument})
}
