package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/wichananm65/storefront-admin/internal/apperr"
	"github.com/wichananm65/storefront-admin/internal/dashboard"
	"github.com/wichananm65/storefront-admin/internal/order"
	"github.com/wichananm65/storefront-admin/internal/ordermode"
	"github.com/wichananm65/storefront-admin/internal/push"
	"go.uber.org/zap"
)

type Config struct {
	JWTSecret      string
	AllowOrigins   string
	RequestTimeout time.Duration
}

type Handlers struct {
	Orders    *order.Handler
	OrderMode *ordermode.Handler
	Push      *push.Handler
	Dashboard *dashboard.Handler
}

// New builds the Fiber app. Health and the token-guarded broadcast route
// are public; everything else sits behind the JWT middleware.
func New(cfg Config, h Handlers, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(apperr.Body{Message: fe.Message})
			}
			logger.Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(apperr.BodyOf(err))
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(accessLog(logger))
	if cfg.RequestTimeout > 0 {
		app.Use(requestTimeout(cfg.RequestTimeout))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	h.Push.RegisterPublicRoutes(app)

	app.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(cfg.JWTSecret),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(apperr.Body{Message: "Unauthorized"})
		},
	}))

	h.Orders.RegisterProtectedRoutes(app)
	h.OrderMode.RegisterProtectedRoutes(app)
	h.Push.RegisterProtectedRoutes(app)
	h.Dashboard.RegisterProtectedRoutes(app)

	return app
}

func accessLog(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)))
		return err
	}
}

// requestTimeout bounds the context handed to services via UserContext.
func requestTimeout(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
