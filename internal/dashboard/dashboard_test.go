package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/storefront-admin/internal/order"
	"github.com/wichananm65/storefront-admin/internal/product"
	"github.com/wichananm65/storefront-admin/internal/user"
	"go.uber.org/zap"
)

type fixedOrders map[order.DeliveryStatus]int

func (f fixedOrders) Count(ctx context.Context, status order.DeliveryStatus) (int, error) {
	if status == "" {
		total := 0
		for _, n := range f {
			total += n
		}
		return total, nil
	}
	return f[status], nil
}

type brokenCounter struct{}

func (brokenCounter) Count(ctx context.Context) (int, error) {
	return 0, errors.New("collection unavailable")
}

func TestStats(t *testing.T) {
	users := user.NewInMemoryRepository([]user.User{{ID: "u1"}, {ID: "u2"}})
	orders := fixedOrders{order.DeliveryProcessing: 3, order.DeliveryDispatched: 2, order.DeliveryDelivered: 5}
	svc := NewService(users, brokenCounter{}, orders, zap.NewNop())

	st := svc.Stats(context.Background())

	assert.Equal(t, 2, st.TotalUsers)
	assert.Equal(t, 0, st.TotalProducts, "failed count degrades to zero")
	assert.Equal(t, 10, st.TotalOrders)
	assert.Equal(t, 2, st.PendingOrders)
	assert.Equal(t, 5, st.PaidOrders)
	assert.Equal(t, 3, st.ProcessingOrders)
	assert.False(t, st.LastUpdated.IsZero())
}

func TestStatsRoute(t *testing.T) {
	svc := NewService(user.NewInMemoryRepository(nil), product.NewInMemoryRepository(nil), fixedOrders{}, zap.NewNop())
	app := fiber.New()
	NewHandler(svc).RegisterProtectedRoutes(app)

	res, err := app.Test(httptest.NewRequest("GET", "/api/v1/dashboard/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.Equal(t, "no-cache, no-store, must-revalidate", res.Header.Get("Cache-Control"))

	var st Stats
	require.NoError(t, json.NewDecoder(res.Body).Decode(&st))
	assert.Zero(t, st.TotalOrders)
}
