package dashboard

import (
	"context"
	"time"

	"github.com/wichananm65/storefront-admin/internal/order"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Counter interface {
	Count(ctx context.Context) (int, error)
}

type OrderCounter interface {
	Count(ctx context.Context, status order.DeliveryStatus) (int, error)
}

// Stats is the dashboard headline. PendingOrders counts dispatched orders
// still awaiting delivery and PaidOrders counts delivered ones.
type Stats struct {
	TotalUsers       int       `json:"totalUsers"`
	TotalProducts    int       `json:"totalProducts"`
	TotalOrders      int       `json:"totalOrders"`
	PendingOrders    int       `json:"pendingOrders"`
	PaidOrders       int       `json:"paidOrders"`
	ProcessingOrders int       `json:"processingOrders"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

type Service struct {
	users    Counter
	products Counter
	orders   OrderCounter
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(users, products Counter, orders OrderCounter, logger *zap.Logger) *Service {
	return &Service{users: users, products: products, orders: orders, logger: logger, now: time.Now}
}

// Stats runs every count concurrently. A failing count is logged and
// reported as 0 so one bad collection does not blank the dashboard.
func (s *Service) Stats(ctx context.Context) Stats {
	var (
		st Stats
		g  errgroup.Group
	)
	count := func(name string, dst *int, fn func() (int, error)) {
		g.Go(func() error {
			n, err := fn()
			if err != nil {
				s.logger.Warn("dashboard count failed", zap.String("count", name), zap.Error(err))
				return nil
			}
			*dst = n
			return nil
		})
	}

	count("users", &st.TotalUsers, func() (int, error) { return s.users.Count(ctx) })
	count("products", &st.TotalProducts, func() (int, error) { return s.products.Count(ctx) })
	count("orders", &st.TotalOrders, func() (int, error) { return s.orders.Count(ctx, "") })
	count("pending", &st.PendingOrders, func() (int, error) { return s.orders.Count(ctx, order.DeliveryDispatched) })
	count("paid", &st.PaidOrders, func() (int, error) { return s.orders.Count(ctx, order.DeliveryDelivered) })
	count("processing", &st.ProcessingOrders, func() (int, error) { return s.orders.Count(ctx, order.DeliveryProcessing) })
	_ = g.Wait()

	st.LastUpdated = s.now().UTC()
	return st
}
