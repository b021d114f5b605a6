package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront-admin/internal/admin"
	"github.com/wichananm65/storefront-admin/internal/config"
	"github.com/wichananm65/storefront-admin/internal/dashboard"
	mongostore "github.com/wichananm65/storefront-admin/internal/infrastructure/database/mongo"
	"github.com/wichananm65/storefront-admin/internal/infrastructure/database/postgres"
	"github.com/wichananm65/storefront-admin/internal/infrastructure/logging"
	"github.com/wichananm65/storefront-admin/internal/interface/http/router"
	"github.com/wichananm65/storefront-admin/internal/order"
	"github.com/wichananm65/storefront-admin/internal/ordermode"
	"github.com/wichananm65/storefront-admin/internal/otp"
	"github.com/wichananm65/storefront-admin/internal/product"
	"github.com/wichananm65/storefront-admin/internal/push"
	"github.com/wichananm65/storefront-admin/internal/user"
	"go.uber.org/zap"
)

// stores groups one backend's repositories.
type stores struct {
	users         user.Repository
	products      product.Repository
	admins        admin.Repository
	orders        order.Repository
	modes         ordermode.Repository
	subscriptions push.Repository
	close         func(context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	hasher, err := otp.NewHasher(cfg.OTPSecret)
	if err != nil {
		return err
	}

	var transport push.Transport
	if cfg.PushEnabled() {
		transport = push.NewWebPushTransport(push.VAPIDConfig{
			Subject:    cfg.VAPIDSubject,
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			TTL:        cfg.PushTTL,
		}, &http.Client{Timeout: cfg.PushTimeout})
	} else {
		logger.Warn("VAPID keys not set, push notifications disabled")
	}

	modeService := ordermode.NewService(st.modes, logger.Named("ordermode"))
	pushService := push.NewService(st.subscriptions, st.admins, transport, logger.Named("push"), push.Options{
		Timeout:     cfg.PushTimeout,
		Concurrency: cfg.PushConcurrency,
	})
	orderService := order.NewService(st.orders, st.users, st.products, modeService, hasher, pushService,
		logger.Named("order"), order.Options{
			DefaultDeliverySlot: cfg.DefaultDeliverySlot,
			OTPTTL:              cfg.OTPTTL,
		})
	dashboardService := dashboard.NewService(st.users, st.products, orderService, logger.Named("dashboard"))

	app := router.New(router.Config{
		JWTSecret:      cfg.JWTSecret,
		AllowOrigins:   cfg.CORSAllowOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, router.Handlers{
		Orders:    order.NewHandler(orderService),
		OrderMode: ordermode.NewHandler(modeService),
		Push:      push.NewHandler(pushService, cfg.AdminPushAPIToken),
		Dashboard: dashboard.NewHandler(dashboardService),
	}, logger.Named("http"))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Addr))
		errCh <- app.Listen(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, db, err := mongostore.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := mongostore.EnsureIndexes(connectCtx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &stores{
			users:         user.NewMongoRepository(db),
			products:      product.NewMongoRepository(db),
			admins:        admin.NewMongoRepository(db),
			orders:        order.NewMongoRepository(db),
			modes:         ordermode.NewMongoRepository(db),
			subscriptions: push.NewMongoRepository(db),
			close:         client.Disconnect,
		}, nil
	default:
		db, err := postgres.Open(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(connectCtx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			users:         user.NewPostgresRepository(db),
			products:      product.NewPostgresRepository(db),
			admins:        admin.NewPostgresRepository(db),
			orders:        order.NewPostgresRepository(db),
			modes:         ordermode.NewPostgresRepository(db),
			subscriptions: push.NewPostgresRepository(db),
			close:         func(context.Context) error { return db.Close() },
		}, nil
	}
}
