package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"shoporders/internal/config"
	"shoporders/internal/db"
	"shoporders/internal/handlers"
	"shoporders/internal/logger"
	"shoporders/internal/models"
	"shoporders/internal/orders"
	"shoporders/internal/repo"
	"shoporders/internal/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		Service:   "orders-api",
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: cfg.AppEnv != "prod",
	})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var (
		store orders.Store
		shops handlers.ShopAccess
		ready func(context.Context) error
	)
	switch cfg.DBDriver {
	case "memory":
		mem, memShops := seedDemo()
		store, shops = mem, memShops
		log.Warn("using in-memory order store with demo data")
	default:
		conn, err := db.NewPostgresDB(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer conn.Close()
		store, shops = repo.NewOrderRepo(conn), repo.NewShopRepo(conn)
		ready = pinger(conn)
	}

	var policy orders.TransitionPolicy = orders.AllowAll{}
	if cfg.StrictTransitions {
		policy = orders.TerminalGuard{}
	}

	planner := orders.NewPlanner(store,
		orders.WithPageSizes(cfg.PageSize, cfg.MaxPageSize),
		orders.WithPlannerLogger(log),
	)
	svc := orders.NewService(store, planner, orders.NewStatusEngine(store, policy), log)
	svc.Subscribe(auditLog(log))

	router := handlers.NewRouter(handlers.RouterDeps{
		Orders:         svc,
		Shops:          shops,
		Tokens:         handlers.NewTokenIssuer(cfg.JWTSecret, 24*time.Hour),
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
		Ready:          ready,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr, "strict_transitions", cfg.StrictTransitions)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func pinger(conn *sql.DB) func(context.Context) error {
	return func(ctx context.Context) error { return conn.PingContext(ctx) }
}

// auditLog records every applied status change.
func auditLog(log *slog.Logger) orders.StatusObserver {
	return orders.ObserverFunc(func(ctx context.Context, changes []models.StatusChange) error {
		for _, c := range changes {
			log.InfoContext(ctx, "order status changed",
				"order_id", c.OrderID, "shop_id", c.ShopID, "from", c.From, "to", c.To)
		}
		return nil
	})
}

// seedDemo fills the memory stores: shop 1 owned by user 1, with 50 orders.
func seedDemo() (*repo.MemoryOrderRepo, *repo.MemoryShopRepo) {
	store := repo.NewMemoryOrderRepo()
	store.SetUserEmail(2, "customer@example.com")
	start := time.Now().Add(-50 * time.Hour)
	statuses := models.OrderStatuses()
	for i := 1; i <= 50; i++ {
		store.Insert(models.Order{
			DisplayID:       fmt.Sprintf("ORD-%05d", i),
			ShopID:          1,
			UserID:          2,
			Status:          statuses[i%len(statuses)],
			PaymentStatus:   models.PaymentStatusPaid,
			PaymentMethod:   "card",
			TotalPrice:      decimal.NewFromInt(int64(i)).Mul(decimal.RequireFromString("4.25")),
			DeliveryAddress: fmt.Sprintf("%d Market Street", i),
			CreatedAt:       start.Add(time.Duration(i) * time.Hour),
		})
	}
	return store, repo.NewMemoryShopRepo(models.Shop{ID: 1, Name: "Demo shop", OwnerID: 1, CreatedAt: start})
}
