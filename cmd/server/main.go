package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storefront/cmd/server/config"
	"storefront/internal/correlation"
	"storefront/internal/httpapi"
	"storefront/internal/notification"
	"storefront/internal/observability"
	"storefront/internal/purchase"
	"storefront/internal/realtime"
	"storefront/internal/shipping"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	logger := slog.New(correlation.NewLogHandler(
		slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(logger)

	if err := run(ctx, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	store, payments, cleanupStores := buildStores(ctx, cfg, logger)
	defer cleanupStores()

	inventory, cleanupInventory, err := buildInventory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanupInventory()

	hub := realtime.NewHub()
	go hub.Run()
	feed := realtime.NewStatusFeed(hub, logger)

	gateway := purchase.NewGateway(purchase.GatewayConfig{
		CallTimeout: cfg.Gateway.CallTimeout,
		QueueDepth:  cfg.Gateway.QueueDepth,
		Workers:     cfg.Gateway.Workers,
		Retry:       retryPolicy(cfg.Gateway),
	}, logger, observability.GatewayObserver(metrics))
	defer gateway.Close()

	orchestrator := purchase.NewOrchestrator(
		gateway,
		store,
		payments,
		inventory,
		shipping.NewClient(),
		notification.NewClient(notification.NewLogSender(logger)),
		feed,
		logger,
	)

	limiter := httpapi.NewLimiter(cfg.HTTP.RateLimitInterval, cfg.HTTP.RateLimitBurst, metrics.AddRateLimitWait)
	handler := httpapi.NewHandler(orchestrator, store, hub, logger)
	router := httpapi.NewRouter(handler, limiter, metrics)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		metrics.MarkShutdown(0)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func retryPolicy(cfg config.GatewayConfig) purchase.RetryPolicy {
	policy := purchase.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 100 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 2 * time.Second
	}
	return policy
}
