package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/cmd/server/config"
	"storefront/internal/ledger"
	"storefront/internal/payment"
	"storefront/internal/purchase"
	"storefront/internal/warehouse"
)

var openDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// buildStores wires the order ledger and the payment client. An empty DSN,
// or a Postgres that cannot be reached during setup, falls back to the
// in-memory stores so the server still comes up.
func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (ledger.Store, purchase.PaymentClient, func()) {
	limit := declineLimit(cfg.Payment)
	cleanup := func() {}

	var store ledger.Store = ledger.NewMemoryStore()
	var payments purchase.PaymentClient = payment.NewMemoryClient(limit)

	dsn := cfg.Storage.DatabaseURL
	if dsn == "" {
		log.Info("no DATABASE_URL, using in-memory stores")
		return store, payments, cleanup
	}

	db, err := openDB("pgx", dsn)
	if err != nil {
		log.Warn("postgres open failed, falling back to in-memory stores", "error", err)
		return store, payments, cleanup
	}

	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pgLedger := ledger.NewPostgresStore(db)
	if err := pgLedger.InitSchema(setupCtx); err != nil {
		log.Warn("postgres init failed, falling back to in-memory stores", "error", err)
		_ = db.Close()
		return store, payments, cleanup
	}
	pgPayments, err := payment.NewPostgresClientWithSchema(setupCtx, db, limit)
	if err != nil {
		log.Warn("payment schema init failed, falling back to in-memory stores", "error", err)
		_ = db.Close()
		return store, payments, cleanup
	}

	log.Info("postgres stores enabled")
	store = pgLedger
	payments = pgPayments
	cleanup = func() {
		if err := db.Close(); err != nil {
			log.Error("close postgres", "error", err)
		}
	}
	return store, payments, cleanup
}

// buildInventory wires the stock store: Redis when REDIS_URL is set, the
// in-memory table otherwise. STOCK_SEED preloads counters either way.
func buildInventory(ctx context.Context, cfg config.Config, log *slog.Logger) (purchase.InventoryClient, func(), error) {
	seed, err := parseStockSeed(cfg.StockSeed)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Redis.URL == "" {
		log.Info("no REDIS_URL, using in-memory inventory")
		client := warehouse.NewMemoryClient()
		for sku, quantity := range seed {
			client.SetStock(sku, quantity)
		}
		return client, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Redis.DialTimeout != nil {
		opts.DialTimeout = *cfg.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout != nil {
		opts.ReadTimeout = *cfg.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout != nil {
		opts.WriteTimeout = *cfg.Redis.WriteTimeout
	}
	if cfg.Redis.PoolSize != nil {
		opts.PoolSize = *cfg.Redis.PoolSize
	}
	if cfg.Redis.MinIdleConns != nil {
		opts.MinIdleConns = *cfg.Redis.MinIdleConns
	}
	if cfg.Redis.MaxRetries != nil {
		opts.MaxRetries = *cfg.Redis.MaxRetries
	}
	if cfg.Redis.TLSConfig != nil {
		opts.TLSConfig = cfg.Redis.TLSConfig
	}

	rdb := redis.NewClient(opts)

	pingCtx := ctx
	if cfg.Redis.HealthcheckTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.Redis.HealthcheckTimeout)
		defer cancel()
	}
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	client := warehouse.NewRedisClient(rdb, cfg.Redis.StockKeyPrefix)
	for sku, quantity := range seed {
		if err := client.SetStock(ctx, sku, quantity); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("seed stock %s: %w", sku, err)
		}
	}

	log.Info("redis inventory enabled")
	cleanup := func() {
		if err := rdb.Close(); err != nil {
			log.Error("close redis", "error", err)
		}
	}
	return client, cleanup, nil
}

func declineLimit(cfg config.PaymentConfig) float64 {
	if cfg.DeclineLimit == nil {
		return payment.DefaultDeclineLimit
	}
	return *cfg.DeclineLimit
}

// parseStockSeed reads "sku=quantity,sku=quantity" pairs.
func parseStockSeed(raw string) (map[string]int, error) {
	seed := make(map[string]int)
	if raw == "" {
		return seed, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sku, value, ok := strings.Cut(pair, "=")
		sku = strings.TrimSpace(sku)
		if !ok || sku == "" {
			return nil, fmt.Errorf("STOCK_SEED: invalid pair %q", pair)
		}
		quantity, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || quantity < 0 {
			return nil, fmt.Errorf("STOCK_SEED: invalid quantity in %q", pair)
		}
		seed[sku] = quantity
	}
	return seed, nil
}
