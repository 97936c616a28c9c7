package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"HTTP_ADDR", "RATE_LIMIT_INTERVAL", "RATE_LIMIT_BURST",
		"DATABASE_URL", "REDIS_URL", "REDIS_STOCK_KEY_PREFIX",
		"REDIS_DIAL_TIMEOUT", "REDIS_READ_TIMEOUT", "REDIS_WRITE_TIMEOUT",
		"REDIS_POOL_SIZE", "REDIS_MIN_IDLE_CONNS", "REDIS_MAX_RETRIES",
		"REDIS_HEALTHCHECK_TIMEOUT",
		"REDIS_TLS_CA_FILE", "REDIS_TLS_CERT_FILE", "REDIS_TLS_KEY_FILE",
		"REDIS_TLS_SERVER_NAME", "REDIS_TLS_INSECURE_SKIP_VERIFY",
		"GATEWAY_CALL_TIMEOUT", "GATEWAY_QUEUE_DEPTH", "GATEWAY_WORKERS",
		"GATEWAY_RETRY_MAX_ATTEMPTS", "GATEWAY_RETRY_BASE_DELAY", "GATEWAY_RETRY_MAX_DELAY",
		"PAYMENT_DECLINE_LIMIT", "STOCK_SEED",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("expected default addr, got %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.RateLimitInterval != 0 {
		t.Fatalf("rate limiting must be disabled by default")
	}
	if cfg.Storage.DatabaseURL != "" || cfg.Redis.URL != "" {
		t.Fatalf("stores must default to in-memory")
	}
	if cfg.Payment.DeclineLimit != nil {
		t.Fatalf("decline limit must default to unset")
	}
}

func TestLoad_HTTPAndRateLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("RATE_LIMIT_INTERVAL", "100ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected addr: %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.RateLimitInterval != 100*time.Millisecond {
		t.Fatalf("unexpected interval: %v", cfg.HTTP.RateLimitInterval)
	}
	if cfg.HTTP.RateLimitBurst != 1 {
		t.Fatalf("burst must default to 1 when limiting is enabled, got %d", cfg.HTTP.RateLimitBurst)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoad_Redis(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_POOL_SIZE", "16")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected url: %s", cfg.Redis.URL)
	}
	if cfg.Redis.PoolSize == nil || *cfg.Redis.PoolSize != 16 {
		t.Fatalf("unexpected pool size: %v", cfg.Redis.PoolSize)
	}
	if cfg.Redis.HealthcheckTimeout != 2*time.Second {
		t.Fatalf("unexpected healthcheck timeout: %v", cfg.Redis.HealthcheckTimeout)
	}
}

func TestLoad_RedisHealthcheckDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.HealthcheckTimeout != 5*time.Second {
		t.Fatalf("unexpected default: %v", cfg.Redis.HealthcheckTimeout)
	}
}

func TestLoad_RedisTLSCertWithoutKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_TLS_CERT_FILE", "/tmp/cert.pem")

	if _, err := Load(); err == nil {
		t.Fatalf("expected cert/key pairing error")
	}
}

func TestLoad_Gateway(t *testing.T) {
	clearEnv(t)
	t.Setenv("GATEWAY_CALL_TIMEOUT", "10s")
	t.Setenv("GATEWAY_WORKERS", "8")
	t.Setenv("GATEWAY_RETRY_MAX_ATTEMPTS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.CallTimeout != 10*time.Second {
		t.Fatalf("unexpected call timeout: %v", cfg.Gateway.CallTimeout)
	}
	if cfg.Gateway.Workers != 8 || cfg.Gateway.RetryMaxAttempts != 5 {
		t.Fatalf("unexpected gateway config: %+v", cfg.Gateway)
	}
	if cfg.Gateway.QueueDepth != 0 {
		t.Fatalf("unset values must stay zero for downstream defaults")
	}
}

func TestLoad_PaymentDeclineLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAYMENT_DECLINE_LIMIT", "45.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Payment.DeclineLimit == nil || *cfg.Payment.DeclineLimit != 45.5 {
		t.Fatalf("unexpected decline limit: %v", cfg.Payment.DeclineLimit)
	}
}
