// Package config reads the server configuration from the environment.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// HTTPConfig holds the ingress listener and rate limit settings. A zero
// rate limit interval disables the limiter.
type HTTPConfig struct {
	Addr              string
	RateLimitInterval time.Duration
	RateLimitBurst    int
}

// StorageConfig holds the Postgres DSN. Empty means in-memory stores.
type StorageConfig struct {
	DatabaseURL string
}

// RedisConfig holds Redis connection settings for the stock counters.
// An empty URL means the in-memory inventory fallback.
type RedisConfig struct {
	URL                string
	StockKeyPrefix     string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	TLSConfig          *tls.Config
}

// GatewayConfig tunes collaborator invocation. Zero values fall back to
// the gateway's built-in defaults.
type GatewayConfig struct {
	CallTimeout      time.Duration
	QueueDepth       int
	Workers          int
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

// PaymentConfig holds payment processor settings. A nil DeclineLimit means
// the processor default; zero or negative disables the limit.
type PaymentConfig struct {
	DeclineLimit *float64
}

// Config is the full server configuration.
type Config struct {
	HTTP      HTTPConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Gateway   GatewayConfig
	Payment   PaymentConfig
	StockSeed string
}

// Load reads the full configuration from env.
func Load() (Config, error) {
	var cfg Config
	var err error

	if cfg.HTTP, err = loadHTTP(); err != nil {
		return cfg, err
	}
	cfg.Storage.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.Redis, err = loadRedis(); err != nil {
		return cfg, err
	}
	if cfg.Gateway, err = loadGateway(); err != nil {
		return cfg, err
	}
	if cfg.Payment.DeclineLimit, err = optionalFloat64("PAYMENT_DECLINE_LIMIT"); err != nil {
		return cfg, err
	}
	cfg.StockSeed = strings.TrimSpace(os.Getenv("STOCK_SEED"))

	return cfg, nil
}

func loadHTTP() (HTTPConfig, error) {
	cfg := HTTPConfig{
		Addr: strings.TrimSpace(os.Getenv("HTTP_ADDR")),
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	interval, err := optionalDuration("RATE_LIMIT_INTERVAL")
	if err != nil {
		return cfg, err
	}
	if interval != nil {
		cfg.RateLimitInterval = *interval
	}

	burst, err := optionalInt("RATE_LIMIT_BURST")
	if err != nil {
		return cfg, err
	}
	if burst != nil {
		cfg.RateLimitBurst = *burst
	}
	if cfg.RateLimitInterval > 0 && cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 1
	}

	return cfg, nil
}

func loadRedis() (RedisConfig, error) {
	cfg := RedisConfig{
		URL:            strings.TrimSpace(os.Getenv("REDIS_URL")),
		StockKeyPrefix: strings.TrimSpace(os.Getenv("REDIS_STOCK_KEY_PREFIX")),
	}
	if cfg.URL == "" {
		return cfg, nil
	}

	var err error
	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, err
	}

	healthcheck, err := optionalDuration("REDIS_HEALTHCHECK_TIMEOUT")
	if err != nil {
		return cfg, err
	}
	if healthcheck != nil {
		cfg.HealthcheckTimeout = *healthcheck
	} else {
		cfg.HealthcheckTimeout = 5 * time.Second
	}

	if cfg.TLSConfig, err = loadRedisTLSFromEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func loadGateway() (GatewayConfig, error) {
	var cfg GatewayConfig
	var err error

	set := func(name string, dst *time.Duration) error {
		val, err := optionalDuration(name)
		if err != nil {
			return err
		}
		if val != nil {
			*dst = *val
		}
		return nil
	}
	if err = set("GATEWAY_CALL_TIMEOUT", &cfg.CallTimeout); err != nil {
		return cfg, err
	}
	if err = set("GATEWAY_RETRY_BASE_DELAY", &cfg.RetryBaseDelay); err != nil {
		return cfg, err
	}
	if err = set("GATEWAY_RETRY_MAX_DELAY", &cfg.RetryMaxDelay); err != nil {
		return cfg, err
	}

	setInt := func(name string, dst *int) error {
		val, err := optionalInt(name)
		if err != nil {
			return err
		}
		if val != nil {
			*dst = *val
		}
		return nil
	}
	if err = setInt("GATEWAY_QUEUE_DEPTH", &cfg.QueueDepth); err != nil {
		return cfg, err
	}
	if err = setInt("GATEWAY_WORKERS", &cfg.Workers); err != nil {
		return cfg, err
	}
	if err = setInt("GATEWAY_RETRY_MAX_ATTEMPTS", &cfg.RetryMaxAttempts); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func loadRedisTLSFromEnv() (*tls.Config, error) {
	caFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CA_FILE"))
	certFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CERT_FILE"))
	keyFile := strings.TrimSpace(os.Getenv("REDIS_TLS_KEY_FILE"))
	serverName := strings.TrimSpace(os.Getenv("REDIS_TLS_SERVER_NAME"))
	insecureStr := strings.TrimSpace(os.Getenv("REDIS_TLS_INSECURE_SKIP_VERIFY"))

	if caFile == "" && certFile == "" && keyFile == "" && serverName == "" && insecureStr == "" {
		return nil, nil
	}
	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("REDIS_TLS_CERT_FILE and REDIS_TLS_KEY_FILE must be set together")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if insecureStr != "" {
		insecure, err := strconv.ParseBool(insecureStr)
		if err != nil {
			return nil, fmt.Errorf("REDIS_TLS_INSECURE_SKIP_VERIFY: %w", err)
		}
		tlsConfig.InsecureSkipVerify = insecure
	}

	if caFile != "" {
		pemData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read REDIS_TLS_CA_FILE: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, errors.New("REDIS_TLS_CA_FILE contains no valid certificates")
		}
		tlsConfig.RootCAs = pool
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load redis TLS keypair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalFloat64(name string) (*float64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &val, nil
}
