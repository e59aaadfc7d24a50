package config

import (
	"encoding/hex"
	"fmt"
	"time"

	pkgconfig "github.com/adiwena/gobiz-bridge/pkg/config"
)

// Config holds all configuration for the bridge.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Admin surface. Basic auth credentials; the path prefix is configurable
	// so the admin router is not discoverable at a well-known location.
	AdminPath string `env:"ADMIN_PATH" envDefault:"/admin"`
	AdminUser string `env:"ADMIN_USER" envDefault:"admin"`
	AdminPass string `env:"ADMIN_PASS" envDefault:"change-this-admin-password"`

	// Optional global CIDR allowlist. Empty means no IP restriction.
	IPAllowlist []string `env:"IP_ALLOWLIST" envSeparator:","`

	// Pprof endpoints are always behind their own allowlist.
	PprofAllowlist []string `env:"PPROF_ALLOWLIST" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"gobiz"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"gobiz_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"gobiz_bridge"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (API-key lookup cache)
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka. Empty broker list disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Vendor API
	GobizBaseURL       string        `env:"GOBIZ_BASE_URL" envDefault:"https://api.gobiz.co.id"`
	MinRequestInterval time.Duration `env:"GOBIZ_MIN_REQUEST_INTERVAL" envDefault:"2s"`
	RequestTimeout     time.Duration `env:"GOBIZ_REQUEST_TIMEOUT" envDefault:"30s"`
	RefreshInterval    time.Duration `env:"GOBIZ_REFRESH_INTERVAL" envDefault:"60s"`
	LoginSettleDelay   time.Duration `env:"GOBIZ_LOGIN_SETTLE_DELAY" envDefault:"3s"`

	// Transaction polling and delivery
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"15s"`
	PingInterval   time.Duration `env:"SSE_PING_INTERVAL" envDefault:"25s"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`

	// Credential encryption keyring: comma-separated kid:hexkey pairs, each
	// key 32 bytes hex-encoded. EncActiveKid selects the key used for new
	// envelopes; the rest remain available for decryption after rotation.
	EncActiveKid string            `env:"ENC_ACTIVE_KID" envDefault:"v1"`
	EncKeys      map[string]string `env:"ENC_KEYS" envDefault:"v1:0000000000000000000000000000000000000000000000000000000000000000"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if _, ok := cfg.EncKeys[cfg.EncActiveKid]; !ok {
		return nil, fmt.Errorf("ENC_KEYS missing active kid %q", cfg.EncActiveKid)
	}
	for kid, key := range cfg.EncKeys {
		raw, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("ENC_KEYS[%s]: not hex: %w", kid, err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("ENC_KEYS[%s]: want 32 bytes, got %d", kid, len(raw))
		}
	}

	// Outside development, default credentials and the all-zero key are not
	// acceptable.
	if cfg.Environment != "development" {
		if cfg.AdminPass == "change-this-admin-password" {
			return nil, fmt.Errorf("ADMIN_PASS must be explicitly set in %q mode", cfg.Environment)
		}
		if cfg.EncKeys[cfg.EncActiveKid] == "0000000000000000000000000000000000000000000000000000000000000000" {
			return nil, fmt.Errorf("ENC_KEYS must be explicitly set in %q mode", cfg.Environment)
		}
	}

	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
