package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "/admin", cfg.AdminPath)
	assert.Equal(t, "https://api.gobiz.co.id", cfg.GobizBaseURL)
	assert.Equal(t, 2*time.Second, cfg.MinRequestInterval)
	assert.Equal(t, 60*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, 25*time.Second, cfg.PingInterval)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, "v1", cfg.EncActiveKid)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("GOBIZ_MIN_REQUEST_INTERVAL", "500ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("IP_ALLOWLIST", "10.0.0.0/8,127.0.0.0/8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 500*time.Millisecond, cfg.MinRequestInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.0/8"}, cfg.IPAllowlist)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "70000")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid HTTP port")
}

func TestLoad_MissingActiveKid(t *testing.T) {
	t.Setenv("ENC_ACTIVE_KID", "v2")

	_, err := Load()
	assert.ErrorContains(t, err, "missing active kid")
}

func TestLoad_BadKeyLength(t *testing.T) {
	t.Setenv("ENC_KEYS", "v1:deadbeef")

	_, err := Load()
	assert.ErrorContains(t, err, "want 32 bytes")
}

func TestLoad_KeyringPairs(t *testing.T) {
	// Rotation shape: two kid:hexkey pairs, new envelopes sealed under v2.
	keyV1 := "11f5dcea55713b4b2bc34d1ef0ff1c7f6b13c9ad5e0d5a4a5f58f9f5cbb6a0e2"
	keyV2 := "a19b4dd07c2f9d0e6b5b58e1a2c3d4e5f60718293a4b5c6d7e8f909192a3b4c5"
	t.Setenv("ENC_KEYS", "v1:"+keyV1+",v2:"+keyV2)
	t.Setenv("ENC_ACTIVE_KID", "v2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"v1": keyV1, "v2": keyV2}, cfg.EncKeys)
	assert.Equal(t, "v2", cfg.EncActiveKid)
}

func TestLoad_ProductionRejectsDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	assert.ErrorContains(t, err, "ADMIN_PASS")
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db", PostgresPort: 5432,
		PostgresUser: "gobiz", PostgresPass: "pw",
		PostgresDB: "gobiz_bridge", PostgresSSL: "disable",
	}
	assert.Equal(t, "postgres://gobiz:pw@db:5432/gobiz_bridge?sslmode=disable", cfg.PostgresDSN())
}
