package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type errStr string

func (e errStr) Error() string { return string(e) }

func TestRetryBackoff_StaysWithinJitterBounds(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := defaultRetryBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - retryJitterFraction))
		hi := time.Duration(float64(base) * (1 + retryJitterFraction))

		for i := 0; i < 20; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, lo)
			assert.LessOrEqual(t, d, hi)
		}
	}
}

func TestRetryBackoff_NegativeAttemptClamped(t *testing.T) {
	d := retryBackoff(-5)
	assert.GreaterOrEqual(t, d, time.Duration(float64(defaultRetryBaseWait)*(1-retryJitterFraction)))
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(errStr("dial tcp 127.0.0.1:5432: connection refused")))
	assert.True(t, isConnectionError(errStr("unexpected EOF")))
	assert.True(t, isConnectionError(errStr("read: i/o timeout")))
	assert.False(t, isConnectionError(errStr("syntax error at or near \"SELCT\"")))
	assert.False(t, isConnectionError(errStr("duplicate key value violates unique constraint")))
}

func TestPostgresConfigDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5433, User: "gobiz", Password: "s3cret",
		DBName: "gobiz_bridge", SSLMode: "require",
	}
	assert.Equal(t, "postgres://gobiz:s3cret@db:5433/gobiz_bridge?sslmode=require", cfg.DSN())
}
