package http

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adiwena/gobiz-bridge/internal/repository"
	apperrors "github.com/adiwena/gobiz-bridge/pkg/errors"
	"github.com/adiwena/gobiz-bridge/pkg/httputil"
	"github.com/adiwena/gobiz-bridge/pkg/middleware"
)

// apiKeyCacheTTL bounds how long a validated key is served from cache.
// Revoking a key can therefore take up to this long to bite.
const apiKeyCacheTTL = 5 * time.Minute

// hashKey returns the hex SHA-256 digest of an API key.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// APIKeyAuth authenticates requests by X-User-ID and X-API-Key headers. A
// validated (user, digest) pair is cached in Redis; the database is only
// consulted on cache misses. On success the user id and key id land in the
// request context.
func APIKeyAuth(keys repository.APIKeyRepository, users repository.UserRepository, cache *redis.Client, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			apiKey := r.Header.Get("X-API-Key")
			if userID == "" || apiKey == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("X-User-ID and X-API-Key headers are required"), logger)
				return
			}

			digest := hashKey(apiKey)
			cacheKey := "apikey:" + userID + ":" + digest

			var keyID int64
			cached := false
			if cache != nil {
				if val, err := cache.Get(r.Context(), cacheKey).Result(); err == nil {
					if id, perr := strconv.ParseInt(val, 10, 64); perr == nil {
						keyID = id
						cached = true
					}
				}
			}

			if !cached {
				row, err := keys.FindActive(r.Context(), userID, digest)
				if err != nil {
					httputil.WriteError(w, r, apperrors.Unauthorized("invalid api key"), logger)
					return
				}
				keyID = row.ID

				if err := users.Ensure(r.Context(), userID); err != nil {
					httputil.WriteError(w, r, err, logger)
					return
				}
				if cache != nil {
					if err := cache.Set(r.Context(), cacheKey, strconv.FormatInt(keyID, 10), apiKeyCacheTTL).Err(); err != nil {
						logger.Debug("api key cache write failed", slog.String("error", err.Error()))
					}
				}
			}

			// Best effort; auth must not fail on a bookkeeping write.
			if err := keys.TouchLastUsed(r.Context(), keyID); err != nil {
				logger.Debug("api key touch failed", slog.String("error", err.Error()))
			}

			ctx := middleware.WithUserID(r.Context(), userID)
			ctx = middleware.WithAPIKeyID(ctx, keyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BasicAuth guards the admin surface with constant-time credential checks.
func BasicAuth(username, password string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
				httputil.WriteError(w, r, apperrors.Unauthorized("admin credentials required"), logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
