package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/adiwena/gobiz-bridge/internal/config"
	"github.com/adiwena/gobiz-bridge/internal/gobiz"
	"github.com/adiwena/gobiz-bridge/internal/repository"
	"github.com/adiwena/gobiz-bridge/pkg/health"
	"github.com/adiwena/gobiz-bridge/pkg/middleware"
)

// RouterDeps bundles what the router wires together.
type RouterDeps struct {
	Config *config.Config
	Logger *slog.Logger
	Engine *gobiz.Engine
	Poller *gobiz.Poller
	Users  repository.UserRepository
	Keys   repository.APIKeyRepository
	Cache  *redis.Client
	Health *health.Handler
}

// NewRouter assembles the full HTTP surface: health and metrics, the
// API-key-authenticated /v1 API, and the basic-auth admin router at a
// configurable prefix.
func NewRouter(d RouterDeps) chi.Router {
	r := chi.NewRouter()

	if len(d.Config.IPAllowlist) > 0 {
		r.Use(middleware.IPAllowlist(d.Config.IPAllowlist, d.Logger))
	}
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestLogging(d.Logger))
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.PrometheusMetrics("gobiz-bridge"))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = d.Config.CORSAllowedOrigins
	corsCfg.Environment = d.Config.Environment
	r.Use(middleware.CORS(corsCfg))

	r.Get("/health", d.Health.LivenessHandler())
	r.Get("/health/live", d.Health.LivenessHandler())
	r.Get("/health/ready", d.Health.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	session := NewSessionHandler(d.Engine, d.Logger)
	stream := NewStreamHandler(d.Engine, d.Poller, d.Config.PingInterval, d.Logger)
	webhook := NewWebhookHandler(d.Engine, d.Poller, d.Config.WebhookTimeout, d.Logger)
	admin := NewAdminHandler(d.Users, d.Keys, d.Engine, d.Logger)

	r.Route("/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(d.Keys, d.Users, d.Cache, d.Logger))

		r.Get("/me", session.Me)
		r.Post("/auth/email", session.AuthEmail)
		r.Post("/auth/otp/request", session.OTPRequest)
		r.Post("/auth/otp/verify", session.OTPVerify)
		r.Post("/auth/logout", session.Logout)
		r.Get("/merchant", session.Merchant)

		r.Get("/mutasi/stream", stream.Stream)
		r.Post("/mutasi/webhook/start", webhook.Start)
		r.Post("/mutasi/webhook/stop", webhook.Stop)
		r.Get("/mutasi/webhook", webhook.Status)
	})

	r.Route(d.Config.AdminPath, func(r chi.Router) {
		r.Use(BasicAuth(d.Config.AdminUser, d.Config.AdminPass, d.Logger))

		r.Post("/users", admin.CreateUser)
		r.Get("/users", admin.ListUsers)
		r.Post("/users/{userID}/keys", admin.CreateKey)
		r.Get("/users/{userID}/keys", admin.ListKeys)
		r.Post("/users/{userID}/logout", admin.ForceLogout)
		r.Delete("/users/{userID}", admin.DeleteUser)
		r.Post("/keys/{keyID}/revoke", admin.RevokeKey)
	})

	middleware.RegisterPprof(r, d.Config.PprofAllowlist, d.Logger)

	return r
}
