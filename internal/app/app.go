// Package app wires the bridge's components together and owns their
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/adiwena/gobiz-bridge/internal/config"
	"github.com/adiwena/gobiz-bridge/internal/crypto"
	"github.com/adiwena/gobiz-bridge/internal/domain"
	"github.com/adiwena/gobiz-bridge/internal/event"
	"github.com/adiwena/gobiz-bridge/internal/gobiz"
	handler "github.com/adiwena/gobiz-bridge/internal/handler/http"
	"github.com/adiwena/gobiz-bridge/internal/repository/postgres"
	"github.com/adiwena/gobiz-bridge/migrations"
	"github.com/adiwena/gobiz-bridge/pkg/database"
	"github.com/adiwena/gobiz-bridge/pkg/health"
	pkgkafka "github.com/adiwena/gobiz-bridge/pkg/kafka"
)

// App is the assembled bridge service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool   *pgxpool.Pool
	cache  *redis.Client
	kafka  *pkgkafka.Producer
	engine *gobiz.Engine
	poller *gobiz.Poller
	events *event.Producer
	server *http.Server
}

// New builds the application: storage, the vendor session engine, the poller,
// event publishing, and the HTTP surface.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	cache, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	keyring, err := crypto.NewKeyring(cfg.EncActiveKid, cfg.EncKeys)
	if err != nil {
		pool.Close()
		_ = cache.Close()
		return nil, fmt.Errorf("build keyring: %w", err)
	}

	var kafkaProducer *pkgkafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	}
	events := event.NewProducer(kafkaProducer, logger)

	users := postgres.NewUserRepository(pool)
	keys := postgres.NewAPIKeyRepository(pool)

	engine := gobiz.NewEngine(gobiz.Config{
		BaseURL:          cfg.GobizBaseURL,
		MinInterval:      cfg.MinRequestInterval,
		RequestTimeout:   cfg.RequestTimeout,
		RefreshInterval:  cfg.RefreshInterval,
		LoginSettleDelay: cfg.LoginSettleDelay,
	}, users, keyring, logger)

	engine.OnRevoked(func(userID, reason string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := events.PublishSessionRevoked(ctx, userID, reason); err != nil {
			logger.Error("publish session.revoked failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	})

	poller := gobiz.NewPoller(engine, cfg.PollInterval, logger)
	poller.OnDiscovered(func(ctx context.Context, userID, merchantID string, tx *domain.Transaction) {
		if err := events.PublishTransactionDiscovered(ctx, userID, merchantID, tx); err != nil {
			logger.Error("publish transaction.discovered failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	})

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return cache.Ping(ctx).Err()
	})
	if kafkaProducer != nil {
		healthHandler.Register("kafka", kafkaProducer.Ping)
	}

	router := handler.NewRouter(handler.RouterDeps{
		Config: cfg,
		Logger: logger,
		Engine: engine,
		Poller: poller,
		Users:  users,
		Keys:   keys,
		Cache:  cache,
		Health: healthHandler,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: SSE connections are long-lived by design.
	}

	return &App{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		cache:  cache,
		kafka:  kafkaProducer,
		engine: engine,
		poller: poller,
		events: events,
		server: server,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening",
			slog.String("addr", a.server.Addr),
			slog.String("admin_path", a.cfg.AdminPath),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}

	a.poller.Close()
	a.engine.Close()

	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Error("kafka close failed", slog.String("error", err.Error()))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("redis close failed", slog.String("error", err.Error()))
	}
	a.pool.Close()

	a.logger.Info("shutdown complete")
	return nil
}
