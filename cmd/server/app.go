package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasker-api/internal/api/middleware"
	"github.com/phrazzld/tasker-api/internal/config"
	"github.com/phrazzld/tasker-api/internal/platform/postgres"
	"github.com/phrazzld/tasker-api/internal/platform/redis"
	"github.com/phrazzld/tasker-api/internal/service"
	"github.com/phrazzld/tasker-api/internal/service/auth"
	"github.com/redis/rueidis"
)

// rateLimitWindow is the period requests_per_minute is counted over.
const rateLimitWindow = time.Minute

// application holds the shared dependencies of the server so they can be
// released together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  rueidis.Client // nil without a configured address

	jwtService  auth.JWTService
	authLimiter middleware.Limiter // nil when rate limiting is disabled

	taskService service.TaskService
	tagService  service.TagService
	authService service.AuthService
}

// newApplication wires stores, services and the optional Redis-backed
// revocation list and rate limiter.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if cfg.Redis.Addr != "" {
		app.redis, err = redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		revoker = redis.NewRevoker(app.redis)
		logger.Info("Using redis for token revocation and rate limiting")
	}

	if limit := cfg.RateLimit.RequestsPerMinute; limit > 0 {
		if app.redis != nil {
			app.authLimiter = redis.NewLimiter(app.redis, limit, rateLimitWindow)
		} else {
			app.authLimiter = middleware.NewMemoryLimiter(limit, rateLimitWindow)
		}
	}

	taskStore := postgres.NewPostgresTaskStore(db, logger)
	tagStore := postgres.NewPostgresTagStore(db, logger)
	userStore := postgres.NewPostgresUserStore(db, logger)

	app.taskService, err = service.NewTaskService(taskStore, tagStore, db, cfg.Tasks.PageSize, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}
	app.tagService, err = service.NewTagService(tagStore, db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag service: %w", err)
	}
	app.authService, err = service.NewAuthService(
		userStore,
		app.jwtService,
		auth.NewBcryptHasher(cfg.Auth.BCryptCost),
		revoker,
		db,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases the database pool and the Redis client.
func (app *application) cleanup() {
	if app.redis != nil {
		app.redis.Close()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
	app.logger.Info("Application shutdown completed")
}
