// Package app wires configuration, storage, services, and transport into
// a runnable HTTP server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/lifehub-app/backend/internal/adapter/postgres"
	"github.com/lifehub-app/backend/internal/adapter/postgres/conflict"
	"github.com/lifehub-app/backend/internal/adapter/postgres/entity"
	"github.com/lifehub-app/backend/internal/adapter/postgres/syncop"
	"github.com/lifehub-app/backend/internal/auth"
	"github.com/lifehub-app/backend/internal/config"
	syncsvc "github.com/lifehub-app/backend/internal/service/sync"
	"github.com/lifehub-app/backend/internal/transport/middleware"
	"github.com/lifehub-app/backend/internal/transport/rest"
	"github.com/lifehub-app/backend/migrations"
)

// ctxValidator adapts the JWT manager to the context-taking interface the
// auth middleware expects.
type ctxValidator struct {
	jwt *auth.JWTManager
}

func (v *ctxValidator) ValidateToken(_ context.Context, token string) (uuid.UUID, error) {
	return v.jwt.ValidateAccessToken(token)
}

// Run is the application entry point. It loads configuration, connects to
// the database, applies pending migrations, wires the sync service and its
// REST transport, and serves until ctx is canceled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := applyMigrations(ctx, cfg.Database.DSN, logger); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	entityRepo := entity.New(pool)
	conflictRepo := conflict.New(pool)
	syncopRepo := syncop.New(pool)

	registry := syncsvc.NewDefaultRegistry(entityRepo)
	txManager := postgres.NewTxManager(pool)
	syncService := syncsvc.NewService(logger, registry, conflictRepo, syncopRepo, txManager, cfg.Sync.MaxBatchSize)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)

	syncHandler := rest.NewSyncHandler(syncService, logger)
	healthHandler := rest.NewHealthHandler(pool, BuildVersion())

	// Separate limiters so batch submission and status polling get their
	// own per-IP budgets.
	batchLimiter := middleware.NewRateLimiter(time.Minute)
	defer batchLimiter.Stop()
	statusLimiter := middleware.NewRateLimiter(time.Minute)
	defer statusLimiter.Stop()

	authorized := middleware.Auth(&ctxValidator{jwt: jwtManager})
	write := middleware.Chain(authorized, batchLimiter.Limit(cfg.Sync.RatePerMinute))
	read := middleware.Chain(authorized, statusLimiter.Limit(cfg.Sync.StatusRatePerMin))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /live", healthHandler.Live)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("POST /api/sync/batch", write(http.HandlerFunc(syncHandler.ProcessBatch)))
	mux.Handle("POST /api/sync/resolve", write(http.HandlerFunc(syncHandler.ResolveConflict)))
	mux.Handle("GET /api/sync/status", read(http.HandlerFunc(syncHandler.Status)))
	mux.Handle("GET /api/sync/conflicts", read(http.HandlerFunc(syncHandler.ListConflicts)))

	handler := middleware.Chain(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.CORS(cfg.CORS),
	)(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}

// applyMigrations runs pending goose migrations from the embedded FS.
// goose requires database/sql, so a short-lived connection is opened next
// to the pgx pool.
func applyMigrations(ctx context.Context, dsn string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	if len(results) > 0 {
		logger.Info("migrations applied", slog.Int("count", len(results)))
	}

	return nil
}
