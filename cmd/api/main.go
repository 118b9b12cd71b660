package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salescrm_backend/internal/adapters/storage"
	"salescrm_backend/internal/events"
	apphttp "salescrm_backend/internal/http"
	"salescrm_backend/internal/http/router"
	"salescrm_backend/internal/notification"
	"salescrm_backend/internal/opportunities"
	"salescrm_backend/internal/scheduler"
	"salescrm_backend/platform/config"
	"salescrm_backend/platform/db"
	"salescrm_backend/platform/logger"
	"salescrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)

	notifyScheduler, closeScheduler := initNotificationScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}
	// Drain in-flight event handlers before the scheduler client closes.
	defer eventBus.Wait()

	storageSvc := initStorage(ctx, cfg, log)

	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	notification.New(notifyScheduler, log).RegisterHandlers(eventBus)

	opportunitiesModule, err := opportunities.NewModule(pool, eventBus, storageSvc, val, cfg, log)
	if err != nil {
		log.Error("failed to initialize opportunities module", "error", err)
		panic("failed to initialize opportunities module: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.PoolAdapter{Pool: pool},
		EventBus: eventBus,
		Modules: []apphttp.Module{
			opportunitiesModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initNotificationScheduler returns nil when Redis is not configured so the
// API still serves pipeline updates without assignment emails.
func initNotificationScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.NotificationScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; assignment notifications disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize notification scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// initStorage returns a nil interface when MinIO is disabled; upload
// presigning is then unavailable but attachment registration still works.
func initStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) storage.StorageService {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; attachment upload presigning disabled")
		return nil
	}

	svc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	bucket := cfg.GetMinioBucketOpportunityAttachments()
	if err := withRetry(ctx, log, "ensure opportunity-attachments bucket", 5, 2*time.Second, func() error {
		return svc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "opportunityAttachmentsBucket", bucket)
	return svc
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
