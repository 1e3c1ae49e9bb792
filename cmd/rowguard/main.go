package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/rowguard/internal/app"
	"github.com/odyssey-erp/rowguard/internal/documents"
	"github.com/odyssey-erp/rowguard/internal/guard"
	"github.com/odyssey-erp/rowguard/internal/observability"
	"github.com/odyssey-erp/rowguard/internal/platform/cache"
	"github.com/odyssey-erp/rowguard/internal/platform/db"
	"github.com/odyssey-erp/rowguard/internal/policy"
	"github.com/odyssey-erp/rowguard/internal/shared"
	"github.com/odyssey-erp/rowguard/internal/store"
	"github.com/odyssey-erp/rowguard/internal/store/pgstore"
	"github.com/odyssey-erp/rowguard/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("rowguard", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnIdleTime: cfg.PGMaxIdleTime})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	schema := pgstore.NewSchema()
	if err := documents.RegisterTables(schema); err != nil {
		return err
	}
	policies := policy.NewRegistry()
	if err := documents.RegisterPolicies(policies, documents.NewRepository(pool)); err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	guardOpts := []guard.Option{guard.WithObserver(metrics)}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	if cfg.AuditDenials {
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			return err
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		guardOpts = append(guardOpts, guard.WithDenialRecorder(jobClient))
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction()),
		Policies:         policies,
		NewStore:         func() store.Session { return pgstore.NewUnitOfWork(pool, schema) },
		GuardOptions:     guardOpts,
		DocumentsHandler: documents.NewHandler(logger, documents.NewService()),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Int("policies", len(policies.Types())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppShutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
