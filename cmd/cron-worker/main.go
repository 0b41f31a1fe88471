package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orato-ai/orato-backend/internal/cron"
	"github.com/orato-ai/orato-backend/internal/entitlements"
	"github.com/orato-ai/orato-backend/internal/events"
	"github.com/orato-ai/orato-backend/internal/reconcile"
	"github.com/orato-ai/orato-backend/pkg/config"
	"github.com/orato-ai/orato-backend/pkg/db"
	"github.com/orato-ai/orato-backend/pkg/logger"
	"github.com/orato-ai/orato-backend/pkg/metrics"
	"github.com/orato-ai/orato-backend/pkg/migrate"
	"github.com/orato-ai/orato-backend/pkg/outbox"
	"github.com/orato-ai/orato-backend/pkg/redis"
)

const lockKeyFormat = "orato:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	reconcileMetrics := metrics.NewReconcileMetrics(prometheus.DefaultRegisterer)

	eventsRepo := events.NewRepository(dbClient.DB())
	entitlementsRepo := entitlements.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	applier, err := reconcile.NewApplier(reconcile.ApplierParams{
		Logger:            logg,
		TransactionRunner: dbClient,
		Entitlements:      entitlementsRepo,
		Outbox:            outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create action applier", err)
		os.Exit(1)
	}

	reconciler, err := reconcile.NewService(reconcile.ServiceParams{
		Logger:       logg,
		Events:       eventsRepo,
		Entitlements: entitlementsRepo,
		Applier:      applier,
		Metrics:      reconcileMetrics,
		Lookback:     cfg.Reconcile.Lookback(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewEntitlementReconcileJob(cron.EntitlementReconcileJobParams{
		Logger:     logg,
		Reconciler: reconciler,
		DryRun:     cfg.Reconcile.DryRun,
		LimitUsers: cfg.Reconcile.LimitUsers,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob, retentionJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	startOpsServer(ctx, logg, cfg.Ops, dbClient, redisClient)

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
