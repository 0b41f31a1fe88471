package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/orato-ai/orato-backend/internal/entitlements"
	"github.com/orato-ai/orato-backend/internal/events"
	"github.com/orato-ai/orato-backend/internal/reconcile"
	"github.com/orato-ai/orato-backend/pkg/config"
	"github.com/orato-ai/orato-backend/pkg/db"
	"github.com/orato-ai/orato-backend/pkg/logger"
	"github.com/orato-ai/orato-backend/pkg/outbox"
)

// One-shot reconciliation runner for operators: audit drift with -dry-run,
// stage a rollout with -limit-users, or heal a specific window with -since.
func main() {
	logg := logger.New(logger.Options{ServiceName: "reconcile"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	dryRun := flag.Bool("dry-run", false, "compute and print actions without applying them")
	sinceFlag := flag.String("since", "", "override the lookback checkpoint (RFC3339)")
	limitUsers := flag.Int("limit-users", 0, "cap the number of users processed (0 = no cap)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "reconcile"

	logg = logger.New(logger.Options{
		ServiceName: "reconcile",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	params := reconcile.RunParams{
		DryRun:     *dryRun || cfg.Reconcile.DryRun,
		LimitUsers: *limitUsers,
	}
	if params.LimitUsers == 0 {
		params.LimitUsers = cfg.Reconcile.LimitUsers
	}
	if *sinceFlag != "" {
		since, err := time.Parse(time.RFC3339, *sinceFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -since %q: %v\n", *sinceFlag, err)
			os.Exit(2)
		}
		params.Since = &since
	}

	ctx := context.Background()
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	entitlementsRepo := entitlements.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())

	applier, err := reconcile.NewApplier(reconcile.ApplierParams{
		Logger:            logg,
		TransactionRunner: dbClient,
		Entitlements:      entitlementsRepo,
		Outbox:            outbox.NewService(outboxRepo, logg),
	})
	if err != nil {
		logg.Error(ctx, "failed to create action applier", err)
		os.Exit(1)
	}

	service, err := reconcile.NewService(reconcile.ServiceParams{
		Logger:       logg,
		Events:       events.NewRepository(dbClient.DB()),
		Entitlements: entitlementsRepo,
		Applier:      applier,
		Lookback:     cfg.Reconcile.Lookback(),
	})
	if err != nil {
		logg.Error(ctx, "failed to create reconcile service", err)
		os.Exit(1)
	}

	summary, runErr := service.Run(ctx, params)
	if summary != nil {
		encoded, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			logg.Error(ctx, "failed to encode summary", err)
			os.Exit(1)
		}
		fmt.Println(string(encoded))
	}
	if runErr != nil {
		logg.Error(ctx, "reconciliation finished with failures", runErr)
		os.Exit(1)
	}
}
