package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dhima/followup-engine/internal/app"
	"github.com/dhima/followup-engine/internal/logging"
	"github.com/dhima/followup-engine/internal/scheduler"
	"github.com/dhima/followup-engine/pkg/config"
	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()

	logger, err := logging.NewLoggerWithEncoding(cfg.Environment, cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if len(cfg.SchedulerOrgIDs) == 0 {
		logger.Fatal("SCHEDULER_ORG_IDS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger.Zap())
	if err != nil {
		logger.Fatal("failed to wire scheduler", zap.Error(err))
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Error("failed to release resources", zap.Error(err))
		}
	}()

	logger.Info("starting scheduler",
		zap.Strings("org_ids", cfg.SchedulerOrgIDs),
		zap.Duration("interval", cfg.PollInterval),
		zap.Int("batch_limit", cfg.BatchLimit))

	err = scheduler.Run(ctx, components.Engine, cfg.PollInterval, cfg.BatchLimit, logger.Zap(), cfg.SchedulerOrgIDs...)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler stopped", zap.Error(err))
		return
	}
	logger.Info("scheduler stopped")
}
