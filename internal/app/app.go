package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dhima/followup-engine/internal/channel"
	"github.com/dhima/followup-engine/internal/events"
	"github.com/dhima/followup-engine/internal/scheduler"
	"github.com/dhima/followup-engine/internal/sequences"
	"github.com/dhima/followup-engine/internal/storage"
	"github.com/dhima/followup-engine/internal/triggers"
	"github.com/dhima/followup-engine/pkg/config"
	platformEvents "github.com/dhima/followup-engine/platform/events"
	"go.uber.org/zap"
)

// App holds the wired components shared by the api, scheduler and CLI binaries.
type App struct {
	DB        *sql.DB
	Store     *storage.MySQLClient
	Engine    *scheduler.Engine
	Poller    *scheduler.Poller
	Sequences *sequences.Service
	Events    *events.Service

	closers []func() error
	logger  *zap.Logger
}

// Build opens the state store and wires the engine around it.
func Build(ctx context.Context, cfg config.App, logger *zap.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store := storage.NewMySQLClient(db)

	a := &App{DB: db, Store: store, logger: logger}
	a.closers = append(a.closers, db.Close)

	send, err := a.sendChannel(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var publisher events.EventPublisher
	if brokers := cfg.KafkaBrokerList(); cfg.KafkaEnabled && len(brokers) > 0 {
		p := platformEvents.NewPublisher(brokers, cfg.KafkaTopic, logger)
		a.closers = append(a.closers, p.Close)
		publisher = p
	}

	a.Events = events.NewService(store, publisher, logger)
	a.Sequences = sequences.NewService(store, logger)
	a.Engine = scheduler.NewEngine(
		store,
		triggers.NewEvaluator(store, logger),
		send,
		a.Events,
		logger,
		scheduler.WithMaxConcurrency(cfg.MaxConcurrency),
		scheduler.WithBatchLimit(cfg.BatchLimit),
		scheduler.WithSendTimeout(cfg.SendTimeout),
		scheduler.WithStoreTimeout(cfg.StoreTimeout),
		scheduler.WithObservers(a.Events),
	)
	a.Poller = scheduler.NewPoller(a.Engine, cfg.PollInterval, cfg.BatchLimit, logger)

	logger.Info("components wired",
		zap.String("send_channel", cfg.SendChannel),
		zap.Bool("kafka_enabled", publisher != nil),
		zap.Int("max_concurrency", a.Engine.MaxConcurrency()),
		zap.Int("batch_limit", a.Engine.BatchLimit()))
	return a, nil
}

func (a *App) sendChannel(cfg config.App) (scheduler.SendChannel, error) {
	switch cfg.SendChannel {
	case "amqp":
		ch, err := channel.NewAMQPChannel(cfg.AMQPURL, cfg.AMQPQueue, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, ch.Close)
		return ch, nil
	case "log", "":
		return channel.NewLogChannel(a.logger), nil
	default:
		return nil, fmt.Errorf("unknown send channel %q", cfg.SendChannel)
	}
}

// Close stops the poller and releases connections in reverse order.
func (a *App) Close() error {
	if a.Poller != nil {
		a.Poller.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
