package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"news_digest/internal/config"
	"news_digest/internal/llm"
	"news_digest/internal/mailer"
	"news_digest/internal/publisher"
	"news_digest/internal/scheduler"
	"news_digest/internal/service"
	"news_digest/internal/source/rss"
	"news_digest/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// The digest-event publisher is optional; without a broker URL the
	// pipeline simply skips event publishing.
	var digestPublisher service.DigestPublisher
	if cfg.RabbitMQ.URL != "" {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		digestPublisher = rabbitMQ
	}

	feedStore := postgres.NewFeedStore(db)
	digestStore := postgres.NewDigestStore(db)
	settingsStore := postgres.NewMailSettingsStore(db)
	scheduleStore := postgres.NewScheduleStore(db)
	activityStore := postgres.NewActivityStore(db)

	feedSource := rss.New(rss.Config{
		Timeout:      cfg.Fetch.Timeout,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		Retries:      cfg.Fetch.Retries,
		Backoff:      cfg.Fetch.Backoff,
	}, logger)

	textGenerator := llm.New(cfg.LLM)
	mailSender := mailer.NewSMTP(logger)

	checker := service.NewFeedChecker(feedSource, feedStore, activityStore, logger)
	collector := service.NewCollector(feedStore, checker, activityStore, logger, cfg.Digest)
	generator := service.NewGenerator(textGenerator, digestStore, activityStore, logger, cfg.Digest)
	delivery := service.NewDelivery(digestStore, settingsStore, mailSender, activityStore, logger)
	pipeline := service.NewPipeline(collector, generator, delivery, digestStore, digestPublisher, activityStore, logger)

	sched := scheduler.New(pipeline, scheduleStore, activityStore, logger)
	defer sched.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// restore the persisted schedule on boot
	state, err := scheduleStore.Get(ctx)
	if err != nil {
		logger.Error("failed to load schedule state", "error", err)
		os.Exit(1)
	}
	if err := sched.UpdateSchedule(ctx, state.Enabled, state.FrequencyHours); err != nil {
		logger.Error("failed to arm schedule", "error", err)
		os.Exit(1)
	}

	logger.Info("news digester started",
		"schedule_enabled", state.Enabled,
		"frequency_hours", state.FrequencyHours,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
