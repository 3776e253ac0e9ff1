package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"emergency-dispatch/internal/api"
	"emergency-dispatch/internal/audit"
	"emergency-dispatch/internal/config"
	"emergency-dispatch/internal/dispatch"
	"emergency-dispatch/internal/kafka"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/opsfeed"
	"emergency-dispatch/internal/providers"
	"emergency-dispatch/internal/queue"
	"emergency-dispatch/internal/ratelimit"
	"emergency-dispatch/internal/realtime"
	"emergency-dispatch/internal/services"
	"emergency-dispatch/internal/settings"
	"emergency-dispatch/internal/worker"
)

const (
	opsFeedPerSecond = 1
	shutdownTimeout  = 10 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the dispatch workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Close()
			return serve(cfg, logger)
		},
	}
}

func serve(cfg config.Config, logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		dbConn.Close()
		logger.Info("DB connection closed")
	}()

	senders, err := providers.FromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("providers init failed: %w", err)
	}

	var escalator dispatch.Escalator
	feed, err := opsfeed.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID, opsFeedPerSecond, logger)
	if err != nil {
		logger.Warnf("Ops feed disabled: %v", err)
	} else {
		escalator = feed
	}

	provider := settings.NewProvider(dbConn, logger)
	dispatcher := dispatch.New(dbConn, audit.New(dbConn), provider, senders, logger, dispatch.Options{
		ChannelTimeout:    cfg.Notification.ChannelTimeout,
		DefaultMaxRetries: cfg.Notification.DefaultMaxRetries,
		Escalator:         escalator,
	})

	processor := queue.NewProcessor(dbConn, dispatcher, logger)
	pool := worker.NewPool(cfg.Notification.MaxWorkers, cfg.Notification.QueueSize, processor.Process, logger)
	// Workers outlive ctx so Stop can drain what is already queued.
	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()
	pool.Start(poolCtx)

	var wg sync.WaitGroup
	var enqueuer queue.Enqueuer
	var consumer *kafka.Consumer
	var producer *kafka.Producer
	if cfg.Notification.AsyncDispatch {
		switch cfg.Notification.Backend {
		case config.BackendKafka:
			producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, pool, logger)
			consumer.Start(ctx, &wg)
			enqueuer = producer
			logger.Infof("Kafka dispatch initialized with topic: %s", cfg.Kafka.Topic)
		default:
			enqueuer = queue.NewMemoryQueue(pool)
			logger.Infof("In-process dispatch queue initialized (%d workers)", cfg.Notification.MaxWorkers)
		}
	} else {
		logger.Info("Dispatching alerts inline")
	}

	hub := realtime.NewHub(logger)
	svc := services.New(dbConn, dispatcher, logger, services.Options{Enqueuer: enqueuer, Publisher: hub})
	throttle := ratelimit.New(func(ctx context.Context) string {
		return provider.AlertCreationRate(ctx, cfg.RateLimit.AlertCreation)
	}, logger)

	router := api.NewRouter(api.NewHandler(svc, hub, logger), throttle, logger, cfg)
	srv := &http.Server{
		Addr:    cfg.API.Port,
		Handler: router,
	}
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API run failed: %v", err)
			cancel()
		}
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	cancel()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Errorf("Kafka consumer close failed: %v", err)
		}
	}
	wg.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Errorf("Kafka producer close failed: %v", err)
		}
	}
	pool.Stop()
	logger.Info("Service stopped")
	return nil
}
