package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/travelsafe/security-barometer/internal/api"
	"github.com/travelsafe/security-barometer/internal/archive"
	"github.com/travelsafe/security-barometer/internal/config"
	"github.com/travelsafe/security-barometer/internal/events"
	"github.com/travelsafe/security-barometer/internal/feeds"
	"github.com/travelsafe/security-barometer/internal/ingest"
	"github.com/travelsafe/security-barometer/internal/monitor"
	"github.com/travelsafe/security-barometer/internal/storage"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load("./config")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Connect to NATS with more options
	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.DrainTimeout(30 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS connection error",
				zap.String("subject", sub.Subject),
				zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	// Connect with retry
	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(cfg.NATS.URLs[0], opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	logger.Info("Connected to NATS successfully",
		zap.String("url", nc.ConnectedUrl()))

	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	publisher := events.NewPublisher(logger, js)
	if err := publisher.Start(); err != nil {
		logger.Fatal("Failed to initialize event stream", zap.Error(err))
	}

	// Open the incident store and run migrations
	store, err := storage.NewPostgresStore(logger, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to open incident store", zap.Error(err))
	}
	defer store.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.RunMigrations(migrateCtx); err != nil {
		migrateCancel()
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrateCancel()

	// Open the local ingest journal
	journal, err := ingest.NewSQLiteJournal(logger, cfg.Journal.Path)
	if err != nil {
		logger.Fatal("Failed to open ingest journal", zap.Error(err))
	}
	defer journal.Close()

	metrics := monitor.NewMetrics()
	processor := ingest.NewProcessor(logger, store, journal, publisher, metrics, cfg.Integration)

	// Start the feed pollers
	cache := feeds.NewCache()
	polledFeeds := make([]feeds.PolledFeed, 0, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		if !feed.Enabled {
			continue
		}
		polledFeeds = append(polledFeeds, feeds.PolledFeed{
			Feed: feeds.Feed{
				Name:   feed.Name,
				URL:    feed.URL,
				APIKey: feed.APIKey,
			},
			Interval: feed.Interval,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller := feeds.NewPoller(logger, feeds.NewClient(logger), processor, metrics, cache, polledFeeds)
	poller.Start(ctx)
	defer poller.Stop()

	// Start the archive schedule
	evaluator := archive.NewEvaluator(logger, store, publisher, metrics, archive.DefaultRules)
	if cfg.Archive.Enabled {
		archiveScheduler := archive.NewScheduler(logger, evaluator)
		if err := archiveScheduler.Start(cfg.Archive.Schedule); err != nil {
			logger.Fatal("Failed to start archive schedule", zap.Error(err))
		}
		defer archiveScheduler.Stop()
	}

	// Periodically trim the local journal
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Journal.RetentionDays)
				if err := journal.DeleteBefore(ctx, cutoff); err != nil {
					logger.Error("Failed to trim ingest journal", zap.Error(err))
				}
			}
		}
	}()

	// Build the HTTP surface
	tokens := make(map[string]api.Role, len(cfg.Auth.Tokens))
	for token, role := range cfg.Auth.Tokens {
		tokens[token] = api.Role(role)
	}

	server := api.NewServer(logger, api.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Store:        store,
		AlertFeed:    cache,
		Ingestor:     processor,
		Archiver:     evaluator,
		Metrics:      metrics,
		Confidence:   cfg.Confidence,
		Tokens:       tokens,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}

	logger.Info("Server shutting down gracefully")
}
