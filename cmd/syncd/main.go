package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ImadMoka/Maily-app-v1-sub001/internal/config"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/fetch"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/imapconn"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/store"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/sync"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/task"
)

var (
	version     = "dev"
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("maily-syncd version %s\n", version)
		os.Exit(0)
	}

	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	// Set up logging
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	// Set log level
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.Info("Starting mailbox sync daemon")

	// Initialize store
	db, err := store.NewDB(cfg.StorePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize store")
	}
	defer db.Close()

	st := store.NewStore(db, logger)

	// Initialize accounts in the store
	for i := range cfg.Accounts {
		if _, err := st.UpsertAccount(&cfg.Accounts[i]); err != nil {
			logger.WithError(err).WithField("account", cfg.Accounts[i].Name).Warn("Failed to store account")
		}
	}

	// Wire the sync engine: one session cache shared by every task
	sessionCache := imapconn.NewCache(cfg.SessionTTL, logger)
	defer sessionCache.Close()

	dialer := imapconn.NewDialer(logger)
	fetcher := fetch.NewFetcher(sessionCache, dialer, logger)
	syncer := sync.NewSyncer(cfg, fetcher, st, logger)
	queue := task.NewQueue(syncer, task.Options{MaxRetries: cfg.MaxRetries}, logger)

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Kick off the first sync for every account, then re-enqueue on a timer.
	// Duplicate requests for an account still mid-sync coalesce in the queue.
	enqueueAll(ctx, queue, cfg, logger)

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			enqueueAll(ctx, queue, cfg, logger)
		case sig := <-sigChan:
			logger.WithField("signal", sig).Info("Received shutdown signal")
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := queue.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Warn("Timed out waiting for sync tasks")
			}

			logger.Info("Shutting down mailbox sync daemon")
			return
		}
	}
}

func enqueueAll(ctx context.Context, queue *task.Queue, cfg *config.Config, logger *logrus.Logger) {
	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		taskID := queue.Enqueue(ctx, acc.UserID, acc.Name)
		logger.WithFields(logrus.Fields{
			"account": acc.Name,
			"task":    taskID,
		}).Debug("Enqueued sync")
	}
}
