package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mcpherson-lab/pubsync/internal/api"
	"github.com/mcpherson-lab/pubsync/internal/collector"
	"github.com/mcpherson-lab/pubsync/internal/config"
	"github.com/mcpherson-lab/pubsync/internal/domain"
	"github.com/mcpherson-lab/pubsync/internal/history"
	"github.com/mcpherson-lab/pubsync/internal/storage"
	"github.com/mcpherson-lab/pubsync/internal/storage/postgres"
	"github.com/mcpherson-lab/pubsync/internal/storage/sqlite"
	"github.com/mcpherson-lab/pubsync/internal/syncer"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	roster, err := config.LoadRoster(cfg.RosterPath)
	if err != nil {
		log.Fatalf("Failed to load roster: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize storage
	var store storage.Storage
	switch cfg.StorageType {
	case "postgres":
		store, err = postgres.NewPostgresStorage(cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL storage: %v", err)
		}
	default:
		store, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite storage: %v", err)
		}
	}
	defer store.Close()

	coll := collector.NewGitHubCollector(cfg.GitHubToken, logger)
	siteFS := osfs.New(cfg.SiteRoot)

	// One run at a time: the scheduler and the sync endpoint share the lock
	var runMu sync.Mutex
	trigger := func(ctx context.Context, member string, dryRun bool) (*domain.SyncRun, error) {
		runMu.Lock()
		defer runMu.Unlock()

		s := syncer.New(roster, coll, siteFS, logger, syncer.Options{
			DryRun: dryRun,
			Member: member,
		})
		run, err := s.Run(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.HistoryEnabled && !dryRun {
			if err := store.SaveRun(ctx, run); err != nil {
				logger.Warn("failed to record run", zap.Error(err))
			}
		}
		return run, nil
	}

	// Scheduled syncs
	if schedule := roster.SyncConfig.Schedule; schedule != "" {
		c := cron.New()
		_, err := c.AddFunc(schedule, func() {
			if _, err := trigger(context.Background(), "", false); err != nil {
				logger.Error("scheduled sync failed", zap.Error(err))
			}
		})
		if err != nil {
			log.Fatalf("Invalid sync schedule %q: %v", schedule, err)
		}
		c.Start()
		defer c.Stop()
		logger.Info("scheduler started", zap.String("schedule", schedule))
	}

	// Initialize handler
	handler := api.NewHandler(history.New(store), roster, trigger)

	// Setup routes
	router := api.SetupRoutes(handler)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	fmt.Printf("Starting API server on %s\n", addr)
	fmt.Printf("Storage type: %s\n", cfg.StorageType)

	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}
