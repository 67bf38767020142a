package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"IndexForge/internal/config"
	"IndexForge/internal/pipeline"
	"IndexForge/internal/provider"
	"IndexForge/internal/scheduler"
	"IndexForge/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] IndexForge starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init provider
	var prov provider.Provider
	if cfg.DataSource.BaseURL != "" {
		prov = provider.NewRESTProvider(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	} else {
		prov = provider.NewYahooProvider(cfg.Proxy)
	}
	log.Printf("[INFO] data source: %s", prov.Name())
	prov = provider.NewRetryingProvider(prov)

	// Init store
	var st store.Store
	if cfg.Database.SQLitePath != "" {
		ss, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite store failed, using in-memory: %v", err)
			st = store.NewMemoryStore()
		} else {
			st = ss
			defer ss.Close()
			if err := ss.SeedAssets(cfg.Index.Universe); err != nil {
				log.Fatalf("[FATAL] seed assets: %v", err)
			}
		}
	} else {
		st = store.NewMemoryStore()
	}

	// Version the configured strategy if no config is active yet.
	now := time.Now().UTC()
	if _, ok, err := st.ActiveConfig(now); err != nil {
		log.Fatalf("[FATAL] load active config: %v", err)
	} else if !ok {
		sc := cfg.Strategy.WithDefaults(now)
		if err := st.SaveConfigVersion(sc); err != nil {
			log.Fatalf("[FATAL] save strategy config: %v", err)
		}
		log.Printf("[INFO] strategy config versioned: %s (%s/%s)", sc.Version, sc.Method, sc.Frequency)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init orchestrator
	orch := &pipeline.Orchestrator{
		Ctx: pipeline.EngineContext{
			IndexID:       cfg.Index.ID,
			Universe:      cfg.Index.Universe,
			Benchmark:     cfg.Index.Benchmark,
			Store:         st,
			Provider:      prov,
			SnapshotPath:  cfg.SnapshotPath,
			Now:           func() time.Time { return time.Now().UTC() },
			MetricWindows: []int{30, 90, 252},
		},
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx)
	if err := sched.Register(cfg.Schedule.RefreshCron, orch); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing refresh now")
		go sched.RunAllNow()
	}

	log.Println("[INFO] IndexForge is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] IndexForge stopped")
}
