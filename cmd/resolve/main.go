// Package main drives one season through its resolution lifecycle and
// exits. Exit codes: 0 on success, 2 when randomness is still pending
// (retry later), 1 on any other failure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"sof-orchestrator/internal/config"
	"sof-orchestrator/internal/ledger"
	"sof-orchestrator/internal/lifecycle"
	"sof-orchestrator/internal/storage"
	"sof-orchestrator/internal/storage/migrations"
	pgstore "sof-orchestrator/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	seasonID := flag.Uint64("season", 0, "Season to resolve (required)")
	poll := flag.Duration("poll", 0, "VRF poll interval (overrides config)")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall resolution deadline")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *seasonID == 0 {
		log.Fatal("--season is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("Received signal %v, aborting", sig)
		cancel()
	}()

	client := ledger.NewHTTPClient(cfg.Chain.HTTPURL, ledger.WithWaitTimeout(cfg.ConfirmTimeout()))
	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.Fatalf("Read chain id: %v", err)
	}
	session := &ledger.Session{
		Account: cfg.AccountAddress(),
		ChainID: chainID,
		Client:  client,
	}

	// Snapshots are optional: written only when PostgreSQL is configured.
	var snapshots storage.SeasonSnapshotStore
	if cfg.Database.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Database.PostgresDSN)
		if err != nil {
			log.Fatalf("Connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			log.Fatalf("Run migrations: %v", err)
		}
		snapshots = pgstore.NewSeasonSnapshotStore(pool)
	}

	lcCfg := lifecycle.DefaultConfig(cfg.RaffleAddress())
	lcCfg.Confirmations = cfg.Chain.Confirmations
	lcCfg.VRFPollInterval = cfg.VRFPollInterval()
	if *poll > 0 {
		lcCfg.VRFPollInterval = *poll
	}

	sink := func(message string) { fmt.Println(message) }
	orchestrator := lifecycle.NewOrchestrator(lcCfg, log, sink, snapshots)

	result, err := orchestrator.Resolve(ctx, session, *seasonID)
	switch {
	case err == nil:
		fmt.Printf("season %d resolved: %s (%d transactions)\n", *seasonID, result.FinalStatus, len(result.TxHashes))
	case errors.Is(err, lifecycle.ErrVRFPending):
		fmt.Printf("season %d: randomness not yet fulfilled, retry later\n", *seasonID)
		os.Exit(2)
	default:
		log.Fatalf("Resolve season %d: %v", *seasonID, err)
	}
}
