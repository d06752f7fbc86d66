package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"
	"github.com/reliefconnect/api/internal/config"
	"github.com/reliefconnect/api/internal/database"
	"github.com/reliefconnect/api/internal/logging"
	"github.com/reliefconnect/api/internal/mission"
	"github.com/reliefconnect/api/internal/reconcile"
	"github.com/reliefconnect/api/internal/report"
	"github.com/reliefconnect/api/internal/store"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Show what would be repaired without writing")
	workers := flag.Int("workers", 4, "Number of parallel workers")
	batch := flag.Int("batch", 500, "Maximum stuck missions handled per run")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall deadline")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to read .env")
	}
	cfg := config.Load()
	logging.Setup(cfg.LogFormat, cfg.LogLevel)

	startTime := time.Now()
	log.WithField("dry_run", *dryRun).Info("starting reconcile job")

	db, err := database.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	s := store.NewGormStore(db)
	r := reconcile.New(s, mission.NewEngine(s), report.NewAggregator(s))
	sum, err := r.Run(ctx, reconcile.Options{Workers: *workers, BatchSize: *batch, DryRun: *dryRun})
	cancel()
	if err != nil {
		log.WithError(err).Fatal("reconcile failed")
	}

	log.WithFields(log.Fields{
		"stuck_missions":     sum.StuckMissions,
		"requests_completed": sum.RequestsCompleted,
		"failures":           sum.Failures,
		"cancelled":          len(sum.Cancelled),
		"elapsed":            time.Since(startTime).String(),
	}).Info("reconcile complete")

	if sum.Failures > 0 {
		os.Exit(1)
	}
}
