package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"

	"github.com/apex/log"
	"github.com/joho/godotenv"
	"github.com/reliefconnect/api/internal/config"
	"github.com/reliefconnect/api/internal/database"
	"github.com/reliefconnect/api/internal/lifecycle"
	"github.com/reliefconnect/api/internal/logging"
	"github.com/reliefconnect/api/internal/store"
)

func main() {
	filePath := flag.String("file", "data/seed_requests.json", "Path to a JSON array of requests")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to read .env")
	}
	cfg := config.Load()
	logging.Setup(cfg.LogFormat, cfg.LogLevel)

	inputs, err := loadRequests(*filePath)
	if err != nil {
		log.WithError(err).Fatal("failed to load seed file")
	}
	log.WithField("count", len(inputs)).Infof("seeding requests from %s", *filePath)

	db, err := database.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	// Seed rows go through the lifecycle manager so they get the same
	// validation and defaults as API-created requests.
	requests := lifecycle.NewManager(store.NewGormStore(db))
	ctx := context.Background()

	inserted, skipped := 0, 0
	for i, in := range inputs {
		if _, err := requests.CreateRequest(ctx, in); err != nil {
			log.WithError(err).WithField("index", i).Warn("skipping request")
			skipped++
			continue
		}
		inserted++
	}

	log.WithFields(log.Fields{"inserted": inserted, "skipped": skipped}).Info("seeding complete")
}

func loadRequests(path string) ([]lifecycle.CreateRequestInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var inputs []lifecycle.CreateRequestInput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, err
	}
	return inputs, nil
}
