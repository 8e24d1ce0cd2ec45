package main

import (
	"context"
	"flag"
	"math/rand/v2"
	"os"
	"time"

	"habitual/internal/cli"
	"habitual/internal/config"
	applog "habitual/internal/log"
	"habitual/internal/services"
	"habitual/internal/storage"
)

func main() {
	seed := flag.Uint64("seed", 0, "random seed for completion draws (0 picks one)")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadConfig((*config.Config).Validate)
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentSeed)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var rng *rand.Rand
	if *seed != 0 {
		rng = rand.New(rand.NewPCG(*seed, *seed))
	}

	result, err := services.NewSeeder(repo, rng).Seed(context.Background(), time.Now())
	if err != nil {
		logger.Error("Seeding failed", applog.FieldError, err)
		repo.Close()
		os.Exit(1)
	}

	logger.Info("Seed complete",
		applog.FieldUserID, result.User.ID,
		"habits", len(result.Habits),
		"entries", result.Entries,
		"completed", result.Completed)
}
