package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"habitual/internal/amqp"
	"habitual/internal/cli"
	"habitual/internal/config"
	applog "habitual/internal/log"
	"habitual/internal/sheets"
	gsheet "habitual/internal/sheets/google"
	memsheet "habitual/internal/sheets/memory"
	"habitual/internal/storage"
	"habitual/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentWorker)

	logger.Info("Starting habitual-worker")

	ctx, stop := cli.SignalContext(logger)
	defer stop()
	ctx = applog.NewContext(ctx, logger)

	// The worker reads habits and users from the same database as the server.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var appender sheets.EntryAppender
	if cfg.SheetsEnabled() {
		client, err := gsheet.NewClient(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		appender = client
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		appender = memsheet.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, rows are kept in memory only")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(repo, appender)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeEntryToggled(gctx, mirror.HandleEntryToggled)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
