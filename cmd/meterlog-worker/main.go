package main

import (
	"context"
	"errors"
	"os"
	"time"

	"meterlog/internal/amqp"
	"meterlog/internal/cli"
	gsheet "meterlog/internal/sheets/google"
	"meterlog/internal/storage"
	"meterlog/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting meterlog-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := cli.SignalContext()
	defer stop()

	// Google Sheets export is optional. Without a spreadsheet the worker
	// only drains the queue so the broker does not fill up.
	var sheetsClient *gsheet.Client
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err = gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.WaterSheetName, cfg.ElectricitySheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	var syncWorker *worker.SyncWorker
	if sheetsClient != nil {
		syncWorker = worker.NewSyncWorker(repo, sheetsClient, sheetsClient, cfg.SyncBatchSize)

		// Catch up on rows written while the worker was down.
		logger.Info("Performing startup sync check...")
		if err := syncWorker.StartupSyncCheck(ctx); err != nil {
			logger.Error("Failed startup sync check", "error", err)
		}

		go func() {
			// Periodic sweep for rows whose message got lost.
			ticker := time.NewTicker(cfg.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := syncWorker.ProcessPendingBills(ctx); err != nil {
						logger.Error("Periodic sync failed", "error", err)
					}
				}
			}
		}()
	} else {
		logger.Info("Skipping sync operations - no Google Sheets client available")
	}

	onSync := func(msg *amqp.BillSyncMessage) error {
		if syncWorker == nil {
			return nil
		}
		return syncWorker.HandleSyncMessage(ctx, msg)
	}
	onDelete := func(msg *amqp.BillDeleteMessage) error {
		if syncWorker == nil {
			return nil
		}
		return syncWorker.HandleDeleteMessage(ctx, msg)
	}

	if err := amqpClient.Consume(ctx, onSync, onDelete); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
