package main

import (
	"context"
	"errors"
	"os"
	"time"

	"kwitansi/internal/amqp"
	"kwitansi/internal/cli"
	"kwitansi/internal/config"
	applog "kwitansi/internal/log"
	"kwitansi/internal/notify"
	"kwitansi/internal/services"
	"kwitansi/internal/sheets"
	gsheet "kwitansi/internal/sheets/google"
	mem "kwitansi/internal/sheets/memory"
	"kwitansi/internal/worker"
)

func main() {
	logger := cli.SetupLogger(applog.ComponentWorker)
	cli.LoadEnvFile(logger)

	logger.Info("Starting kwitansi-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	// Initialize SQLite repository to read pending receipts
	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	ledger := newLedger(ctx, logger, cfg)
	notifier := newNotifier(logger, cfg)
	syncWorker := worker.NewSyncWorker(sqliteRepo, ledger, notifier, cfg.SyncBatchSize)

	// On startup, process any pending receipts that might have been missed
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	// The sweep catches receipts whose event never arrived
	processor := services.NewSyncProcessor(syncWorker.ProcessPendingReceipts, services.SyncProcessorConfig{
		Schedule: cfg.SyncSchedule,
	})
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := amqpClient.ConsumeReceiptEvents(ctx, syncWorker.HandleReceiptEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
				stop()
			}
		}()
	} else {
		logger.Info("AMQP disabled, relying on the scheduled sweep", "schedule", cfg.SyncSchedule)
	}

	<-ctx.Done()
	logger.Info("Shutting down worker...")

	cli.RunCleanup(logger, 30*time.Second,
		processor.Stop,
		func(context.Context) error {
			if amqpClient == nil {
				return nil
			}
			return amqpClient.Close()
		},
	)
}

// newLedger uses Google Sheets when a spreadsheet is configured and an
// in-process ledger otherwise.
func newLedger(ctx context.Context, logger *applog.Logger, cfg *config.Config) sheets.LedgerWriter {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, using memory ledger")
		return mem.New()
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client
}

func newNotifier(logger *applog.Logger, cfg *config.Config) notify.Notifier {
	if !cfg.TwilioEnabled() {
		logger.Info("Twilio disabled - share links are only logged")
		return notify.LogNotifier{PublicURL: cfg.PublicURL}
	}
	logger.Info("Twilio notifier initialized",
		"sms", cfg.TwilioPhoneNumber != "",
		"whatsapp", cfg.TwilioWhatsAppNumber != "")
	return notify.NewTwilio(notify.Config{
		AccountSID:     cfg.TwilioAccountSID,
		AuthToken:      cfg.TwilioAuthToken,
		PhoneNumber:    cfg.TwilioPhoneNumber,
		WhatsAppNumber: cfg.TwilioWhatsAppNumber,
		PublicURL:      cfg.PublicURL,
	})
}
