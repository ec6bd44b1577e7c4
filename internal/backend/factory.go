package backend

import (
	"context"
	"fmt"
	"log/slog"

	"kwitansi/internal/adapters"
	"kwitansi/internal/amqp"
	"kwitansi/internal/apiclient"
	"kwitansi/internal/auth"
	"kwitansi/internal/memory"
	"kwitansi/internal/services"
	"kwitansi/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case APIBackend:
		return f.createAPIBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createAPIBackend(config Config) (*BackendResult, error) {
	client, err := apiclient.New(config.APIBaseURL, config.APITimeout, apiclient.WithRetries(config.APIRetries))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}

	f.logger.Info("Initialized remote API backend",
		"base_url", config.APIBaseURL,
		"timeout", config.APITimeout,
		"retries", config.APIRetries)

	return &BackendResult{Backend: client}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; the worker sweep catches receipts without events
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	receiptService := services.NewReceiptService(sqliteRepo, publisher)
	issuer := auth.NewIssuer(config.SessionSecret, config.SessionTTL)
	adapter := adapters.NewSQLiteAdapter(sqliteRepo, receiptService, issuer)

	if err := adapter.EnsureUser(ctx, config.AdminUsername, "Administrator", config.AdminPassword); err != nil {
		receiptService.Close()
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Backend: adapter,
		Cleanup: receiptService.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store := memory.New(auth.NewIssuer(config.SessionSecret, config.SessionTTL))

	if config.SeedDemoData {
		if err := store.Seed(ctx, config.AdminUsername, config.AdminPassword); err != nil {
			return nil, fmt.Errorf("failed to seed memory backend: %w", err)
		}
	} else if err := store.AddUser(config.AdminUsername, "Administrator", config.AdminPassword); err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seeded", config.SeedDemoData)

	return &BackendResult{
		Backend: store,
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}
