package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"kwitansi/internal/amqp"
	"kwitansi/internal/core"
	"kwitansi/internal/storage"
)

// EventPublisher announces receipt changes to the worker.
type EventPublisher interface {
	PublishReceiptEvent(ctx context.Context, id, version int64, t amqp.EventType) error
	Close() error
}

// ReceiptService orchestrates receipt writes across SQLite and AMQP
type ReceiptService struct {
	storage   *storage.SQLiteRepository
	publisher EventPublisher
	newToken  func() string
}

// NewReceiptService wires the repository with an optional publisher.
func NewReceiptService(storage *storage.SQLiteRepository, publisher EventPublisher) *ReceiptService {
	return &ReceiptService{
		storage:   storage,
		publisher: publisher,
		newToken:  uuid.NewString,
	}
}

// CreateReceipt validates and saves a draft locally, then announces it.
func (s *ReceiptService) CreateReceipt(ctx context.Context, d core.ReceiptDraft, createdBy *core.User) (int64, error) {
	d.Prepare()
	if err := d.Validate(); err != nil {
		return 0, err
	}

	id, err := s.storage.CreateReceipt(ctx, d, createdBy, s.newToken())
	if err != nil {
		return 0, fmt.Errorf("save receipt: %w", err)
	}

	// new receipts start at version 1
	s.publish(ctx, id, 1, amqp.EventReceiptCreated)
	return id, nil
}

// UpdateReceipt replaces a receipt's contents with the draft.
func (s *ReceiptService) UpdateReceipt(ctx context.Context, id int64, d core.ReceiptDraft) error {
	d.Prepare()
	if err := d.Validate(); err != nil {
		return err
	}
	if err := s.storage.UpdateReceipt(ctx, id, d); err != nil {
		return fmt.Errorf("update receipt: %w", err)
	}
	s.publishCurrent(ctx, id, amqp.EventReceiptUpdated)
	return nil
}

// MarkPaid settles a receipt in full.
func (s *ReceiptService) MarkPaid(ctx context.Context, id int64) error {
	if err := s.storage.MarkPaid(ctx, id); err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	s.publishCurrent(ctx, id, amqp.EventReceiptPaid)
	return nil
}

func (s *ReceiptService) publishCurrent(ctx context.Context, id int64, t amqp.EventType) {
	version, err := s.storage.ReceiptVersion(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read receipt version", "id", id, "error", err)
		return
	}
	s.publish(ctx, id, version, t)
}

// publish never fails the request: the receipt is already stored and the
// sweep picks up anything the worker missed.
func (s *ReceiptService) publish(ctx context.Context, id, version int64, t amqp.EventType) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping receipt event", "id", id, "type", t)
		return
	}
	if err := s.publisher.PublishReceiptEvent(ctx, id, version, t); err != nil {
		slog.ErrorContext(ctx, "Failed to publish receipt event",
			"id", id, "version", version, "type", t, "error", err)
	}
}

// Close closes both storage and AMQP connections
func (s *ReceiptService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close receipt service: %v", errs)
	}

	return nil
}
