package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kwitansi/internal/amqp"
	"kwitansi/internal/core"
	"kwitansi/internal/notify"
	"kwitansi/internal/ports"
	"kwitansi/internal/sheets"
	"kwitansi/internal/storage"
)

// Store is the part of the SQLite repository the worker needs.
type Store interface {
	GetReceipt(ctx context.Context, id int64) (core.Receipt, error)
	ReceiptVersion(ctx context.Context, id int64) (int64, error)
	GetPendingSyncReceipts(ctx context.Context, limit int) ([]storage.PendingSyncReceipt, error)
	MarkSynced(ctx context.Context, id, version int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker copies receipts from SQLite into the ledger spreadsheet and
// sends share links for new receipts.
type SyncWorker struct {
	storage   Store
	ledger    sheets.LedgerWriter
	notifier  notify.Notifier
	batchSize int
}

func NewSyncWorker(storage Store, ledger sheets.LedgerWriter, notifier notify.Notifier, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   storage,
		ledger:    ledger,
		notifier:  notifier,
		batchSize: batchSize,
	}
}

// HandleReceiptEvent processes a single receipt event from AMQP. Events for
// receipts that no longer exist are dropped.
func (w *SyncWorker) HandleReceiptEvent(ctx context.Context, msg *amqp.ReceiptEventMessage) error {
	slog.InfoContext(ctx, "Processing receipt event",
		"id", msg.ID,
		"version", msg.Version,
		"type", msg.Type)

	rc, err := w.syncReceipt(ctx, msg.ID)
	if errors.Is(err, ports.ErrNotFound) {
		slog.WarnContext(ctx, "Receipt of event not found, dropping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return err
	}

	if msg.Type == amqp.EventReceiptCreated && w.notifier != nil {
		// the ledger row is written, a failed message must not redeliver it
		if err := w.notifier.SendShareLink(ctx, rc); err != nil {
			slog.ErrorContext(ctx, "Failed to send share link",
				"id", rc.ID,
				"receipt_number", rc.ReceiptNumber,
				"error", err)
		}
	}
	return nil
}

// ProcessPendingReceipts syncs receipts whose latest version has not reached
// the ledger. This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingReceipts(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep when the worker starts, to recover
// from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced == 0 {
		slog.InfoContext(ctx, "No pending receipts found on startup")
	}
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.storage.GetPendingSyncReceipts(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending receipts: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending receipts", "count", len(pending))

	synced, failed := 0, 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if _, err := w.syncReceipt(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync receipt", "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return synced, nil
}

// syncReceipt writes the receipt's current state to the ledger. The version
// is read before the receipt so an edit racing the sync keeps it pending.
func (w *SyncWorker) syncReceipt(ctx context.Context, id int64) (core.Receipt, error) {
	version, err := w.storage.ReceiptVersion(ctx, id)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt version: %w", err)
	}
	rc, err := w.storage.GetReceipt(ctx, id)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt from storage: %w", err)
	}

	ref, err := w.ledger.Upsert(ctx, sheets.RowFromReceipt(rc))
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return rc, fmt.Errorf("upsert ledger row: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id, version); err != nil {
		// the row is in the ledger; the next sweep rewrites it in place
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced receipt",
		"id", id,
		"version", version,
		"sheets_ref", ref,
		"receipt_number", rc.ReceiptNumber,
		"total", int64(rc.TotalAmount))
	return rc, nil
}
