package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwitansi/internal/amqp"
	"kwitansi/internal/core"
	"kwitansi/internal/sheets"
	sheetsmem "kwitansi/internal/sheets/memory"
	"kwitansi/internal/storage"
)

type recordingNotifier struct {
	sent []core.Receipt
	err  error
}

func (n *recordingNotifier) SendShareLink(_ context.Context, r core.Receipt) error {
	n.sent = append(n.sent, r)
	return n.err
}

type failingLedger struct{ calls int }

func (f *failingLedger) Upsert(context.Context, sheets.LedgerRow) (string, error) {
	f.calls++
	return "", errors.New("sheets unavailable")
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kwitansi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createReceipt(t *testing.T, repo *storage.SQLiteRepository, email string) int64 {
	t.Helper()
	d := core.ReceiptDraft{
		CustomerEmail:   email,
		CustomerName:    "Budi",
		CustomerPhone:   "+628123",
		CustomerAddress: "Jl. Malioboro 1",
		OrderDetails:    "Sablon kaos",
		Date:            "2024-03-05",
		Items:           []core.ReceiptItem{{Name: "Kaos", UnitPrice: 75000, Quantity: 2}},
	}
	d.Prepare()
	id, err := repo.CreateReceipt(context.Background(), d, nil, "tok-"+email)
	require.NoError(t, err)
	return id
}

func pendingCount(t *testing.T, repo *storage.SQLiteRepository) int {
	t.Helper()
	p, err := repo.GetPendingSyncReceipts(context.Background(), 100)
	require.NoError(t, err)
	return len(p)
}

func TestHandleReceiptEvent_CreatedWritesLedgerAndNotifies(t *testing.T) {
	repo := newRepo(t)
	ledger := sheetsmem.New()
	notifier := &recordingNotifier{}
	w := NewSyncWorker(repo, ledger, notifier, 10)
	ctx := context.Background()

	id := createReceipt(t, repo, "budi@example.com")
	require.NoError(t, w.HandleReceiptEvent(ctx, amqp.NewReceiptEventMessage(id, 1, amqp.EventReceiptCreated)))

	rows, err := ledger.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ReceiptID)
	assert.Equal(t, core.Money(150000), rows[0].Total)
	assert.Equal(t, "BELUM LUNAS", rows[0].Status)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "tok-budi@example.com", notifier.sent[0].Token)
	assert.Zero(t, pendingCount(t, repo))
}

func TestHandleReceiptEvent_PaidUpdatesRowWithoutNotifying(t *testing.T) {
	repo := newRepo(t)
	ledger := sheetsmem.New()
	notifier := &recordingNotifier{}
	w := NewSyncWorker(repo, ledger, notifier, 10)
	ctx := context.Background()

	id := createReceipt(t, repo, "budi@example.com")
	require.NoError(t, w.HandleReceiptEvent(ctx, amqp.NewReceiptEventMessage(id, 1, amqp.EventReceiptCreated)))
	require.NoError(t, repo.MarkPaid(ctx, id))
	require.NoError(t, w.HandleReceiptEvent(ctx, amqp.NewReceiptEventMessage(id, 2, amqp.EventReceiptPaid)))

	rows, err := ledger.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "LUNAS", rows[0].Status)
	assert.Len(t, notifier.sent, 1)
	assert.Zero(t, pendingCount(t, repo))
}

func TestHandleReceiptEvent_NotifierFailureIsNotFatal(t *testing.T) {
	repo := newRepo(t)
	w := NewSyncWorker(repo, sheetsmem.New(), &recordingNotifier{err: errors.New("twilio down")}, 10)

	id := createReceipt(t, repo, "budi@example.com")
	assert.NoError(t, w.HandleReceiptEvent(context.Background(), amqp.NewReceiptEventMessage(id, 1, amqp.EventReceiptCreated)))
}

func TestHandleReceiptEvent_MissingReceiptDropped(t *testing.T) {
	w := NewSyncWorker(newRepo(t), sheetsmem.New(), nil, 10)
	assert.NoError(t, w.HandleReceiptEvent(context.Background(), amqp.NewReceiptEventMessage(999, 1, amqp.EventReceiptUpdated)))
}

func TestHandleReceiptEvent_LedgerFailureMarksError(t *testing.T) {
	repo := newRepo(t)
	ledger := &failingLedger{}
	notifier := &recordingNotifier{}
	w := NewSyncWorker(repo, ledger, notifier, 10)

	id := createReceipt(t, repo, "budi@example.com")
	err := w.HandleReceiptEvent(context.Background(), amqp.NewReceiptEventMessage(id, 1, amqp.EventReceiptCreated))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert ledger row")
	assert.Empty(t, notifier.sent)
	assert.Equal(t, 1, pendingCount(t, repo))
}

func TestProcessPendingReceipts(t *testing.T) {
	repo := newRepo(t)
	ledger := sheetsmem.New()
	w := NewSyncWorker(repo, ledger, nil, 2)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		createReceipt(t, repo, email)
	}

	synced, err := w.ProcessPendingReceipts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, 1, pendingCount(t, repo))

	synced, err = w.ProcessPendingReceipts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	synced, err = w.ProcessPendingReceipts(ctx)
	require.NoError(t, err)
	assert.Zero(t, synced)

	rows, err := ledger.Rows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestStartupSyncCheck(t *testing.T) {
	repo := newRepo(t)
	ledger := sheetsmem.New()
	w := NewSyncWorker(repo, ledger, nil, 1)

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		createReceipt(t, repo, email)
	}
	require.NoError(t, w.StartupSyncCheck(context.Background()))
	assert.Zero(t, pendingCount(t, repo))
}

func TestProcessPendingReceipts_FailuresStayPending(t *testing.T) {
	repo := newRepo(t)
	ledger := &failingLedger{}
	w := NewSyncWorker(repo, ledger, nil, 10)

	createReceipt(t, repo, "a@example.com")
	createReceipt(t, repo, "b@example.com")

	synced, err := w.ProcessPendingReceipts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, synced)
	assert.Equal(t, 2, ledger.calls)
	assert.Equal(t, 2, pendingCount(t, repo))
}
