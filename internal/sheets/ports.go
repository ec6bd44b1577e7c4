package sheets

import (
	"context"

	"kwitansi/internal/core"
)

// LedgerRow is one receipt as kept in the ledger spreadsheet.
type LedgerRow struct {
	ReceiptID int64
	Number    string
	Date      core.Date
	Customer  string
	Email     string
	Total     core.Money
	Paid      core.Money
	Status    string
}

// RowFromReceipt builds the ledger row of r.
func RowFromReceipt(r core.Receipt) LedgerRow {
	return LedgerRow{
		ReceiptID: r.ID,
		Number:    r.ReceiptNumber,
		Date:      r.Date,
		Customer:  r.Customer.Name,
		Email:     r.Customer.Email,
		Total:     r.TotalAmount,
		Paid:      r.PaidAmount,
		Status:    r.StatusLabel(),
	}
}

// Ports for outbound adapters.
type (
	// LedgerWriter keeps one row per receipt: a known receipt id is
	// overwritten in place, a new one is appended.
	LedgerWriter interface {
		Upsert(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// LedgerReader returns every receipt row of the ledger.
	LedgerReader interface {
		Rows(ctx context.Context) ([]LedgerRow, error)
	}
)
