package google

import (
	"kwitansi/internal/core"
	ports "kwitansi/internal/sheets"
)

// parseLedger converts a values matrix (as returned by the Sheets API, header
// excluded) into ledger rows. Rows without a numeric receipt id are skipped.
func parseLedger(values [][]any) []ports.LedgerRow {
	out := make([]ports.LedgerRow, 0, len(values))
	for _, raw := range values {
		if len(raw) == 0 {
			continue
		}
		id, ok := cellInt(raw[0])
		if !ok || id <= 0 {
			continue
		}
		cols := toStrings(raw)
		row := ports.LedgerRow{
			ReceiptID: id,
			Number:    safeGet(cols, 1),
			Customer:  safeGet(cols, 3),
			Email:     safeGet(cols, 4),
			Status:    safeGet(cols, 7),
		}
		if d, err := core.ParseDate(safeGet(cols, 2)); err == nil {
			row.Date = d
		}
		if len(raw) > 5 {
			if v, ok := cellInt(raw[5]); ok {
				row.Total = core.Money(v)
			}
		}
		if len(raw) > 6 {
			if v, ok := cellInt(raw[6]); ok {
				row.Paid = core.Money(v)
			}
		}
		out = append(out, row)
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
