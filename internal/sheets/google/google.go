package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "kwitansi/internal/sheets"
)

// ledgerHeader is written to row 1 of an empty ledger sheet.
var ledgerHeader = []any{"ID", "Nomor Kwitansi", "Tanggal", "Pelanggan", "Email", "Total", "Dibayar", "Status"}

// defaultIndexTTL bounds how long the receipt id to row mapping is trusted
// before column A is read again.
const defaultIndexTTL = 5 * time.Minute

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	mu       sync.Mutex
	rowIndex map[int64]int // receipt id -> 1-based sheet row
	nextRow  int
	loadedAt time.Time
	indexTTL time.Duration
	now      func() time.Time
}

// Ensure interface conformance
var (
	_ ports.LedgerWriter = (*Client)(nil)
	_ ports.LedgerReader = (*Client)(nil)
)

// New creates a ledger client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	credentialsJSON, err := serviceAccountJSON(cfg)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Kwitansi"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheetName,
		indexTTL:      defaultIndexTTL,
		now:           time.Now,
	}
}

// serviceAccountJSON returns inline credentials, or reads them from the
// configured file.
func serviceAccountJSON(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// Upsert writes the receipt's row, overwriting the row that already holds
// the receipt id or using the first free row.
func (c *Client) Upsert(ctx context.Context, row ports.LedgerRow) (string, error) {
	if row.ReceiptID <= 0 {
		return "", errors.New("ledger row without receipt id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadIndex(ctx); err != nil {
		return "", err
	}
	n, existing := c.rowIndex[row.ReceiptID]
	if !existing {
		n = c.nextRow
	}

	rng := fmt.Sprintf("%s!A%d:H%d", c.sheet, n, n)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(row)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		c.invalidateIndex()
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}

	if !existing {
		c.rowIndex[row.ReceiptID] = n
		c.nextRow++
	}
	return rng, nil
}

// Rows reads every receipt row below the header.
func (c *Client) Rows(ctx context.Context) ([]ports.LedgerRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A2:H", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseLedger(resp.Values), nil
}

// loadIndex maps receipt ids to rows from column A. An empty sheet gets
// the header row first. Must be called with c.mu held.
func (c *Client) loadIndex(ctx context.Context) error {
	if c.rowIndex != nil && c.now().Sub(c.loadedAt) < c.indexTTL {
		return nil
	}

	rng := fmt.Sprintf("%s!A:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get sheet dimensions for %s: %w", c.sheet, err)
	}

	if len(resp.Values) == 0 {
		hdr := fmt.Sprintf("%s!A1:H1", c.sheet)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, hdr, &gsheet.ValueRange{Values: [][]any{ledgerHeader}}).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to write ledger header: %w", err)
		}
		resp.Values = [][]any{ledgerHeader[:1]}
	}

	c.rowIndex = indexRows(resp.Values)
	c.nextRow = len(resp.Values) + 1
	c.loadedAt = c.now()
	return nil
}

func (c *Client) invalidateIndex() {
	c.rowIndex = nil
	c.loadedAt = time.Time{}
}

func rowValues(r ports.LedgerRow) []any {
	return []any{
		r.ReceiptID,
		r.Number,
		r.Date.String(),
		r.Customer,
		r.Email,
		int64(r.Total),
		int64(r.Paid),
		r.Status,
	}
}

// indexRows maps the id in each row's first cell to its 1-based row.
func indexRows(values [][]any) map[int64]int {
	idx := make(map[int64]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if id, ok := cellInt(row[0]); ok && id > 0 {
			idx[id] = i + 1
		}
	}
	return idx
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// cellInt reads an integer cell that may come back as a number or as a
// formatted string such as "1.500.000".
func cellInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		n = strings.TrimSpace(n)
		if n == "" {
			return 0, false
		}
		var digits strings.Builder
		for _, r := range n {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
		i, err := strconv.ParseInt(digits.String(), 10, 64)
		return i, err == nil
	}
	return 0, false
}
