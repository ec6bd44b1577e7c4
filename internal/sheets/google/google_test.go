package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kwitansi/internal/core"
	ports "kwitansi/internal/sheets"
)

// fakeSheet serves the two values endpoints the client uses against an
// in-memory grid.
type fakeSheet struct {
	mu      sync.Mutex
	grid    map[int][]interface{}
	gets    int
	updates []string
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const prefix = "/v4/spreadsheets/sheet-id/values/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	rng := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		f.gets++
		from, full := 1, false
		switch rng {
		case "Kwitansi!A:A":
		case "Kwitansi!A2:H":
			from, full = 2, true
		default:
			http.Error(w, "unexpected range "+rng, http.StatusBadRequest)
			return
		}
		values := [][]interface{}{}
		for n := from; n <= f.maxRow(); n++ {
			row := f.grid[n]
			if !full && len(row) > 0 {
				row = row[:1]
			}
			if row == nil {
				row = []interface{}{}
			}
			values = append(values, row)
		}
		writeJSON(w, map[string]interface{}{"range": rng, "majorDimension": "ROWS", "values": values})
	case http.MethodPut:
		n, ok := rowOf(rng)
		if !ok {
			http.Error(w, "unexpected range "+rng, http.StatusBadRequest)
			return
		}
		var body gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Values) != 1 {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		f.grid[n] = body.Values[0]
		f.updates = append(f.updates, rng)
		writeJSON(w, map[string]interface{}{"updatedRange": rng, "updatedRows": 1})
	default:
		http.Error(w, "method", http.StatusMethodNotAllowed)
	}
}

func (f *fakeSheet) maxRow() int {
	m := 0
	for n := range f.grid {
		if n > m {
			m = n
		}
	}
	return m
}

// rowOf extracts n from "Kwitansi!An:Hn".
func rowOf(rng string) (int, bool) {
	rest, ok := strings.CutPrefix(rng, "Kwitansi!A")
	if !ok {
		return 0, false
	}
	num, _, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(num)
	return n, err == nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeClient(t *testing.T, grid map[int][]interface{}) (*Client, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{grid: grid}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithoutAuthentication(),
		goption.WithEndpoint(ts.URL+"/"),
		goption.WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, "sheet-id", ""), fake
}

func ledgerRow(id int64, paid bool) ports.LedgerRow {
	status := core.StatusLabel(paid)
	return ports.LedgerRow{
		ReceiptID: id,
		Number:    "INV/20240305/000" + strconv.FormatInt(id, 10),
		Date:      core.NewDate(2024, 3, 5),
		Customer:  "Budi",
		Email:     "budi@example.com",
		Total:     300000,
		Paid:      100000,
		Status:    status,
	}
}

func TestUpsert_EmptySheetWritesHeader(t *testing.T) {
	c, fake := newFakeClient(t, map[int][]interface{}{})

	ref, err := c.Upsert(context.Background(), ledgerRow(1, false))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if ref != "Kwitansi!A2:H2" {
		t.Errorf("ref = %q", ref)
	}
	if got := fake.grid[1]; len(got) != len(ledgerHeader) || got[0] != "ID" {
		t.Errorf("header not written: %v", got)
	}
	if got := fake.grid[2]; len(got) != 8 || got[0] != float64(1) || got[2] != "2024-03-05" {
		t.Errorf("unexpected row: %v", got)
	}
}

func TestUpsert_OverwritesExistingRow(t *testing.T) {
	c, fake := newFakeClient(t, map[int][]interface{}{
		1: {"ID"},
		2: {float64(4), "old"},
		3: {float64(9), "old"},
	})

	ref, err := c.Upsert(context.Background(), ledgerRow(9, true))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if ref != "Kwitansi!A3:H3" {
		t.Errorf("existing receipt written to %q", ref)
	}
	if got := fake.grid[3][7]; got != "LUNAS" {
		t.Errorf("status = %v", got)
	}

	ref, err = c.Upsert(context.Background(), ledgerRow(10, false))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if ref != "Kwitansi!A4:H4" {
		t.Errorf("new receipt written to %q", ref)
	}
}

func TestUpsert_IndexCachedUntilTTL(t *testing.T) {
	c, fake := newFakeClient(t, map[int][]interface{}{1: {"ID"}})
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		if _, err := c.Upsert(ctx, ledgerRow(id, false)); err != nil {
			t.Fatalf("upsert %d: %v", id, err)
		}
	}
	if fake.gets != 1 {
		t.Errorf("expected one index read, got %d", fake.gets)
	}

	now = now.Add(defaultIndexTTL + time.Second)
	if _, err := c.Upsert(ctx, ledgerRow(2, true)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if fake.gets != 2 {
		t.Errorf("expected index reload after TTL, got %d reads", fake.gets)
	}
	if last := fake.updates[len(fake.updates)-1]; last != "Kwitansi!A3:H3" {
		t.Errorf("reloaded index wrote %q", last)
	}
}

func TestUpsert_RejectsMissingID(t *testing.T) {
	c := &Client{sheet: "Kwitansi"}
	if _, err := c.Upsert(context.Background(), ports.LedgerRow{}); err == nil {
		t.Fatal("expected error for row without receipt id")
	}
	if _, err := c.Upsert(context.Background(), ledgerRow(1, false)); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestRows(t *testing.T) {
	c, _ := newFakeClient(t, map[int][]interface{}{})
	ctx := context.Background()
	for id := int64(1); id <= 2; id++ {
		if _, err := c.Upsert(ctx, ledgerRow(id, id == 2)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	rows, err := c.Rows(ctx)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].ReceiptID != 2 || rows[1].Status != "LUNAS" || rows[1].Total != 300000 {
		t.Errorf("unexpected row: %+v", rows[1])
	}
}

func TestNew_MissingConfig(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := New(context.Background(), Config{}); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x"}); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/nonexistent.json"}); err == nil {
		t.Error("expected error for unreadable credentials file")
	}
}
