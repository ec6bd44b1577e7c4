// Package memory is an in-process ledger used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kwitansi/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	rows  []sheets.LedgerRow
	index map[int64]int
}

var (
	_ sheets.LedgerWriter = (*Store)(nil)
	_ sheets.LedgerReader = (*Store)(nil)
)

func New() *Store {
	return &Store{index: map[int64]int{}}
}

// Upsert stores the row and returns a synthetic row reference.
func (s *Store) Upsert(_ context.Context, row sheets.LedgerRow) (string, error) {
	if row.ReceiptID <= 0 {
		return "", errors.New("ledger row without receipt id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[row.ReceiptID]; ok {
		s.rows[i] = row
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, row)
	s.index[row.ReceiptID] = len(s.rows) - 1
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the ledger in insertion order.
func (s *Store) Rows(_ context.Context) ([]sheets.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.LedgerRow(nil), s.rows...), nil
}
