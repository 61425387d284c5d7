package storage

import (
	"context"
	"fmt"
	"sync"

	"ScholarshipImporter/internal/ports"
)

// MemoryStore keeps sheets in process memory. It backs dry runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	sheets map[string]*memorySheet
}

type memorySheet struct {
	hidden bool
	rows   [][]string
}

var _ ports.SheetStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: map[string]*memorySheet{}}
}

// EnsureSheet creates sheet with header as row 1 when absent.
func (m *MemoryStore) EnsureSheet(_ context.Context, sheet string, header []string, hidden bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sheets[sheet]; ok {
		return false, nil
	}
	s := &memorySheet{hidden: hidden}
	if len(header) > 0 {
		s.rows = append(s.rows, cloneRow(header))
	}
	m.sheets[sheet] = s
	return true, nil
}

// Header returns row 1 of sheet.
func (m *MemoryStore) Header(_ context.Context, sheet string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(sheet)
	if err != nil {
		return nil, err
	}
	if len(s.rows) == 0 {
		return nil, nil
	}
	return cloneRow(s.rows[0]), nil
}

// WriteHeader replaces row 1 of sheet.
func (m *MemoryStore) WriteHeader(_ context.Context, sheet string, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(sheet)
	if err != nil {
		return err
	}
	if len(s.rows) == 0 {
		s.rows = append(s.rows, cloneRow(header))
		return nil
	}
	s.rows[0] = cloneRow(header)
	return nil
}

// Rows returns the data rows of sheet.
func (m *MemoryStore) Rows(_ context.Context, sheet string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(sheet)
	if err != nil {
		return nil, err
	}
	if len(s.rows) <= 1 {
		return nil, nil
	}
	return cloneRows(s.rows[1:]), nil
}

// AppendRows adds rows after the last populated row.
func (m *MemoryStore) AppendRows(_ context.Context, sheet string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(sheet)
	if err != nil {
		return err
	}
	s.rows = append(s.rows, cloneRows(rows)...)
	return nil
}

// ReplaceRows swaps every data row of sheet, keeping the header.
func (m *MemoryStore) ReplaceRows(_ context.Context, sheet string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(sheet)
	if err != nil {
		return err
	}
	header := []string{}
	if len(s.rows) > 0 {
		header = s.rows[0]
	}
	s.rows = append([][]string{header}, cloneRows(rows)...)
	return nil
}

// Hidden reports whether sheet was created hidden.
func (m *MemoryStore) Hidden(sheet string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sheets[sheet]
	return ok && s.hidden
}

func (m *MemoryStore) lookup(sheet string) (*memorySheet, error) {
	s, ok := m.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("sheet %q: %w", sheet, ErrSheetNotFound)
	}
	return s, nil
}

func cloneRow(row []string) []string {
	return append([]string(nil), row...)
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = cloneRow(row)
	}
	return out
}
