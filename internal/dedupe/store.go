package dedupe

import (
	"context"
	"fmt"
	"strings"

	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/ports"
)

const (
	// DefaultSheet is the hidden key table.
	DefaultSheet = "_processed_ids"
	// Marker occupies row 1 of the key table.
	Marker = "emailId" + domain.DedupeSeparator + "title"
)

// Store is the persistent set of accepted dedupe keys. It is loaded once per
// run, mutated in memory and written back with Save. Not safe for concurrent
// use.
type Store struct {
	sheets ports.SheetStore
	sheet  string
	keys   map[domain.DedupeKey]struct{}
	order  []domain.DedupeKey
}

// NewStore binds the set to a key table; an empty sheet name uses DefaultSheet.
func NewStore(sheets ports.SheetStore, sheet string) *Store {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Store{
		sheets: sheets,
		sheet:  sheet,
		keys:   map[domain.DedupeKey]struct{}{},
	}
}

// Ensure creates the hidden key table seeded with the marker row.
func (s *Store) Ensure(ctx context.Context) error {
	if _, err := s.sheets.EnsureSheet(ctx, s.sheet, []string{Marker}, true); err != nil {
		return fmt.Errorf("ensure %s: %w", s.sheet, err)
	}
	header, err := s.sheets.Header(ctx, s.sheet)
	if err != nil {
		return fmt.Errorf("read %s marker: %w", s.sheet, err)
	}
	if len(header) == 0 || strings.TrimSpace(header[0]) == "" {
		if err := s.sheets.WriteHeader(ctx, s.sheet, []string{Marker}); err != nil {
			return fmt.Errorf("write %s marker: %w", s.sheet, err)
		}
	}
	return nil
}

// Load replaces the in-memory set with every key persisted after the marker.
func (s *Store) Load(ctx context.Context) error {
	rows, err := s.sheets.Rows(ctx, s.sheet)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.sheet, err)
	}

	s.keys = make(map[domain.DedupeKey]struct{}, len(rows))
	s.order = nil
	for _, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		s.Accept(domain.DedupeKey(row[0]))
	}
	return nil
}

// Accept inserts key and reports whether it was new.
func (s *Store) Accept(key domain.DedupeKey) bool {
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.add(key)
	return true
}

// Contains reports whether key is already in the set.
func (s *Store) Contains(key domain.DedupeKey) bool {
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of keys in the set.
func (s *Store) Len() int {
	return len(s.keys)
}

// Save overwrites the key table with the full in-memory set, keeping the
// marker in row 1.
func (s *Store) Save(ctx context.Context) error {
	rows := make([][]string, 0, len(s.order))
	for _, key := range s.order {
		rows = append(rows, []string{string(key)})
	}
	if err := s.sheets.ReplaceRows(ctx, s.sheet, rows); err != nil {
		return fmt.Errorf("save %s: %w", s.sheet, err)
	}
	return nil
}

func (s *Store) add(key domain.DedupeKey) {
	s.keys[key] = struct{}{}
	s.order = append(s.order, key)
}
