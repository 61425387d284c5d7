package ports

import (
	"context"
	"time"

	"ScholarshipImporter/internal/domain"
)

// SourceQuery bounds the units enumerated during one run.
type SourceQuery struct {
	Label     string
	NewerThan time.Duration
	MaxUnits  int
	Now       time.Time
}

// UnitSource enumerates documents (emails, pages) to extract from.
type UnitSource interface {
	Enumerate(ctx context.Context, query SourceQuery) ([]domain.ExtractionUnit, error)
}

// SheetStore is the tabular backend: named sheets made of string rows where
// row 1 is the header.
type SheetStore interface {
	// EnsureSheet creates the sheet when absent and seeds it with header.
	// It reports whether the sheet was created.
	EnsureSheet(ctx context.Context, sheet string, header []string, hidden bool) (bool, error)
	// Header returns row 1, or nil when the sheet has no rows.
	Header(ctx context.Context, sheet string) ([]string, error)
	// WriteHeader replaces row 1.
	WriteHeader(ctx context.Context, sheet string, header []string) error
	// Rows returns every row after the header in order.
	Rows(ctx context.Context, sheet string) ([][]string, error)
	// AppendRows writes rows after the last populated row in one operation.
	AppendRows(ctx context.Context, sheet string, rows [][]string) error
	// ReplaceRows atomically replaces every row after the header.
	ReplaceRows(ctx context.Context, sheet string, rows [][]string) error
}

// ProviderRequest is the provider-neutral extraction request.
type ProviderRequest struct {
	System string
	User   string
	Schema map[string]any
}

// Provider sends one prompt to a language model and returns its raw text.
type Provider interface {
	Name() string
	Call(ctx context.Context, req ProviderRequest) (string, error)
}

// Extractor turns one unit into structured records.
type Extractor interface {
	ExtractUnit(ctx context.Context, unit domain.ExtractionUnit) ([]domain.ExtractedRecord, error)
}

// Notifier publishes run summaries to Telegram or other channels.
type Notifier interface {
	PublishSummary(ctx context.Context, message string) error
}

// Scheduler controls when imports execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
