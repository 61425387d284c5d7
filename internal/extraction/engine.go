package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/ports"
)

// DefaultMaxBodyChars bounds the content sent to the provider.
const DefaultMaxBodyChars = 40000

// Options tunes prompt construction.
type Options struct {
	MaxBodyChars int
	Hints        []FormatHint
}

// Engine turns unstructured content into scholarship records via a provider.
type Engine struct {
	provider ports.Provider
	maxBody  int
	hints    []FormatHint
	logger   *slog.Logger
}

var _ ports.Extractor = (*Engine)(nil)

// NewEngine binds the engine to an explicitly selected provider.
func NewEngine(provider ports.Provider, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := opts.MaxBodyChars
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyChars
	}
	hints := opts.Hints
	if len(hints) == 0 {
		hints = DefaultHints()
	}
	return &Engine{provider: provider, maxBody: maxBody, hints: hints, logger: logger}
}

// Extract returns the records found in body. Provider and parse failures
// are logged and yield an empty result.
func (e *Engine) Extract(ctx context.Context, subject, body string) []domain.ExtractedRecord {
	records, err := e.extract(ctx, subject, body)
	if err != nil {
		return nil
	}
	return records
}

// ExtractUnit behaves like Extract but also reports the failure so callers
// can account for it.
func (e *Engine) ExtractUnit(ctx context.Context, unit domain.ExtractionUnit) ([]domain.ExtractedRecord, error) {
	return e.extract(ctx, unit.Subject, unit.RawText)
}

func (e *Engine) extract(ctx context.Context, subject, body string) ([]domain.ExtractedRecord, error) {
	hint := SelectHint(e.hints, subject)
	req := ports.ProviderRequest{
		System: systemPrompt,
		User:   buildUserPrompt(subject, hint, truncateRunes(body, e.maxBody)),
		Schema: responseSchema(),
	}

	raw, err := e.provider.Call(ctx, req)
	if err != nil {
		e.logger.Error("provider call failed", "provider", e.provider.Name(), "subject", subject, "error", err)
		return nil, fmt.Errorf("call %s: %w", e.provider.Name(), err)
	}

	objects, err := parseResponse(raw)
	if err != nil {
		e.logger.Error("unparseable provider response", "provider", e.provider.Name(), "subject", subject, "error", err)
		return nil, fmt.Errorf("parse %s response: %w", e.provider.Name(), err)
	}

	records := make([]domain.ExtractedRecord, 0, len(objects))
	for _, obj := range objects {
		rec := normalizeRecord(obj)
		if rec.Title == "" {
			continue
		}
		records = append(records, rec)
	}

	e.logger.Debug("extracted records", "subject", subject, "hint", hint.Name, "count", len(records))
	return records, nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
