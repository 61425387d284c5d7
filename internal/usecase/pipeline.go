package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"ScholarshipImporter/internal/dedupe"
	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/linkcanon"
	"ScholarshipImporter/internal/ports"
	"ScholarshipImporter/internal/textnorm"
)

// Default table names.
const (
	DefaultOutputSheet = "Scholarships"
	DefaultLedgerSheet = "_processed_emails"
)

const notesLimit = 200

// LedgerHeader is row 1 of the processed-unit ledger.
var LedgerHeader = []string{"emailId", "status", "timestamp", "notes"}

var (
	listNumbering = regexp.MustCompile(`^\d+\.\s*`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// PipelineDeps wires all driven adapters into the import pipeline.
type PipelineDeps struct {
	Source    ports.UnitSource
	Sheets    ports.SheetStore
	Extractor ports.Extractor
	Notifier  ports.Notifier
	// Preflight validates configuration before any table is touched.
	Preflight func() error
	Logger    *slog.Logger
	Now       func() time.Time
}

// PipelineOptions names the tables and bounds the source query.
type PipelineOptions struct {
	OutputSheet string
	DedupeSheet string
	LedgerSheet string
	Label       string
	NewerThan   time.Duration
	MaxUnits    int
}

// Pipeline implements the scholarship import workflow.
type Pipeline struct {
	source    ports.UnitSource
	sheets    ports.SheetStore
	extractor ports.Extractor
	notifier  ports.Notifier
	preflight func() error
	logger    *slog.Logger
	now       func() time.Time
	opts      PipelineOptions
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, opts PipelineOptions) *Pipeline {
	if opts.OutputSheet == "" {
		opts.OutputSheet = DefaultOutputSheet
	}
	if opts.DedupeSheet == "" {
		opts.DedupeSheet = dedupe.DefaultSheet
	}
	if opts.LedgerSheet == "" {
		opts.LedgerSheet = DefaultLedgerSheet
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		source:    deps.Source,
		sheets:    deps.Sheets,
		extractor: deps.Extractor,
		notifier:  deps.Notifier,
		preflight: deps.Preflight,
		logger:    logger,
		now:       now,
		opts:      opts,
	}
}

// Run performs one import: enumerate units, extract records, drop duplicates
// and flush the new rows, the dedupe set and the ledger in that order.
// Per-unit failures are logged and counted; storage failures abort the run.
func (p *Pipeline) Run(ctx context.Context) (domain.ImportSummary, error) {
	var summary domain.ImportSummary

	if p.preflight != nil {
		if err := p.preflight(); err != nil {
			return summary, fmt.Errorf("preflight: %w", err)
		}
	}
	if p.source == nil || p.sheets == nil || p.extractor == nil {
		return summary, &domain.ConfigurationError{Setting: "pipeline", Err: fmt.Errorf("source, sheets and extractor are required")}
	}

	if err := p.ensureOutput(ctx); err != nil {
		return summary, err
	}

	keys := dedupe.NewStore(p.sheets, p.opts.DedupeSheet)
	if err := keys.Ensure(ctx); err != nil {
		return summary, fmt.Errorf("ensure dedupe table: %w", err)
	}
	if err := keys.Load(ctx); err != nil {
		return summary, fmt.Errorf("load dedupe table: %w", err)
	}
	if _, err := p.sheets.EnsureSheet(ctx, p.opts.LedgerSheet, LedgerHeader, true); err != nil {
		return summary, fmt.Errorf("ensure ledger: %w", err)
	}

	existing, err := p.existingIndex(ctx)
	if err != nil {
		return summary, err
	}

	units, err := p.source.Enumerate(ctx, ports.SourceQuery{
		Label:     p.opts.Label,
		NewerThan: p.opts.NewerThan,
		MaxUnits:  p.opts.MaxUnits,
		Now:       p.now(),
	})
	if err != nil {
		return summary, fmt.Errorf("enumerate units: %w", err)
	}
	p.logger.Info("units enumerated", "count", len(units), "label", p.opts.Label)

	var (
		rows   [][]string
		ledger []domain.ProcessedUnit
		dirty  bool
	)
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("import interrupted: %w", err)
		}
		summary.Units++

		unit.RawText = textnorm.StripQuotedHeader(textnorm.ToPlainText(unit.RawText))
		records, err := p.extractor.ExtractUnit(ctx, unit)
		if err != nil {
			summary.Failed++
			p.logger.Warn("unit skipped", "source_id", unit.SourceID, "subject", unit.Subject, "error", err)
			ledger = append(ledger, p.ledgerEntry(unit, domain.UnitFailed, err.Error()))
			continue
		}

		accepted := 0
		for _, rec := range records {
			rec.Title = strings.TrimSpace(rec.Title)
			if rec.Title == "" {
				summary.Discarded++
				continue
			}
			if !keys.Accept(domain.NewDedupeKey(unit.SourceID, rec.Title)) {
				summary.Duplicates++
				continue
			}
			dirty = true

			idx := indexKey(rec.Title, rec.Link)
			if _, ok := existing[idx]; ok {
				summary.Duplicates++
				continue
			}
			existing[idx] = struct{}{}

			rows = append(rows, rec.Row())
			accepted++
		}

		status := domain.UnitImported
		if accepted == 0 {
			status = domain.UnitEmpty
		}
		ledger = append(ledger, p.ledgerEntry(unit, status, fmt.Sprintf("%d of %d records imported", accepted, len(records))))
		p.logger.Debug("unit processed", "source_id", unit.SourceID, "records", len(records), "imported", accepted)
	}

	if len(rows) > 0 {
		if err := p.sheets.AppendRows(ctx, p.opts.OutputSheet, rows); err != nil {
			return summary, fmt.Errorf("append rows: %w", err)
		}
	}
	summary.Imported = len(rows)

	if dirty {
		if err := keys.Save(ctx); err != nil {
			return summary, fmt.Errorf("save dedupe table: %w", err)
		}
	}

	if len(ledger) > 0 {
		if err := p.sheets.AppendRows(ctx, p.opts.LedgerSheet, ledgerRows(ledger)); err != nil {
			return summary, fmt.Errorf("append ledger: %w", err)
		}
	}

	p.logger.Info("import finished",
		"imported", summary.Imported,
		"units", summary.Units,
		"failed", summary.Failed,
		"duplicates", summary.Duplicates,
		"discarded", summary.Discarded)

	if p.notifier != nil {
		if err := p.notifier.PublishSummary(ctx, BuildSummaryMessage(summary)); err != nil {
			p.logger.Warn("summary notification failed", "error", err)
		}
	}

	return summary, nil
}

// BuildSummaryMessage renders the run outcome for notifiers.
func BuildSummaryMessage(s domain.ImportSummary) string {
	return fmt.Sprintf("Scholarship import finished: %d new rows from %d units (%d duplicates, %d failed units).",
		s.Imported, s.Units, s.Duplicates, s.Failed)
}

func (p *Pipeline) ensureOutput(ctx context.Context) error {
	created, err := p.sheets.EnsureSheet(ctx, p.opts.OutputSheet, domain.OutputHeader, false)
	if err != nil {
		return fmt.Errorf("ensure output table: %w", err)
	}
	if created {
		return nil
	}

	header, err := p.sheets.Header(ctx, p.opts.OutputSheet)
	if err != nil {
		return fmt.Errorf("read output header: %w", err)
	}
	if slices.Equal(header, domain.OutputHeader) {
		return nil
	}

	p.logger.Info("rewriting output header", "sheet", p.opts.OutputSheet)
	if err := p.sheets.WriteHeader(ctx, p.opts.OutputSheet, domain.OutputHeader); err != nil {
		return fmt.Errorf("write output header: %w", err)
	}
	return nil
}

// existingIndex covers rows written by a run whose dedupe save never landed.
func (p *Pipeline) existingIndex(ctx context.Context) (map[string]struct{}, error) {
	rows, err := p.sheets.Rows(ctx, p.opts.OutputSheet)
	if err != nil {
		return nil, fmt.Errorf("load output rows: %w", err)
	}

	linkCol := slices.Index(domain.OutputHeader, "Link")
	index := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		link := ""
		if linkCol < len(row) {
			link = row[linkCol]
		}
		index[indexKey(row[0], link)] = struct{}{}
	}
	return index, nil
}

func (p *Pipeline) ledgerEntry(unit domain.ExtractionUnit, status domain.UnitStatus, notes string) domain.ProcessedUnit {
	if r := []rune(notes); len(r) > notesLimit {
		notes = string(r[:notesLimit])
	}
	return domain.ProcessedUnit{
		SourceID:    unit.SourceID,
		Status:      status,
		ProcessedAt: p.now().UTC(),
		Notes:       notes,
	}
}

func ledgerRows(units []domain.ProcessedUnit) [][]string {
	rows := make([][]string, 0, len(units))
	for _, u := range units {
		rows = append(rows, []string{u.SourceID, string(u.Status), u.ProcessedAt.Format(time.RFC3339), u.Notes})
	}
	return rows
}

func indexKey(title, link string) string {
	return normalizeTitle(title) + "\x00" + strings.ToLower(linkcanon.CleanURL(link))
}

func normalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = listNumbering.ReplaceAllString(t, "")
	return spaceRun.ReplaceAllString(t, " ")
}
