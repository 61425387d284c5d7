package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"ScholarshipImporter/internal/config"
	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/ports"
)

// StrategySource implements ports.UnitSource via registered strategies. Units
// from every configured source are merged newest first and capped.
type StrategySource struct {
	registry *Registry
	sources  []config.SourceConfig
	logger   *slog.Logger
}

var _ ports.UnitSource = (*StrategySource)(nil)

// NewStrategySource wires the strategy registry with config-defined sources.
func NewStrategySource(reg *Registry, sources []config.SourceConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		logger:   log,
	}
}

// Enumerate runs every configured source and applies the age window and cap.
func (s *StrategySource) Enumerate(ctx context.Context, query ports.SourceQuery) ([]domain.ExtractionUnit, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("source registry is not configured")
	}

	s.debug("enumerate", "sources", len(s.sources), "label", query.Label)

	var aggregated []domain.ExtractionUnit
	for _, src := range s.sources {
		strategy, err := s.registry.Resolve(src.Strategy)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}

		units, err := strategy.Enumerate(ctx, Request{
			SourceName: src.Name,
			URLs:       src.URLs,
			Options:    src.Options,
			Query:      query,
		})
		if err != nil {
			return nil, fmt.Errorf("enumerate source %s: %w", src.Name, err)
		}

		for i := range units {
			if units[i].Origin == "" {
				units[i].Origin = src.Name
			}
		}
		s.debug("source produced units", "source", src.Name, "count", len(units))
		aggregated = append(aggregated, units...)
	}

	result := Window(aggregated, query)
	s.debug("strategy source done", "total_units", len(aggregated), "kept", len(result))
	return result, nil
}

// Window drops units older than the query age window, orders the rest newest
// first and keeps at most MaxUnits. Units without a timestamp are kept and
// sort last.
func Window(units []domain.ExtractionUnit, query ports.SourceQuery) []domain.ExtractionUnit {
	kept := make([]domain.ExtractionUnit, 0, len(units))
	for _, u := range units {
		if query.NewerThan > 0 && !u.ReceivedAt.IsZero() && !query.Now.IsZero() &&
			u.ReceivedAt.Before(query.Now.Add(-query.NewerThan)) {
			continue
		}
		kept = append(kept, u)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].ReceivedAt.After(kept[j].ReceivedAt)
	})

	if query.MaxUnits > 0 && len(kept) > query.MaxUnits {
		kept = kept[:query.MaxUnits]
	}
	return kept
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
