// Package pages turns configured scholarship listing pages into extraction
// units. A page is stamped with the run time, not its Last-Modified header,
// so long-lived listings always fall inside the source age window.
package pages

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/go-shiori/go-readability"

	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/linkcanon"
	"ScholarshipImporter/internal/sources"
)

// StrategyName registers the source in the strategy registry.
const StrategyName = "pages"

const (
	defaultTimeout   = 20 * time.Second
	defaultUserAgent = "ScholarshipImporter/1.0"
)

// Source fetches configured scholarship pages and reduces each one to its
// main content.
type Source struct {
	client *resty.Client
	logger *slog.Logger
}

var _ sources.Strategy = (*Source)(nil)

// NewSource wires an HTTP client; a nil client gets a 20s timeout.
func NewSource(client *resty.Client, logger *slog.Logger) *Source {
	if client == nil {
		client = resty.New().
			SetTimeout(defaultTimeout).
			SetHeader("User-Agent", defaultUserAgent)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{client: client, logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *Source) Name() string {
	return StrategyName
}

// Enumerate fetches every URL of the request. Pages that fail to load are
// logged and skipped.
func (s *Source) Enumerate(ctx context.Context, req sources.Request) ([]domain.ExtractionUnit, error) {
	if len(req.URLs) == 0 {
		return nil, fmt.Errorf("no urls provided for source %s", req.SourceName)
	}

	units := make([]domain.ExtractionUnit, 0, len(req.URLs))
	seen := map[string]struct{}{}
	for _, raw := range req.URLs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageURL := linkcanon.CleanURL(raw)
		if _, ok := seen[pageURL]; ok || pageURL == "" {
			continue
		}
		seen[pageURL] = struct{}{}

		unit, err := s.fetch(ctx, pageURL, req.Query.Now)
		if err != nil {
			s.logger.Warn("skip page", "url", pageURL, "error", err)
			continue
		}
		units = append(units, unit)
	}
	return units, nil
}

func (s *Source) fetch(ctx context.Context, pageURL string, now time.Time) (domain.ExtractionUnit, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return domain.ExtractionUnit{}, fmt.Errorf("invalid url: %w", err)
	}

	resp, err := s.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return domain.ExtractionUnit{}, fmt.Errorf("request page: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return domain.ExtractionUnit{}, fmt.Errorf("page returned %s", resp.Status())
	}

	body := resp.String()
	title, content := extractMain(body, parsed)
	if strings.TrimSpace(content) == "" {
		return domain.ExtractionUnit{}, fmt.Errorf("page has no content")
	}

	if now.IsZero() {
		now = time.Now()
	}

	return domain.ExtractionUnit{
		SourceID:   pageURL,
		Subject:    title,
		RawText:    content,
		ReceivedAt: now,
	}, nil
}

// extractMain returns the readable title and content markup of a page, falling
// back to the whole body when readability finds nothing.
func extractMain(body string, pageURL *url.URL) (string, string) {
	article, err := readability.FromReader(strings.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		return strings.TrimSpace(article.Title), article.Content
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", body
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	content, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(content) == "" {
		return title, body
	}
	return title, content
}
