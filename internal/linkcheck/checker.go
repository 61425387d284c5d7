// Package linkcheck validates the links stored in the output table.
package linkcheck

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/linkcanon"
	"ScholarshipImporter/internal/ports"
)

// Row statuses.
const (
	StatusOK    = "Loaded Successfully"
	StatusNoURL = "No URL Provided"
)

const linkColumn = "Link"

// Checker issues a GET for every row link and reports the outcome.
type Checker struct {
	sheets ports.SheetStore
	sheet  string
	client *resty.Client
	logger *slog.Logger
}

// NewChecker builds a checker over sheet with the given per-request timeout.
func NewChecker(sheets ports.SheetStore, sheet string, timeout time.Duration, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		sheets: sheets,
		sheet:  sheet,
		client: resty.New().SetTimeout(timeout).SetHeader("User-Agent", "ScholarshipImporter/1.0"),
		logger: logger,
	}
}

// Check returns one status per data row. Row numbers are 1-based sheet rows,
// so the first data row is 2.
func (c *Checker) Check(ctx context.Context) ([]domain.LinkStatus, error) {
	header, err := c.sheets.Header(ctx, c.sheet)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := slices.Index(header, linkColumn)
	if col < 0 {
		return nil, fmt.Errorf("sheet %s has no %s column", c.sheet, linkColumn)
	}

	rows, err := c.sheets.Rows(ctx, c.sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	statuses := make([]domain.LinkStatus, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}
		link := ""
		if col < len(row) {
			link = linkcanon.CleanURL(row[col])
		}
		status := domain.LinkStatus{Row: i + 2, URL: link, Status: c.Status(ctx, link)}
		c.logger.Debug("link checked", "row", status.Row, "url", link, "status", status.Status)
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Status fetches link and describes the result.
func (c *Checker) Status(ctx context.Context, link string) string {
	if strings.TrimSpace(link) == "" {
		return StatusNoURL
	}

	resp, err := c.client.R().SetContext(ctx).Get(link)
	if err != nil {
		return fmt.Sprintf("Failed to load. Error: %v", err)
	}
	if resp.StatusCode() == http.StatusOK {
		return StatusOK
	}
	return fmt.Sprintf("Error %d", resp.StatusCode())
}
