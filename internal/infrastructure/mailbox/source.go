// Package mailbox enumerates messages stored as .eml files, one directory per
// label.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/sources"
)

// StrategyName registers the source in the strategy registry.
const StrategyName = "mailbox"

const messageExt = ".eml"

// Source reads messages from <dir>/<label>/**/*.eml.
type Source struct {
	logger *slog.Logger
}

var _ sources.Strategy = (*Source)(nil)

// NewSource builds a mailbox strategy.
func NewSource(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *Source) Name() string {
	return StrategyName
}

// Enumerate lists the messages filed under the query label. Options: "dir"
// is the mailbox root, "label" overrides the query label.
func (s *Source) Enumerate(ctx context.Context, req sources.Request) ([]domain.ExtractionUnit, error) {
	root := req.Options["dir"]
	if root == "" {
		return nil, fmt.Errorf("source %s: option dir is required", req.SourceName)
	}
	label := req.Query.Label
	if v := req.Options["label"]; v != "" {
		label = v
	}
	dir := filepath.Join(root, label)

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), messageExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	units := make([]domain.ExtractionUnit, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unit, err := ReadFile(path)
		if err != nil {
			s.logger.Warn("skip unreadable message", "path", path, "error", err)
			continue
		}
		units = append(units, unit)
	}
	return units, nil
}

// ReadFile parses a single .eml file. The file name and modification time
// stand in for a missing Message-ID or Date header.
func ReadFile(path string) (domain.ExtractionUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ExtractionUnit{}, fmt.Errorf("open message: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.ExtractionUnit{}, fmt.Errorf("stat message: %w", err)
	}

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(f, id, info.ModTime())
}

// Parse decodes an RFC 5322 message into an extraction unit. HTML bodies are
// preferred over plain text.
func Parse(r io.Reader, fallbackID string, fallbackTime time.Time) (domain.ExtractionUnit, error) {
	msg, err := email.NewEmailFromReader(r)
	if err != nil {
		return domain.ExtractionUnit{}, fmt.Errorf("parse message: %w", err)
	}

	id := strings.Trim(strings.TrimSpace(msg.Headers.Get("Message-Id")), "<>")
	if id == "" {
		id = fallbackID
	}
	if id == "" {
		return domain.ExtractionUnit{}, errors.New("message has no identifier")
	}

	received := fallbackTime
	if raw := msg.Headers.Get("Date"); raw != "" {
		if parsed, err := mail.ParseDate(raw); err == nil {
			received = parsed
		}
	}

	body := string(msg.HTML)
	if strings.TrimSpace(body) == "" {
		body = string(msg.Text)
	}

	return domain.ExtractionUnit{
		SourceID:   id,
		Subject:    strings.TrimSpace(msg.Subject),
		RawText:    body,
		ReceivedAt: received,
	}, nil
}
