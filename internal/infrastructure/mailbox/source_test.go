package mailbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarshipImporter/internal/ports"
	"ScholarshipImporter/internal/sources"
)

const htmlMessage = "From: alerts@example.org\r\n" +
	"To: me@example.org\r\n" +
	"Subject: Scholarship Alert\r\n" +
	"Message-ID: <abc123@example.org>\r\n" +
	"Date: Mon, 01 Apr 2024 10:00:00 +0000\r\n" +
	"Content-Type: text/html; charset=UTF-8\r\n" +
	"\r\n" +
	"<p>STEM Award</p>\r\n"

const plainMessage = "From: counselor@example.org\r\n" +
	"Subject: Local grants\r\n" +
	"Content-Type: text/plain; charset=UTF-8\r\n" +
	"\r\n" +
	"Rotary Grant, due May 1\r\n"

func writeMessage(t *testing.T, dir, name, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseHTMLMessage(t *testing.T) {
	unit, err := Parse(strings.NewReader(htmlMessage), "fallback", time.Time{})
	require.NoError(t, err)

	assert.Equal(t, "abc123@example.org", unit.SourceID)
	assert.Equal(t, "Scholarship Alert", unit.Subject)
	assert.Contains(t, unit.RawText, "<p>STEM Award</p>")
	assert.True(t, unit.ReceivedAt.Equal(time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)))
}

func TestReadFileFallsBackToFileMetadata(t *testing.T) {
	path := writeMessage(t, t.TempDir(), "local-42.eml", plainMessage)
	mtime := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	unit, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "local-42", unit.SourceID)
	assert.Equal(t, "Local grants", unit.Subject)
	assert.Contains(t, unit.RawText, "Rotary Grant")
	assert.True(t, unit.ReceivedAt.Equal(mtime))
}

func TestEnumerateReadsLabelDirectory(t *testing.T) {
	root := t.TempDir()
	writeMessage(t, filepath.Join(root, "Scholarships"), "one.eml", htmlMessage)
	writeMessage(t, filepath.Join(root, "Scholarships", "2024"), "two.EML", plainMessage)
	writeMessage(t, filepath.Join(root, "Scholarships"), "notes.txt", "ignored")
	writeMessage(t, filepath.Join(root, "Other"), "three.eml", plainMessage)

	src := NewSource(slog.New(slog.NewTextHandler(io.Discard, nil)))
	units, err := src.Enumerate(context.Background(), sources.Request{
		SourceName: "inbox",
		Options:    map[string]string{"dir": root},
		Query:      ports.SourceQuery{Label: "Scholarships"},
	})
	require.NoError(t, err)
	require.Len(t, units, 2)

	ids := []string{units[0].SourceID, units[1].SourceID}
	assert.ElementsMatch(t, []string{"abc123@example.org", "two"}, ids)
}

func TestEnumerateLabelOptionOverridesQuery(t *testing.T) {
	root := t.TempDir()
	writeMessage(t, filepath.Join(root, "Grants"), "g.eml", plainMessage)

	units, err := NewSource(nil).Enumerate(context.Background(), sources.Request{
		Options: map[string]string{"dir": root, "label": "Grants"},
		Query:   ports.SourceQuery{Label: "Scholarships"},
	})
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestEnumerateErrors(t *testing.T) {
	_, err := NewSource(nil).Enumerate(context.Background(), sources.Request{SourceName: "inbox"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dir")

	_, err = NewSource(nil).Enumerate(context.Background(), sources.Request{
		Options: map[string]string{"dir": filepath.Join(t.TempDir(), "missing")},
	})
	require.Error(t, err)
}
