package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarshipImporter/internal/config"
	"ScholarshipImporter/internal/domain"
)

const alertMessage = "From: alerts@example.org\r\n" +
	"Subject: Scholarship Alert\r\n" +
	"Message-ID: <alert-1@example.org>\r\n" +
	"Date: Mon, 01 Apr 2024 10:00:00 +0000\r\n" +
	"Content-Type: text/html; charset=UTF-8\r\n" +
	"\r\n" +
	"<p>Sample Scholarship</p><p>Closing Date: 2024-01-01</p><p>Deadline: 2024-02-01</p>\r\n"

const completion = `{"choices":[{"message":{"content":"{\"scholarships\":[{\"title\":\"Sample Scholarship\",\"closing_date\":\"2024-01-01\",\"deadline\":\"2024-02-01\",\"link\":\"example.org/apply - open in new window\"}]}"}}]}`

func testConfig(t *testing.T, endpoint string) config.Config {
	t.Helper()

	root := t.TempDir()
	dir := filepath.Join(root, "Scholarships")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alert.eml"), []byte(alertMessage), 0o600))

	cfg := config.Config{
		Storage: config.StorageConfig{Driver: "sqlite", DSN: ":memory:"},
		Source:  config.SourceQueryConfig{Label: "Scholarships", MaxUnits: 10},
		Sources: []config.SourceConfig{{Name: "inbox", Strategy: "mailbox", Options: map[string]string{"dir": root}}},
		LLM: config.LLMConfig{
			Provider:    config.ProviderOpenAI,
			Endpoint:    endpoint,
			Credentials: config.CredentialsConfig{OpenAI: "sk-test"},
		},
	}
	return cfg
}

func completionServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion))
	}))
	t.Cleanup(server.Close)
	return server
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplicationRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	server := completionServer(t)

	application, err := New(ctx, testConfig(t, server.URL), quiet())
	require.NoError(t, err)
	defer application.Close()

	summary, err := application.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportSummary{Imported: 1, Units: 1}, summary)

	rows, err := application.sheets.Rows(ctx, "Scholarships")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Sample Scholarship", rows[0][0])
	assert.Equal(t, "2024-01-01", rows[0][3])
	assert.Equal(t, "https://example.org/apply", rows[0][5])

	summary, err = application.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 1, summary.Duplicates)
}

func TestApplicationRunMissingCredential(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.LLM.Credentials.OpenAI = ""

	application, err := New(ctx, cfg, quiet())
	require.NoError(t, err)
	defer application.Close()

	_, err = application.Run(ctx)
	var cerr *domain.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, config.OpenAIKeyEnv, cerr.Setting)
}

func TestApplicationExtractDryRun(t *testing.T) {
	ctx := context.Background()
	server := completionServer(t)
	cfg := testConfig(t, server.URL)
	cfg.Storage.Driver = "memory"

	path := filepath.Join(t.TempDir(), "listing.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>Sample Scholarship</p>"), 0o600))

	application, err := New(ctx, cfg, quiet())
	require.NoError(t, err)
	defer application.Close()

	records, err := application.Extract(ctx, path, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-01-01", records[0].ClosingDate)
	assert.Empty(t, records[0].Deadline)
}

func TestBuildHintsAppendsDefaults(t *testing.T) {
	hints, err := buildHints([]config.HintConfig{{Name: "district", Pattern: "(?i)bulletin", Text: "numbered"}})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(hints), 2)
	assert.Equal(t, "district", hints[0].Name)
	assert.Equal(t, "generic", hints[len(hints)-1].Name)

	_, err = buildHints([]config.HintConfig{{Name: "bad", Pattern: "(["}})
	var cerr *domain.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}
