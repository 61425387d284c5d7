package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarshipImporter/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		configPathEnv, databaseDSNEnv, databaseDriverEnv, llmProviderEnv, llmModelEnv, logLevelEnv,
		telegramTokenEnv, telegramChatIDEnv, OpenAIKeyEnv, AnthropicKeyEnv, GeminiKeyEnv,
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "Scholarships", cfg.Source.Label)
	assert.Equal(t, 365*24*time.Hour, cfg.Source.NewerThan)
	assert.Equal(t, 100, cfg.Source.MaxUnits)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.ResolvedModel())
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "mailbox", cfg.Sources[0].Strategy)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
logging:
  format: json
source:
  newerThan: 720h
llm:
  provider: Anthropic
  requestsPerMinute: 20
sources:
  - name: foundations
    strategy: pages
    urls:
      - https://example.org/scholarships
extraction:
  hints:
    - name: district
      pattern: "(?i)district bulletin"
      text: Listings are numbered.
scheduler:
  timezone: America/Chicago
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 720*time.Hour, cfg.Source.NewerThan)
	assert.Equal(t, 100, cfg.Source.MaxUnits)
	assert.Equal(t, "anthropic", cfg.LLM.ProviderName())
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.LLM.ResolvedModel())
	assert.Equal(t, 20, cfg.LLM.RequestsPerMinute)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, []string{"https://example.org/scholarships"}, cfg.Sources[0].URLs)
	require.Len(t, cfg.Extraction.Hints, 1)
	assert.Equal(t, 40000, cfg.Extraction.MaxBodyChars)
	assert.Equal(t, "America/Chicago", cfg.Scheduler.Location().String())
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, writeConfig(t, "source:\n  label: Grants\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Grants", cfg.Source.Label)
}

func TestEnvOverridesCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv(llmProviderEnv, "gemini")
	t.Setenv(GeminiKeyEnv, "g-key")
	t.Setenv(databaseDSNEnv, "postgres://localhost/scholarships")
	t.Setenv(databaseDriverEnv, "postgres")

	cfg, err := Load("")
	require.NoError(t, err)

	value, env := cfg.LLM.Credential()
	assert.Equal(t, "g-key", value)
	assert.Equal(t, GeminiKeyEnv, env)
	assert.NoError(t, cfg.LLM.CheckCredential())
	assert.Equal(t, "postgres", cfg.Storage.Driver)
}

func TestCheckCredentialMissing(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.LLM.CheckCredential()
	var cerr *domain.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, OpenAIKeyEnv, cerr.Setting)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		setting string
	}{
		{name: "provider", body: "llm:\n  provider: mistral\n", setting: "llm.provider"},
		{name: "driver", body: "storage:\n  driver: mysql\n", setting: "storage.driver"},
		{name: "hint pattern", body: "extraction:\n  hints:\n    - name: bad\n      pattern: \"([\"\n", setting: "extraction.hints[0].pattern"},
		{name: "source", body: "sources:\n  - name: nameless-strategy\n", setting: "sources[0]"},
		{name: "timezone", body: "scheduler:\n  timezone: Mars/Olympus\n", setting: "scheduler.timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.body))

			var cerr *domain.ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.setting, cerr.Setting)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	var cerr *domain.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}
