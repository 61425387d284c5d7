package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"ScholarshipImporter/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "SCHOLARSHIP_IMPORTER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	llmProviderEnv    = "LLM_PROVIDER"
	llmModelEnv       = "LLM_MODEL"
	logLevelEnv       = "LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"

	// Credential environment variables, one per provider.
	OpenAIKeyEnv    = "OPENAI_API_KEY"
	AnthropicKeyEnv = "ANTHROPIC_API_KEY"
	GeminiKeyEnv    = "GEMINI_API_KEY"
)

// Provider names accepted in llm.provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-haiku-latest",
	ProviderGemini:    "gemini-1.5-flash",
}

var credentialEnvs = map[string]string{
	ProviderOpenAI:    OpenAIKeyEnv,
	ProviderAnthropic: AnthropicKeyEnv,
	ProviderGemini:    GeminiKeyEnv,
}

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Storage       StorageConfig      `yaml:"storage"`
	Sheets        SheetsConfig       `yaml:"sheets"`
	Source        SourceQueryConfig  `yaml:"source"`
	Sources       []SourceConfig     `yaml:"sources"`
	LLM           LLMConfig          `yaml:"llm"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Links         LinkCheckConfig    `yaml:"links"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig names the database/sql driver backing the tables.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SheetsConfig names the output, dedupe and ledger tables.
type SheetsConfig struct {
	Output string `yaml:"output"`
	Dedupe string `yaml:"dedupe"`
	Ledger string `yaml:"ledger"`
}

// SourceQueryConfig bounds which units a run considers.
type SourceQueryConfig struct {
	Label     string        `yaml:"label"`
	NewerThan time.Duration `yaml:"newerThan"`
	MaxUnits  int           `yaml:"maxUnits"`
}

// SourceConfig describes a single unit source with its strategy.
type SourceConfig struct {
	Name     string            `yaml:"name"`
	Strategy string            `yaml:"strategy"`
	URLs     []string          `yaml:"urls"`
	Options  map[string]string `yaml:"options"`
}

// LLMConfig selects and tunes the extraction provider.
type LLMConfig struct {
	Provider          string            `yaml:"provider"`
	Model             string            `yaml:"model"`
	Endpoint          string            `yaml:"endpoint"`
	Timeout           time.Duration     `yaml:"timeout"`
	MaxTokens         int               `yaml:"maxTokens"`
	RequestsPerMinute int               `yaml:"requestsPerMinute"`
	Credentials       CredentialsConfig `yaml:"credentials"`
}

// CredentialsConfig holds provider API keys. Environment variables win.
type CredentialsConfig struct {
	OpenAI    string `yaml:"openai"`
	Anthropic string `yaml:"anthropic"`
	Gemini    string `yaml:"gemini"`
}

// ExtractionConfig tunes prompt construction.
type ExtractionConfig struct {
	MaxBodyChars int          `yaml:"maxBodyChars"`
	Hints        []HintConfig `yaml:"hints"`
}

// HintConfig is one format hint; an empty pattern matches every subject.
type HintConfig struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Text    string `yaml:"text"`
}

// SchedulerConfig defines when imports should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	Endpoint string `yaml:"endpoint"`
}

// Enabled reports whether both token and chat are configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// LinkCheckConfig tunes the link validator.
type LinkCheckConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Load reads the YAML file at path (or $SCHOLARSHIP_IMPORTER_CONFIG when path
// is empty), merges it over the defaults and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, &domain.ConfigurationError{Setting: configPathEnv, Err: fmt.Errorf("read %s: %w", path, err)}
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return cfg, &domain.ConfigurationError{Setting: configPathEnv, Err: fmt.Errorf("parse %s: %w", path, err)}
		}
		if cfg, err = mergeConfig(cfg, fileCfg); err != nil {
			return cfg, err
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.bindTimezone(); err != nil {
		return cfg, err
	}

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings no run could succeed with.
func (c Config) Validate() error {
	if _, ok := credentialEnvs[c.LLM.ProviderName()]; !ok {
		return &domain.ConfigurationError{Setting: "llm.provider", Err: fmt.Errorf("unsupported provider %q", c.LLM.Provider)}
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return &domain.ConfigurationError{Setting: "storage.driver", Err: fmt.Errorf("unsupported driver %q", c.Storage.Driver)}
	}
	if c.Source.MaxUnits <= 0 {
		return &domain.ConfigurationError{Setting: "source.maxUnits", Err: errors.New("must be positive")}
	}
	if c.Source.NewerThan < 0 {
		return &domain.ConfigurationError{Setting: "source.newerThan", Err: errors.New("must not be negative")}
	}
	for i, src := range c.Sources {
		if src.Name == "" || src.Strategy == "" {
			return &domain.ConfigurationError{Setting: fmt.Sprintf("sources[%d]", i), Err: errors.New("name and strategy are required")}
		}
	}
	for i, hint := range c.Extraction.Hints {
		if hint.Pattern == "" {
			continue
		}
		if _, err := regexp.Compile(hint.Pattern); err != nil {
			return &domain.ConfigurationError{Setting: fmt.Sprintf("extraction.hints[%d].pattern", i), Err: err}
		}
	}
	return nil
}

// ProviderName returns the normalized provider name.
func (l LLMConfig) ProviderName() string {
	return strings.ToLower(strings.TrimSpace(l.Provider))
}

// ResolvedModel returns the configured model or the provider default.
func (l LLMConfig) ResolvedModel() string {
	if l.Model != "" {
		return l.Model
	}
	return defaultModels[l.ProviderName()]
}

// Credential returns the API key of the active provider and the environment
// variable it is read from.
func (l LLMConfig) Credential() (value, envName string) {
	name := l.ProviderName()
	switch name {
	case ProviderOpenAI:
		value = l.Credentials.OpenAI
	case ProviderAnthropic:
		value = l.Credentials.Anthropic
	case ProviderGemini:
		value = l.Credentials.Gemini
	}
	return value, credentialEnvs[name]
}

// CheckCredential fails when the active provider has no API key.
func (l LLMConfig) CheckCredential() error {
	value, envName := l.Credential()
	if strings.TrimSpace(value) == "" {
		return &domain.ConfigurationError{Setting: envName, Err: domain.ErrMissingCredential}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Storage.Driver = v
	}

	if v := os.Getenv(llmProviderEnv); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(OpenAIKeyEnv); v != "" {
		c.LLM.Credentials.OpenAI = v
	}
	if v := os.Getenv(AnthropicKeyEnv); v != "" {
		c.LLM.Credentials.Anthropic = v
	}
	if v := os.Getenv(GeminiKeyEnv); v != "" {
		c.LLM.Credentials.Gemini = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return &domain.ConfigurationError{Setting: "scheduler.timezone", Err: err}
	}
	c.Scheduler.location = loc
	return nil
}

// mergeConfig overlays every non-zero field of override onto base. Slices
// from override replace the defaults wholesale.
func mergeConfig(base, override Config) (Config, error) {
	if err := mergo.Merge(&base, override, mergo.WithOverride); err != nil {
		return base, &domain.ConfigurationError{Setting: configPathEnv, Err: fmt.Errorf("merge: %w", err)}
	}
	return base, nil
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{Driver: "sqlite", DSN: "file:scholarships.db"},
		Sheets:  SheetsConfig{Output: "Scholarships", Dedupe: "_processed_ids", Ledger: "_processed_emails"},
		Source: SourceQueryConfig{
			Label:     "Scholarships",
			NewerThan: 365 * 24 * time.Hour,
			MaxUnits:  100,
		},
		Sources: []SourceConfig{
			{
				Name:     "inbox",
				Strategy: "mailbox",
				Options:  map[string]string{"dir": "mail"},
			},
		},
		LLM: LLMConfig{
			Provider:  ProviderOpenAI,
			Timeout:   90 * time.Second,
			MaxTokens: 4096,
		},
		Extraction: ExtractionConfig{MaxBodyChars: 40000},
		Scheduler:  SchedulerConfig{CronExpression: "0 7 * * *", Timezone: defaultTimezone},
		Links:      LinkCheckConfig{Timeout: 15 * time.Second},
	}
}
