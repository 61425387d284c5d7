package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ScholarshipImporter/internal/config"
	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/extraction"
	"ScholarshipImporter/internal/infrastructure/llm"
	"ScholarshipImporter/internal/infrastructure/mailbox"
	"ScholarshipImporter/internal/infrastructure/pages"
	"ScholarshipImporter/internal/infrastructure/scheduler"
	"ScholarshipImporter/internal/infrastructure/storage"
	"ScholarshipImporter/internal/infrastructure/telegram"
	"ScholarshipImporter/internal/linkcheck"
	"ScholarshipImporter/internal/logging"
	"ScholarshipImporter/internal/ports"
	"ScholarshipImporter/internal/sources"
	"ScholarshipImporter/internal/textnorm"
	"ScholarshipImporter/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	sheets   ports.SheetStore
	close    func() error
	engine   *extraction.Engine
	pipeline *usecase.Pipeline
}

// New builds a runnable application instance. Callers must Close it.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	sheets, closeStore, err := openSheets(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(cfg, baseLogger.With("component", "extraction"))
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	registry := sources.NewRegistry()
	registry.Register(mailbox.NewSource(baseLogger.With("component", "source.mailbox")))
	registry.Register(pages.NewSource(nil, baseLogger.With("component", "source.pages")))

	source := sources.NewStrategySource(registry, cfg.Sources, baseLogger.With("component", "source"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		tg := cfg.Notifications.Telegram
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID, tg.Endpoint)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:    source,
		Sheets:    sheets,
		Extractor: engine,
		Notifier:  notifier,
		Preflight: cfg.LLM.CheckCredential,
		Logger:    baseLogger.With("component", "pipeline"),
	}, usecase.PipelineOptions{
		OutputSheet: cfg.Sheets.Output,
		DedupeSheet: cfg.Sheets.Dedupe,
		LedgerSheet: cfg.Sheets.Ledger,
		Label:       cfg.Source.Label,
		NewerThan:   cfg.Source.NewerThan,
		MaxUnits:    cfg.Source.MaxUnits,
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		sheets:   sheets,
		close:    closeStore,
		engine:   engine,
		pipeline: pipeline,
	}, nil
}

// Run performs a single import.
func (a *Application) Run(ctx context.Context) (domain.ImportSummary, error) {
	return a.pipeline.Run(ctx)
}

// Schedule runs imports on the configured cron expression until ctx ends.
func (a *Application) Schedule(ctx context.Context) error {
	if err := scheduler.Validate(a.cfg.Scheduler.CronExpression); err != nil {
		return &domain.ConfigurationError{Setting: "scheduler.cronExpression", Err: err}
	}
	if err := a.cfg.LLM.CheckCredential(); err != nil {
		return err
	}

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger.With("component", "scheduler"))
	runner := usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler"))
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return runner.Stop(stopCtx)
}

// Extract runs the extraction engine on a single file without touching
// storage. Files ending in .eml are parsed as messages; anything else is
// treated as HTML or plain text with the file name as subject.
func (a *Application) Extract(ctx context.Context, path, subject string) ([]domain.ExtractedRecord, error) {
	if err := a.cfg.LLM.CheckCredential(); err != nil {
		return nil, err
	}

	unit, err := loadUnit(path)
	if err != nil {
		return nil, err
	}
	if subject != "" {
		unit.Subject = subject
	}
	unit.RawText = textnorm.StripQuotedHeader(textnorm.ToPlainText(unit.RawText))

	return a.engine.ExtractUnit(ctx, unit)
}

// CheckLinks validates every link in the output table.
func (a *Application) CheckLinks(ctx context.Context) ([]domain.LinkStatus, error) {
	sheet := a.cfg.Sheets.Output
	if sheet == "" {
		sheet = usecase.DefaultOutputSheet
	}
	checker := linkcheck.NewChecker(a.sheets, sheet, a.cfg.Links.Timeout, a.logger.With("component", "linkcheck"))
	return checker.Check(ctx)
}

// Close releases the storage backend.
func (a *Application) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

func openSheets(ctx context.Context, cfg config.StorageConfig) (ports.SheetStore, func() error, error) {
	if cfg.Driver == "memory" {
		return storage.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := storage.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return store, store.Close, nil
}

func newEngine(cfg config.Config, logger *slog.Logger) (*extraction.Engine, error) {
	apiKey, credentialName := cfg.LLM.Credential()
	provider, err := llm.New(cfg.LLM.ProviderName(), llm.Options{
		Endpoint:          cfg.LLM.Endpoint,
		Model:             cfg.LLM.ResolvedModel(),
		APIKey:            apiKey,
		CredentialName:    credentialName,
		Timeout:           cfg.LLM.Timeout,
		MaxTokens:         cfg.LLM.MaxTokens,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	})
	if err != nil {
		return nil, err
	}

	hints, err := buildHints(cfg.Extraction.Hints)
	if err != nil {
		return nil, err
	}

	return extraction.NewEngine(provider, extraction.Options{
		MaxBodyChars: cfg.Extraction.MaxBodyChars,
		Hints:        hints,
	}, logger), nil
}

// buildHints compiles configured hints ahead of the built-in ones.
func buildHints(cfg []config.HintConfig) ([]extraction.FormatHint, error) {
	hints := make([]extraction.FormatHint, 0, len(cfg)+2)
	for i, h := range cfg {
		hint, err := extraction.NewFormatHint(h.Name, h.Pattern, h.Text)
		if err != nil {
			return nil, &domain.ConfigurationError{Setting: fmt.Sprintf("extraction.hints[%d]", i), Err: err}
		}
		hints = append(hints, hint)
	}
	return append(hints, extraction.DefaultHints()...), nil
}

func loadUnit(path string) (domain.ExtractionUnit, error) {
	if strings.EqualFold(filepath.Ext(path), ".eml") {
		return mailbox.ReadFile(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ExtractionUnit{}, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return domain.ExtractionUnit{
		SourceID: name,
		Subject:  strings.TrimSuffix(name, filepath.Ext(name)),
		RawText:  string(raw),
	}, nil
}
