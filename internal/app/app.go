// Package app builds the extraction components from configuration. Every
// command wires itself through here.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/species-extractor/internal/chunker"
	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/export"
	"github.com/joseph-ayodele/species-extractor/internal/ingest"
	"github.com/joseph-ayodele/species-extractor/internal/llm"
	"github.com/joseph-ayodele/species-extractor/internal/llm/ollama"
	"github.com/joseph-ayodele/species-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/species-extractor/internal/normalize"
	"github.com/joseph-ayodele/species-extractor/internal/ocr"
	"github.com/joseph-ayodele/species-extractor/internal/parser"
	"github.com/joseph-ayodele/species-extractor/internal/pipeline"
	"github.com/joseph-ayodele/species-extractor/internal/records"
	"github.com/joseph-ayodele/species-extractor/internal/repository"
	"github.com/joseph-ayodele/species-extractor/internal/textextract"
)

// ParseLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger writes JSON logs to stdout and, when cfg.File is set, appends
// them to that file too. The returned func closes the file.
func NewLogger(cfg common.LogConfig, stdout io.Writer) (*slog.Logger, func() error, error) {
	w := stdout
	closeFn := func() error { return nil }
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(stdout, f)
		closeFn = f.Close
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}))
	return logger, closeFn, nil
}

// NewCompleter returns the chat endpoint for the configured provider.
func NewCompleter(cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return ollama.NewClient(ollama.Config{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			JSONMode:    true,
		}, logger), nil
	case "openai":
		base := cfg.BaseURL
		if base == common.DefaultConfig().LLM.BaseURL {
			base = ""
		}
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     base,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			JSONMode:    true,
		}, logger), nil
	default:
		return nil, common.NewAppError(common.CodeConfig, "unknown llm provider "+cfg.Provider, common.ErrInvalidInput, nil)
	}
}

// NewTextExtractor wires pdfcpu, ledongthuc/pdf and the OCR engine. With
// engine "none" scanned pages are marked empty. The returned func releases
// the OCR engine.
func NewTextExtractor(cfg common.OCRConfig, logger *slog.Logger) (*textextract.Extractor, func(), error) {
	var (
		recognizer textextract.PageRecognizer
		closeFn    = func() {}
	)
	if cfg.Engine != "none" {
		o, err := ocr.NewExtractor(ocr.Config{
			Engine:              cfg.Engine,
			Lang:                cfg.Lang,
			DPI:                 cfg.DPI,
			TessdataDir:         cfg.TessdataDir,
			EnableTSVConfidence: cfg.TSVConfidence,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		recognizer = o
		closeFn = func() {
			if err := o.Close(); err != nil {
				logger.Warn("ocr.close_failed", "error", err)
			}
		}
	}
	x := textextract.NewExtractor(textextract.Config{
		MinChars:     cfg.MinChars,
		MinPrintable: cfg.MinPrintable,
	}, textextract.LedongthucSource{}, textextract.PdfcpuInspector{}, recognizer, logger)
	return x, closeFn, nil
}

func NewNormalizer(cfg common.TextConfig) *normalize.Normalizer {
	return normalize.New(normalize.Options{
		StopTerms: cfg.StopTerms,
		Language:  normalize.NewLanguageFilter(normalize.WhatlangDetector{}, cfg.MinLangConfidence, cfg.ExpectedLangs),
	})
}

// OpenStore returns nil without error when no DSN is configured.
func OpenStore(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (*repository.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil
	}
	return repository.Open(ctx, repository.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns}, logger)
}

// App is a fully wired extractor.
type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	Extractor *textextract.Extractor
	Client    *llm.Client
	Parser    *parser.Parser
	Processor *pipeline.Processor
	Pipeline  *pipeline.Pipeline
	Sink      export.Sink
	Store     *repository.DB

	closers []func()
}

// Build wires every component. A store that cannot be opened is logged and
// skipped; the run goes on without ledger or cache.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	extractor, closeOCR, err := NewTextExtractor(cfg.OCR, logger)
	if err != nil {
		return nil, err
	}
	a.Extractor = extractor
	a.closers = append(a.closers, closeOCR)

	completer, err := NewCompleter(cfg.LLM, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Warn("store.unavailable", "error", err)
		store = nil
	}
	var cache llm.ResponseCache
	if store != nil {
		a.Store = store
		cache = store
		a.closers = append(a.closers, func() { _ = store.Close() })
	}

	a.Client = llm.NewClient(completer, llm.ClientConfig{
		Timeout:      cfg.LLM.Timeout,
		MaxRetries:   cfg.LLM.MaxRetries,
		RetryBackoff: cfg.LLM.RetryBackoff,
	}, cache, logger)
	a.Parser = parser.New(logger)

	recs := records.New(records.Config{
		MinSpeciesTokens: cfg.Records.MinSpeciesTokens,
		RequireUse:       cfg.Records.RequireUse,
	}, logger)

	a.Processor = pipeline.NewProcessor(pipeline.Config{
		Concurrency: cfg.LLM.Concurrency,
		Prefilter:   cfg.Chunk.Prefilter,
	}, pipeline.Components{
		Extractor:  extractor,
		Normalizer: NewNormalizer(cfg.Text),
		Chunker:    chunker.New(chunker.Config{MaxChars: cfg.Chunk.Size, Overlap: cfg.Chunk.Overlap}),
		Client:     a.Client,
		Parser:     a.Parser,
		Records:    recs,
		Relevant:   chunker.Relevant,
	}, logger)

	opts := []pipeline.Option{pipeline.WithModel(completer.Model())}
	if store != nil {
		opts = append(opts, pipeline.WithLedger(store))
	}
	a.Pipeline = pipeline.New(ingest.NewFSIngestor(logger), a.Processor, recs, logger, opts...)
	a.Sink = export.NewSink(cfg.Export.OutputFile, logger)
	return a, nil
}

// Close releases the OCR engine and the store.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
