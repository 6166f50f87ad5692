// Package pipeline runs documents through extraction, normalization,
// chunking, model inference, parsing and record normalization.
package pipeline

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/species-extractor/constants"
	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
	"github.com/joseph-ayodele/species-extractor/internal/llm"
	"github.com/joseph-ayodele/species-extractor/internal/parser"
	"github.com/joseph-ayodele/species-extractor/internal/records"
	"github.com/joseph-ayodele/species-extractor/internal/textextract"
)

type TextExtractor interface {
	Extract(ctx context.Context, path string) ([]entity.PageText, textextract.Stats, error)
}

type TextNormalizer interface {
	Normalize(raw string) (string, int)
}

type Chunker interface {
	Chunks(document, text string) iter.Seq[entity.Chunk]
}

// ChunkClient returns the raw model answer for one chunk.
type ChunkClient interface {
	Extract(ctx context.Context, chunk entity.Chunk) (llm.Response, error)
}

type ResponseParser interface {
	Parse(raw string) parser.Result
}

type RecordNormalizer interface {
	Normalize(candidates []entity.CandidateRecord) ([]entity.FinalRecord, records.Stats)
	Merge(sets ...[]entity.FinalRecord) ([]entity.FinalRecord, records.Stats)
}

type Config struct {
	Concurrency int  // concurrent model calls per document; 1 is sequential
	Prefilter   bool // only send chunks that look relevant
}

// Processor handles one document at a time.
type Processor struct {
	cfg        Config
	extractor  TextExtractor
	normalizer TextNormalizer
	chunker    Chunker
	client     ChunkClient
	parser     ResponseParser
	records    RecordNormalizer
	relevant   func(string) bool
	logger     *slog.Logger
}

type Components struct {
	Extractor  TextExtractor
	Normalizer TextNormalizer
	Chunker    Chunker
	Client     ChunkClient
	Parser     ResponseParser
	Records    RecordNormalizer
	// Relevant decides which chunks are sent when Config.Prefilter is set.
	Relevant func(string) bool
}

func NewProcessor(cfg Config, c Components, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	relevant := c.Relevant
	if relevant == nil {
		relevant = func(string) bool { return true }
	}
	return &Processor{
		cfg:        cfg,
		extractor:  c.Extractor,
		normalizer: c.Normalizer,
		chunker:    c.Chunker,
		client:     c.Client,
		parser:     c.Parser,
		records:    c.Records,
		relevant:   relevant,
		logger:     logger,
	}
}

// DocumentResult is what one document contributes to the run.
type DocumentResult struct {
	Summary entity.DocumentSummary
	Records []entity.FinalRecord
}

// ProcessDocument never fails the run: every failure ends up in the summary.
func (p *Processor) ProcessDocument(ctx context.Context, doc entity.Document) DocumentResult {
	start := time.Now()
	label := documentLabel(doc)
	ctx = common.WithDocument(ctx, label)
	sum := entity.DocumentSummary{Document: label, SHA256: doc.SHA256}
	log := p.logger.With("doc", label)

	finish := func(res DocumentResult) DocumentResult {
		res.Summary.Elapsed = time.Since(start)
		logSummary(log, res.Summary)
		return res
	}

	// 1) pages -> normalized text
	text, err := p.documentText(ctx, doc.Path, &sum)
	if err != nil {
		if isCancel(err) {
			sum.Status = constants.DocumentCancelled
			return finish(DocumentResult{Summary: sum})
		}
		sum.Status = constants.DocumentFailed
		sum.Error = err.Error()
		return finish(DocumentResult{Summary: sum})
	}

	// 2) chunks -> model -> candidates
	candidates, cancelled := p.extractChunks(ctx, label, text, &sum)
	sum.Candidates = len(candidates)

	// 3) per-document normalization
	final, stats := p.records.Normalize(candidates)
	sum.Accepted = stats.Accepted
	sum.Rejected = stats.RejectedTotal()

	switch {
	case cancelled:
		sum.Status = constants.DocumentCancelled
	case sum.ChunksFailed > 0:
		sum.Status = constants.DocumentPartial
	default:
		sum.Status = constants.DocumentOK
	}
	return finish(DocumentResult{Summary: sum, Records: final})
}

// documentText extracts every page and joins the normalized page texts with
// a paragraph break.
func (p *Processor) documentText(ctx context.Context, path string, sum *entity.DocumentSummary) (string, error) {
	pages, stats, err := p.extractor.Extract(ctx, path)
	sum.Pages = stats.Pages
	sum.PagesDigital = stats.Digital
	sum.PagesOCR = stats.OCR
	sum.PagesEmpty = stats.Empty
	sum.OCRFailures = stats.OCRFailures
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(pages))
	for _, pg := range pages {
		if pg.Method == constants.PageEmpty || pg.Text == "" {
			continue
		}
		clean, dropped := p.normalizer.Normalize(pg.Text)
		sum.LanguageDropped += dropped
		if clean != "" {
			parts = append(parts, clean)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func documentLabel(doc entity.Document) string {
	if doc.Name != "" {
		return doc.Name
	}
	return doc.Path
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func logSummary(log *slog.Logger, s entity.DocumentSummary) {
	attrs := []any{
		"status", s.Status,
		"pages", s.Pages,
		"pages_digital", s.PagesDigital,
		"pages_ocr", s.PagesOCR,
		"pages_empty", s.PagesEmpty,
		"ocr_failures", s.OCRFailures,
		"language_dropped", s.LanguageDropped,
		"chunks", s.Chunks,
		"chunks_skipped", s.ChunksSkipped,
		"chunks_failed", s.ChunksFailed,
		"chunks_cached", s.ChunksCached,
		"candidates", s.Candidates,
		"accepted", s.Accepted,
		"rejected", s.Rejected,
		"elapsed_ms", s.Elapsed.Milliseconds(),
	}
	switch s.Status {
	case constants.DocumentFailed:
		log.Error("pipeline.document.failed", append(attrs, "error", s.Error)...)
	case constants.DocumentPartial, constants.DocumentCancelled:
		log.Warn("pipeline.document.done", attrs...)
	default:
		log.Info("pipeline.document.done", attrs...)
	}
}
