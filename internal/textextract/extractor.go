// Package textextract turns a PDF into per-page text, using the embedded text
// layer when it is usable and OCR on the rendered page otherwise.
package textextract

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/species-extractor/constants"
	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
	"github.com/joseph-ayodele/species-extractor/internal/ocr"
)

// PageRecognizer runs OCR on one page of a PDF.
type PageRecognizer interface {
	RecognizePage(ctx context.Context, path string, page int) (ocr.PageResult, error)
}

type Config struct {
	MinChars     int     // pages with fewer non-space runes go to OCR
	MinPrintable float64 // pages with a lower printable ratio go to OCR
}

// Stats counts how each page of a document was resolved.
type Stats struct {
	Pages       int
	Digital     int
	OCR         int
	Empty       int
	OCRFailures int
}

type Extractor struct {
	cfg       Config
	source    PageSource
	inspector Inspector
	ocr       PageRecognizer
	logger    *slog.Logger
}

// NewExtractor wires the extractor. recognizer may be nil, in which case
// pages without a usable text layer are marked empty.
func NewExtractor(cfg Config, source PageSource, inspector Inspector, recognizer PageRecognizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if source == nil {
		source = LedongthucSource{}
	}
	return &Extractor{cfg: cfg, source: source, inspector: inspector, ocr: recognizer, logger: logger}
}

// Extract returns one PageText per page, in page order. A document that cannot
// be opened returns a DocumentOpenError. Page-level failures never fail the
// document. On cancellation the pages read so far are returned with ctx.Err().
func (e *Extractor) Extract(ctx context.Context, path string) ([]entity.PageText, Stats, error) {
	start := time.Now()
	var stats Stats

	inspected := 0
	if e.inspector != nil {
		n, err := e.inspector.Inspect(path)
		if err != nil {
			e.logger.Warn("pdf.inspect.failed", "doc", path, "error", err)
		} else {
			inspected = n
		}
	}

	reader, err := e.source.Open(path)
	if err != nil {
		e.logger.Error("pdf.open.failed", "doc", path, "error", err)
		return nil, stats, common.DocumentOpenError(path, err)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			e.logger.Warn("pdf.close.failed", "doc", path, "error", cerr)
		}
	}()

	n := reader.NumPage()
	if n == 0 && inspected > 0 {
		n = inspected
	}
	if n == 0 {
		return nil, stats, common.DocumentOpenError(path, errors.New("document has no pages"))
	}
	if inspected > 0 && inspected != n {
		e.logger.Debug("pdf.page_count.mismatch", "doc", path, "pdfcpu", inspected, "reader", n)
	}

	pages := make([]entity.PageText, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return pages, stats, err
		}
		pt := e.extractPage(ctx, reader, path, i, &stats)
		pages = append(pages, pt)
		stats.Pages++
		switch pt.Method {
		case constants.PageDigital:
			stats.Digital++
		case constants.PageOCR:
			stats.OCR++
		default:
			stats.Empty++
		}
	}

	e.logger.Info("pdf.extract.done",
		"doc", path,
		"pages", stats.Pages,
		"digital", stats.Digital,
		"ocr", stats.OCR,
		"empty", stats.Empty,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, stats, nil
}

func (e *Extractor) extractPage(ctx context.Context, reader PageReader, path string, page int, stats *Stats) entity.PageText {
	digital, err := reader.PageText(page)
	if err != nil {
		e.logger.Warn("pdf.page.text_failed", "doc", path, "page", page,
			"error", common.PageExtractionError(path, page, err))
		digital = ""
	}

	q := MeasureQuality(digital)
	if !q.NeedsOCR(e.cfg.MinChars, e.cfg.MinPrintable) {
		return entity.PageText{Page: page, Text: digital, Method: constants.PageDigital}
	}

	fallback := func() entity.PageText {
		if strings.TrimSpace(digital) != "" && q.PrintableRatio >= e.cfg.MinPrintable {
			return entity.PageText{Page: page, Text: digital, Method: constants.PageDigital}
		}
		return entity.PageText{Page: page, Method: constants.PageEmpty}
	}

	if e.ocr == nil {
		return fallback()
	}

	res, err := e.ocr.RecognizePage(ctx, path, page)
	if err != nil {
		stats.OCRFailures++
		e.logger.Warn("pdf.page.ocr_failed", "doc", path, "page", page,
			"error", common.PageExtractionError(path, page, err))
		return fallback()
	}
	e.logger.Debug("pdf.page.ocr", "doc", path, "page", page, "chars", q.Chars,
		"printable", q.PrintableRatio, "ocr_chars", len(res.Text), "confidence", res.Confidence)
	if strings.TrimSpace(res.Text) == "" {
		return fallback()
	}
	return entity.PageText{Page: page, Text: res.Text, Method: constants.PageOCR}
}
