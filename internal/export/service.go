// Package export writes the final record set to a spreadsheet.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/species-extractor/constants"
	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

const (
	SheetRecords = "Especies"
	SheetSummary = "Resumen"
)

// Sink accepts the result of a run. Write may be called repeatedly (watch
// mode); each call replaces the previous output.
type Sink interface {
	Write(ctx context.Context, result entity.RunResult) error
	Path() string
}

// NewSink picks the format from the file extension: .csv writes CSV,
// anything else an XLSX workbook.
func NewSink(path string, logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return &CSVSink{path: path, logger: logger}
	}
	return &XLSXSink{path: path, logger: logger}
}

// RecordHeaders are the columns of the records table, in order.
var RecordHeaders = append(constants.AsStringSlice(), "archivo_origen", "chunks", "apariciones")

var summaryHeaders = []string{
	"document", "sha256", "status", "pages", "pages_digital", "pages_ocr", "pages_empty",
	"ocr_failures", "language_dropped", "chunks", "chunks_skipped", "chunks_failed",
	"chunks_cached", "candidates", "accepted", "rejected", "error", "elapsed_ms",
}

func recordRow(r entity.FinalRecord) []any {
	chunks := make([]string, 0, len(r.Provenance))
	for _, p := range r.Provenance {
		chunks = append(chunks, fmt.Sprintf("%s#%d", p.Document, p.Chunk))
	}
	return []any{
		r.EspecieCientifica,
		r.NombreComun,
		r.UsoPrecolombino,
		r.Justificacion,
		strings.Join(r.Documents(), "; "),
		strings.Join(chunks, "; "),
		len(r.Provenance),
	}
}

func summaryRow(s entity.DocumentSummary) []any {
	return []any{
		s.Document, s.SHA256, string(s.Status), s.Pages, s.PagesDigital, s.PagesOCR, s.PagesEmpty,
		s.OCRFailures, s.LanguageDropped, s.Chunks, s.ChunksSkipped, s.ChunksFailed,
		s.ChunksCached, s.Candidates, s.Accepted, s.Rejected, truncate(s.Error, 500), s.Elapsed.Milliseconds(),
	}
}

// XLSXSink writes a workbook with a records sheet and a summary sheet.
type XLSXSink struct {
	path   string
	logger *slog.Logger
}

func (s *XLSXSink) Path() string { return s.path }

// Workbook builds the workbook in memory.
func Workbook(result entity.RunResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetRecords); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return nil, err
	}
	index, _ := f.GetSheetIndex(SheetRecords)
	f.SetActiveSheet(index)

	if err := writeTable(f, SheetRecords, RecordHeaders, len(result.Records), func(i int) []any {
		return recordRow(result.Records[i])
	}); err != nil {
		return nil, err
	}
	if err := writeTable(f, SheetSummary, summaryHeaders, len(result.Summaries), func(i int) []any {
		return summaryRow(result.Summaries[i])
	}); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(SheetRecords, "A", "A", 30) // species
	_ = f.SetColWidth(SheetRecords, "B", "B", 24) // common name
	_ = f.SetColWidth(SheetRecords, "C", "D", 48) // use, justification
	_ = f.SetColWidth(SheetRecords, "E", "F", 40) // provenance
	_ = f.SetColWidth(SheetSummary, "A", "A", 40)
	_ = f.SetColWidth(SheetSummary, "B", "B", 20)
	return f, nil
}

func writeTable(f *excelize.File, sheet string, headers []string, n int, row func(int) []any) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := row(i)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func (s *XLSXSink) Write(ctx context.Context, result entity.RunResult) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return common.SinkError(s.path, err)
	}
	f, err := Workbook(result)
	if err != nil {
		return common.SinkError(s.path, fmt.Errorf("xlsx build: %w", err))
	}
	defer func() { _ = f.Close() }()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return common.SinkError(s.path, fmt.Errorf("xlsx write: %w", err))
	}
	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return common.SinkError(s.path, err)
	}

	s.logger.Info("export.xlsx.ok",
		"path", s.path,
		"rows", len(result.Records),
		"documents", len(result.Summaries),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// writeFileAtomic creates the parent directory and replaces path through a
// temporary sibling, so a reader never sees a half-written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// truncate caps s at n bytes, ending with an ellipsis and never splitting a rune.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	const ellipsis = "…"
	cut, tail := n-len(ellipsis), ellipsis
	if cut <= 0 {
		cut, tail = n, ""
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + tail
}
