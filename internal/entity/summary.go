package entity

import (
	"time"

	"github.com/joseph-ayodele/species-extractor/constants"
)

// DocumentSummary is the per-document processing report written to the run
// log, the ledger and the Resumen sheet.
type DocumentSummary struct {
	Document        string                   `json:"document"`
	SHA256          string                   `json:"sha256"`
	Status          constants.DocumentStatus `json:"status"`
	Pages           int                      `json:"pages"`
	PagesDigital    int                      `json:"pages_digital"`
	PagesOCR        int                      `json:"pages_ocr"`
	PagesEmpty      int                      `json:"pages_empty"`
	OCRFailures     int                      `json:"ocr_failures"`
	LanguageDropped int                      `json:"language_dropped"`
	Chunks          int                      `json:"chunks"`
	ChunksSkipped   int                      `json:"chunks_skipped"`
	ChunksFailed    int                      `json:"chunks_failed"`
	ChunksCached    int                      `json:"chunks_cached"`
	Candidates      int                      `json:"candidates"`
	Accepted        int                      `json:"accepted"`
	Rejected        int                      `json:"rejected"`
	Error           string                   `json:"error,omitempty"`
	Elapsed         time.Duration            `json:"elapsed"`
}

// RunResult is what a whole run hands to the export sink.
type RunResult struct {
	RunID     string            `json:"run_id"`
	Records   []FinalRecord     `json:"records"`
	Summaries []DocumentSummary `json:"summaries"`
	Cancelled bool              `json:"cancelled"`
}
