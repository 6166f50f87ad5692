package repository

import (
	"context"
	"time"

	"github.com/joseph-ayodele/species-extractor/constants"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

// Run is one row of extraction_runs.
type Run struct {
	ID        string
	InputDir  string
	Model     string
	Status    constants.RunStatus
	Documents int
	Records   int
	Error     string
}

// ExtractJobRepository records runs and their per-document summaries.
type ExtractJobRepository interface {
	StartRun(ctx context.Context, runID, inputDir, model string) error
	RecordDocument(ctx context.Context, runID string, s entity.DocumentSummary) error
	FinishRun(ctx context.Context, runID string, status constants.RunStatus, documents, records int, errMsg string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
}

var _ ExtractJobRepository = (*DB)(nil)

func (db *DB) StartRun(ctx context.Context, runID, inputDir, model string) error {
	err := db.exec(ctx,
		`INSERT INTO extraction_runs (id, input_dir, model, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, inputDir, model, string(constants.RunRunning), time.Now().UTC(),
	)
	if err != nil {
		db.logger.Error("store.run.start_failed", "run_id", runID, "error", err)
		return err
	}
	db.logger.Info("store.run.started", "run_id", runID, "model", model)
	return nil
}

// RecordDocument upserts a summary so a document reprocessed in watch mode
// keeps its latest outcome.
func (db *DB) RecordDocument(ctx context.Context, runID string, s entity.DocumentSummary) error {
	err := db.exec(ctx,
		`INSERT INTO document_summaries (
			run_id, document, sha256, status, pages, pages_digital, pages_ocr, pages_empty,
			ocr_failures, language_dropped, chunks, chunks_skipped, chunks_failed, chunks_cached,
			candidates, accepted, rejected, error, elapsed_ms, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, document) DO UPDATE SET
			sha256 = excluded.sha256, status = excluded.status, pages = excluded.pages,
			pages_digital = excluded.pages_digital, pages_ocr = excluded.pages_ocr,
			pages_empty = excluded.pages_empty, ocr_failures = excluded.ocr_failures,
			language_dropped = excluded.language_dropped, chunks = excluded.chunks,
			chunks_skipped = excluded.chunks_skipped, chunks_failed = excluded.chunks_failed,
			chunks_cached = excluded.chunks_cached, candidates = excluded.candidates,
			accepted = excluded.accepted, rejected = excluded.rejected, error = excluded.error,
			elapsed_ms = excluded.elapsed_ms, recorded_at = excluded.recorded_at`,
		runID, s.Document, s.SHA256, string(s.Status), s.Pages, s.PagesDigital, s.PagesOCR, s.PagesEmpty,
		s.OCRFailures, s.LanguageDropped, s.Chunks, s.ChunksSkipped, s.ChunksFailed, s.ChunksCached,
		s.Candidates, s.Accepted, s.Rejected, s.Error, s.Elapsed.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		db.logger.Error("store.document.record_failed", "run_id", runID, "doc", s.Document, "error", err)
		return err
	}
	return nil
}

func (db *DB) FinishRun(ctx context.Context, runID string, status constants.RunStatus, documents, records int, errMsg string) error {
	err := db.exec(ctx,
		`UPDATE extraction_runs SET status = ?, finished_at = ?, documents = ?, records = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), documents, records, errMsg, runID,
	)
	if err != nil {
		db.logger.Error("store.run.finish_failed", "run_id", runID, "error", err)
		return err
	}
	db.logger.Info("store.run.finished", "run_id", runID, "status", status, "records", records)
	return nil
}

func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		r      Run
		status string
	)
	err := db.sql.QueryRowContext(ctx,
		db.rebind(`SELECT id, input_dir, model, status, documents, records, error FROM extraction_runs WHERE id = ?`),
		runID,
	).Scan(&r.ID, &r.InputDir, &r.Model, &status, &r.Documents, &r.Records, &r.Error)
	if err != nil {
		return nil, notFound(err, "run "+runID)
	}
	r.Status = constants.RunStatus(status)
	return &r, nil
}

// DocumentStatuses returns the recorded status of every document in a run.
func (db *DB) DocumentStatuses(ctx context.Context, runID string) (map[string]constants.DocumentStatus, error) {
	rows, err := db.sql.QueryContext(ctx,
		db.rebind(`SELECT document, status FROM document_summaries WHERE run_id = ?`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]constants.DocumentStatus)
	for rows.Next() {
		var doc, status string
		if err := rows.Scan(&doc, &status); err != nil {
			return nil, err
		}
		out[doc] = constants.DocumentStatus(status)
	}
	return out, rows.Err()
}
