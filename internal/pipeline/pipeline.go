package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/species-extractor/constants"
	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
	"github.com/joseph-ayodele/species-extractor/internal/ingest"
)

// Ledger is the part of the run store the pipeline writes to. Its failures
// are logged and never stop a run.
type Ledger interface {
	StartRun(ctx context.Context, runID, inputDir, model string) error
	RecordDocument(ctx context.Context, runID string, s entity.DocumentSummary) error
	FinishRun(ctx context.Context, runID string, status constants.RunStatus, documents, records int, errMsg string) error
}

// Pipeline processes a folder of documents one at a time and merges their
// records at corpus scope.
type Pipeline struct {
	ingestor  ingest.Ingestor
	processor *Processor
	records   RecordNormalizer
	ledger    Ledger
	model     string
	logger    *slog.Logger

	dedup  *ingest.Deduper
	corpus *Corpus
	runID  string
	root   string
}

type Option func(*Pipeline)

func WithLedger(l Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithModel sets the model name recorded in the ledger.
func WithModel(name string) Option {
	return func(p *Pipeline) { p.model = name }
}

func New(ingestor ingest.Ingestor, processor *Processor, recs RecordNormalizer, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		ingestor:  ingestor,
		processor: processor,
		records:   recs,
		logger:    logger,
		dedup:     ingest.NewDeduper(),
		corpus:    NewCorpus(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run discovers the PDFs under root and processes them in order. Only an
// input folder without documents is fatal. When ctx is cancelled the
// remaining documents are marked cancelled and the records produced so far
// are returned with Cancelled set.
func (p *Pipeline) Run(ctx context.Context, root string) (entity.RunResult, error) {
	start := time.Now()
	p.runID = common.RunIDFromContext(ctx)
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	ctx = common.WithRunID(ctx, p.runID)
	p.root = root
	log := p.logger.With("run_id", p.runID)

	results, _, err := p.ingestor.IngestDirectory(ctx, root)
	if err != nil && !isCancel(err) {
		log.Error("pipeline.discover.failed", "root", root, "error", err)
		return entity.RunResult{RunID: p.runID}, err
	}
	if err == nil && len(results) == 0 {
		err := common.NewAppError(common.CodeNoDocuments, "no PDF documents in "+root, common.ErrNoDocuments, nil)
		log.Error("pipeline.discover.empty", "root", root)
		return entity.RunResult{RunID: p.runID}, err
	}

	log.Info("pipeline.run.start", "root", root, "documents", len(results), "model", p.model)
	p.ledgerDo(ctx, "start_run", func(c context.Context) error {
		return p.ledger.StartRun(c, p.runID, root, p.model)
	})

	for _, r := range results {
		var res DocumentResult
		doc := r.Document
		doc.Name = p.label(doc.Path)

		switch {
		case ctx.Err() != nil:
			res = DocumentResult{Summary: entity.DocumentSummary{
				Document: doc.Name, SHA256: doc.SHA256, Status: constants.DocumentCancelled,
			}}
		case r.Err != "":
			res = DocumentResult{Summary: entity.DocumentSummary{
				Document: doc.Name, Status: constants.DocumentFailed, Error: r.Err,
			}}
			log.Error("pipeline.document.failed", "doc", doc.Name, "error", r.Err)
		default:
			res = p.process(ctx, doc)
		}
		p.record(ctx, res)
	}

	out := p.Snapshot()
	out.Cancelled = ctx.Err() != nil
	status := constants.RunCompleted
	if out.Cancelled {
		status = constants.RunCancelled
	}
	p.ledgerDo(ctx, "finish_run", func(c context.Context) error {
		return p.ledger.FinishRun(c, p.runID, status, len(out.Summaries), len(out.Records), "")
	})

	log.Info("pipeline.run.done",
		"status", status,
		"documents", len(out.Summaries),
		"records", len(out.Records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// ProcessPath handles one file reported by the watcher. It returns false
// when the file's content was already processed.
func (p *Pipeline) ProcessPath(ctx context.Context, path string) (bool, error) {
	if p.runID != "" {
		ctx = common.WithRunID(ctx, p.runID)
	}
	doc, err := p.ingestor.IngestPath(ctx, path)
	if err != nil {
		return false, common.WrapError(err, "ingest "+path)
	}
	if p.dedup.Seen(doc) {
		p.logger.Debug("pipeline.watch.unchanged", "path", path)
		return false, nil
	}
	doc.Name = p.label(doc.Path)
	p.record(ctx, p.process(ctx, doc))
	p.logger.Info("pipeline.watch.processed", "doc", doc.Name, "documents", p.corpus.Len())
	return true, nil
}

// Snapshot merges every document's records at corpus scope.
func (p *Pipeline) Snapshot() entity.RunResult {
	sets, summaries := p.corpus.Sets()
	merged, _ := p.records.Merge(sets...)
	return entity.RunResult{RunID: p.runID, Records: merged, Summaries: summaries}
}

// Finish closes the ledger row of a watch session.
func (p *Pipeline) Finish(ctx context.Context, status constants.RunStatus) {
	out := p.Snapshot()
	p.ledgerDo(ctx, "finish_run", func(c context.Context) error {
		return p.ledger.FinishRun(c, p.runID, status, len(out.Summaries), len(out.Records), "")
	})
}

func (p *Pipeline) process(ctx context.Context, doc entity.Document) DocumentResult {
	if first, dup := p.dedup.Claim(doc); dup {
		p.logger.Info("pipeline.document.deduplicated", "doc", doc.Name, "duplicate_of", p.label(first))
		return DocumentResult{Summary: entity.DocumentSummary{
			Document: doc.Name,
			SHA256:   doc.SHA256,
			Status:   constants.DocumentDeduplicated,
			Error:    "duplicate of " + p.label(first),
		}}
	}
	return p.processor.ProcessDocument(ctx, doc)
}

func (p *Pipeline) record(ctx context.Context, res DocumentResult) {
	p.corpus.Put(res)
	p.ledgerDo(ctx, "record_document", func(c context.Context) error {
		return p.ledger.RecordDocument(c, p.runID, res.Summary)
	})
}

// ledgerDo runs a ledger write that outlives cancellation of the run.
func (p *Pipeline) ledgerDo(ctx context.Context, op string, fn func(context.Context) error) {
	if p.ledger == nil {
		return
	}
	c, cancel := common.DetachedTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := fn(c); err != nil {
		p.logger.Warn("pipeline.ledger.failed", "op", op, "error", err)
	}
}

// label names a document by its path relative to the input folder.
func (p *Pipeline) label(path string) string {
	if p.root != "" {
		if absRoot, err := filepath.Abs(p.root); err == nil {
			if rel, err := filepath.Rel(absRoot, path); err == nil && !filepath.IsAbs(rel) && rel != "." && !startsWithDotDot(rel) {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.Base(path)
}

func startsWithDotDot(rel string) bool {
	return rel == ".." || len(rel) > 3 && rel[:3] == ".."+string(filepath.Separator)
}
