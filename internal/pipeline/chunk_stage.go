package pipeline

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
	"github.com/joseph-ayodele/species-extractor/internal/parser"
)

// chunkOutcome is written by exactly one goroutine and read after Wait.
type chunkOutcome struct {
	records  []entity.CandidateRecord
	failed   bool
	cached   bool
	canceled bool
}

// extractChunks sends every relevant chunk to the model with at most
// Concurrency calls in flight. Once ctx is cancelled no further chunk is
// started; calls already running finish. cancelled reports whether any
// chunk was left out because of that.
func (p *Processor) extractChunks(ctx context.Context, label, text string, sum *entity.DocumentSummary) (candidates []entity.CandidateRecord, cancelled bool) {
	var (
		g        errgroup.Group
		outcomes []*chunkOutcome
	)
	g.SetLimit(p.cfg.Concurrency)

	for chunk := range p.chunker.Chunks(label, text) {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		sum.Chunks++
		if p.cfg.Prefilter && !p.relevant(chunk.Text) {
			sum.ChunksSkipped++
			p.logger.Debug("pipeline.chunk.skipped", "doc", label, "chunk", chunk.Index)
			continue
		}

		out := &chunkOutcome{}
		outcomes = append(outcomes, out)
		g.Go(func() error {
			p.extractChunk(ctx, chunk, out)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		switch {
		case out.canceled:
			cancelled = true
		case out.failed:
			sum.ChunksFailed++
		}
		if out.cached {
			sum.ChunksCached++
		}
		candidates = append(candidates, out.records...)
	}
	return candidates, cancelled
}

func (p *Processor) extractChunk(ctx context.Context, chunk entity.Chunk, out *chunkOutcome) {
	resp, err := p.client.Extract(ctx, chunk)
	if err != nil {
		if isCancel(err) && !errors.Is(err, common.ErrInference) {
			out.canceled = true
			return
		}
		out.failed = true
		p.logger.Warn("pipeline.chunk.failed", "doc", chunk.Document, "chunk", chunk.Index, "error", err)
		return
	}
	out.cached = resp.Cached

	res := p.parser.Parse(resp.Raw)
	if res.Strategy == parser.StrategyNone {
		p.logger.Debug("pipeline.chunk.no_records", "doc", chunk.Document, "chunk", chunk.Index)
	} else {
		p.logger.Debug("pipeline.chunk.parsed",
			"doc", chunk.Document,
			"chunk", chunk.Index,
			"strategy", res.Strategy,
			"records", len(res.Records),
			"coerced", res.Coerced,
		)
	}
	for _, r := range res.Records {
		r.Provenance = []entity.Provenance{{Document: chunk.Document, Chunk: chunk.Index}}
		out.records = append(out.records, r)
	}
}
