// Package ingest discovers input PDFs and identifies them by content hash.
package ingest

import (
	"context"
	"sync"

	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

// IngestionResult is the per-file discovery outcome.
type IngestionResult struct {
	Document     entity.Document
	Deduplicated bool
	DuplicateOf  string // path of the first file with the same content
	Err          string
}

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the pipeline depends on.
type Ingestor interface {
	// IngestPath hashes a single file.
	IngestPath(ctx context.Context, path string) (entity.Document, error)
	// IngestDirectory discovers every matching file under root, in lexical order.
	IngestDirectory(ctx context.Context, root string) ([]IngestionResult, DirStats, error)
}

// Deduper remembers content hashes across a run, including files that
// arrive later through the watcher.
type Deduper struct {
	mu    sync.Mutex
	first map[string]string // sha256 -> path
}

func NewDeduper() *Deduper {
	return &Deduper{first: make(map[string]string)}
}

// Claim registers doc and returns the path that first claimed its content.
// dup is false when doc is the first, or the same path seen again.
func (d *Deduper) Claim(doc entity.Document) (first string, dup bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.first[doc.SHA256]; ok {
		return p, p != doc.Path
	}
	d.first[doc.SHA256] = doc.Path
	return doc.Path, false
}

// Seen reports whether this exact content was already claimed by path.
func (d *Deduper) Seen(doc entity.Document) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.first[doc.SHA256] == doc.Path
}
