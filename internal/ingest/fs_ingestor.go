package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	SkipHidden bool
	logger     *slog.Logger
}

func NewFSIngestor(logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{SkipHidden: true, logger: logger}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (entity.Document, error) {
	var out entity.Document
	if err := ctx.Err(); err != nil {
		return out, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	if !AllowedExt(filepath.Ext(abs)) {
		return out, fmt.Errorf("unsupported or missing extension: %q", filepath.Ext(abs))
	}

	f, err := os.Open(abs)
	if err != nil {
		return out, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.logger.Warn("ingest.close_failed", "path", abs, "error", err)
		}
	}(f)

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return out, fmt.Errorf("hash: %w", err)
	}

	return entity.Document{
		Path:   abs,
		Name:   filepath.Base(abs),
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   n,
	}, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and hashes
// each PDF. Byte-identical files after the first are marked Deduplicated.
// A missing or unreadable root is fatal; per-file failures are not.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewAppError(common.CodeNoDocuments, "input directory is required", common.ErrNoDocuments, nil)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, DirStats{}, common.NewAppError(common.CodeNoDocuments, "input directory "+root, common.ErrNoDocuments, err)
	}
	if !info.IsDir() {
		return nil, DirStats{}, common.NewAppError(common.CodeNoDocuments, root+" is not a directory", common.ErrNoDocuments, nil)
	}

	var (
		results []IngestionResult
		stats   DirStats
		dedup   = NewDeduper()
	)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{Document: entity.Document{Path: path}, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if i.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		doc, err := i.IngestPath(ctx, path)
		if err != nil {
			i.logger.Warn("ingest.file_failed", "path", path, "error", err)
			results = append(results, IngestionResult{Document: entity.Document{Path: path, Name: filepath.Base(path)}, Err: err.Error()})
			stats.Failed++
			return nil
		}

		r := IngestionResult{Document: doc}
		if first, dup := dedup.Claim(doc); dup {
			r.Deduplicated = true
			r.DuplicateOf = first
			stats.Deduplicated++
		}
		results = append(results, r)
		stats.Succeeded++
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return results, stats, err
		}
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	i.logger.Info("ingest.directory.done",
		"root", root,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
