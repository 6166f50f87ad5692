package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/species-extractor/internal/common"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIngestDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "%PDF-1.4 uno")
	writeFile(t, filepath.Join(root, "b.PDF"), "%PDF-1.4 dos")
	writeFile(t, filepath.Join(root, "sub", "c.pdf"), "%PDF-1.4 uno")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, ".hidden.pdf"), "%PDF-1.4 oculto")
	writeFile(t, filepath.Join(root, ".cache", "d.pdf"), "%PDF-1.4 oculto")

	results, stats, err := NewFSIngestor(nil).IngestDirectory(context.Background(), root)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Matched != 3 || stats.Succeeded != 3 || stats.Deduplicated != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	names := []string{results[0].Document.Name, results[1].Document.Name, results[2].Document.Name}
	if names[0] != "a.pdf" || names[1] != "b.PDF" || names[2] != "c.pdf" {
		t.Errorf("unexpected order: %v", names)
	}
	dup := results[2]
	if !dup.Deduplicated || filepath.Base(dup.DuplicateOf) != "a.pdf" {
		t.Errorf("c.pdf should duplicate a.pdf: %+v", dup)
	}
	if results[0].Document.SHA256 != dup.Document.SHA256 || len(results[0].Document.SHA256) != 64 {
		t.Errorf("unexpected hashes: %q %q", results[0].Document.SHA256, dup.Document.SHA256)
	}
	if results[0].Document.Size != int64(len("%PDF-1.4 uno")) {
		t.Errorf("size = %d", results[0].Document.Size)
	}
}

func TestIngestDirectory_MissingRoot(t *testing.T) {
	_, _, err := NewFSIngestor(nil).IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, common.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestIngestPath_RejectsOtherExtensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.docx")
	writeFile(t, path, "x")
	if _, err := NewFSIngestor(nil).IngestPath(context.Background(), path); err == nil {
		t.Fatal("expected an error for a non-PDF file")
	}
}

func TestIngestDirectory_Empty(t *testing.T) {
	results, stats, err := NewFSIngestor(nil).IngestDirectory(context.Background(), t.TempDir())
	if err != nil || len(results) != 0 || stats.Matched != 0 {
		t.Fatalf("empty dir: %v %+v %v", results, stats, err)
	}
}

func TestDeduper(t *testing.T) {
	d := NewDeduper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "same")
	doc, err := NewFSIngestor(nil).IngestPath(context.Background(), filepath.Join(root, "a.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if _, dup := d.Claim(doc); dup {
		t.Error("first claim reported as duplicate")
	}
	if !d.Seen(doc) {
		t.Error("claimed document not seen")
	}
	if _, dup := d.Claim(doc); dup {
		t.Error("same path must not be its own duplicate")
	}
	other := doc
	other.Path = filepath.Join(root, "b.pdf")
	if first, dup := d.Claim(other); !dup || first != doc.Path {
		t.Errorf("claim = %q %v", first, dup)
	}
}

func TestStartWatcher_EmitsNewPDFs(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, Debounce: 50 * time.Millisecond, SkipHidden: true})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")
	want := filepath.Join(root, "nuevo.pdf")
	writeFile(t, want, "%PDF-1.4")

	select {
	case got := <-events:
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event within 5s")
	}

	cancel()
	for range events {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}); err == nil {
		t.Fatal("expected an error without roots")
	}
}

func TestFileFilters(t *testing.T) {
	for ext, want := range map[string]bool{".pdf": true, "PDF": true, ".Pdf": true, ".docx": false, "": false} {
		if got := AllowedExt(ext); got != want {
			t.Errorf("AllowedExt(%q) = %v", ext, got)
		}
	}
	for path, want := range map[string]bool{
		"/data/.cache":           true,
		"/data/~$informe.pdf":    true,
		"/data/informe.pdf":      false,
		"/data/.hidden/file.pdf": false,
	} {
		if got := IsHidden(path); got != want {
			t.Errorf("IsHidden(%q) = %v", path, got)
		}
	}
}
