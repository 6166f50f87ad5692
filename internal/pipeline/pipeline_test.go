package pipeline

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/species-extractor/constants"
	"github.com/joseph-ayodele/species-extractor/internal/chunker"
	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
	"github.com/joseph-ayodele/species-extractor/internal/ingest"
	"github.com/joseph-ayodele/species-extractor/internal/llm"
	"github.com/joseph-ayodele/species-extractor/internal/normalize"
	"github.com/joseph-ayodele/species-extractor/internal/ocr"
	"github.com/joseph-ayodele/species-extractor/internal/parser"
	"github.com/joseph-ayodele/species-extractor/internal/records"
	"github.com/joseph-ayodele/species-extractor/internal/textextract"
)

const morichePage = "La especie Mauritia flexuosa, conocida como moriche, se usaba para preparar bebidas fermentadas en las fiestas de la cosecha."

const moricheJSON = `[{"especie_cientifica": "Mauritia flexuosa", "nombre_comun": "moriche", "uso_precolombino": "preparación de bebidas fermentadas"}]`

// fakeSource serves page texts by file name; a nil entry fails to open.
type fakeSource map[string][]string

type fakeReader []string

func (f fakeSource) Open(path string) (textextract.PageReader, error) {
	pages, ok := f[filepath.Base(path)]
	if !ok || pages == nil {
		return nil, errors.New("corrupt pdf")
	}
	return fakeReader(pages), nil
}

func (r fakeReader) NumPage() int                   { return len(r) }
func (r fakeReader) PageText(i int) (string, error) { return r[i-1], nil }
func (r fakeReader) Close() error                   { return nil }

type fakeOCR struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeOCR) RecognizePage(context.Context, string, int) (ocr.PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return ocr.PageResult{}, f.err
}

// fakeModel answers by looking for a species name in the chunk.
type fakeModel struct {
	mu      sync.Mutex
	answers map[string]string
	calls   int
	onCall  func()
}

func (m *fakeModel) Model() string { return "fake" }

func (m *fakeModel) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.calls++
	onCall := m.onCall
	m.mu.Unlock()
	if onCall != nil {
		onCall()
	}
	for needle, answer := range m.answers {
		if strings.Contains(req.User, needle) {
			return answer, nil
		}
	}
	return "[]", nil
}

type harness struct {
	dir    string
	source fakeSource
	ocr    *fakeOCR
	model  *fakeModel
	cfg    Config
	chunk  chunker.Config
}

func newHarness(t *testing.T) *harness {
	return &harness{
		dir:    t.TempDir(),
		source: fakeSource{},
		ocr:    &fakeOCR{},
		model:  &fakeModel{answers: map[string]string{"Mauritia": moricheJSON}},
		cfg:    Config{Concurrency: 1, Prefilter: true},
		chunk:  chunker.DefaultConfig(),
	}
}

// addPDF writes a file whose bytes differ per name and registers its pages.
func (h *harness) addPDF(t *testing.T, name string, pages ...string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(h.dir, name), []byte("%PDF "+name), 0o644); err != nil {
		t.Fatal(err)
	}
	h.source[name] = pages
}

func (h *harness) pipeline() *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recs := records.New(records.Config{MinSpeciesTokens: 2}, logger)
	proc := NewProcessor(h.cfg, Components{
		Extractor:  textextract.NewExtractor(textextract.Config{MinChars: 50, MinPrintable: 0.85}, h.source, nil, h.ocr, logger),
		Normalizer: normalize.New(normalize.Options{}),
		Chunker:    chunker.New(h.chunk),
		Client:     llm.NewClient(h.model, llm.ClientConfig{MaxRetries: 0}, nil, logger),
		Parser:     parser.New(logger),
		Records:    recs,
		Relevant:   chunker.Relevant,
	}, logger)
	return New(ingest.NewFSIngestor(logger), proc, recs, logger)
}

func TestRun_DigitalDocumentYieldsRecord(t *testing.T) {
	h := newHarness(t)
	h.addPDF(t, "a.pdf", morichePage)

	res, err := h.pipeline().Run(context.Background(), h.dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1: %+v", len(res.Records), res.Records)
	}
	r := res.Records[0]
	if r.EspecieCientifica != "Mauritia flexuosa" || r.NombreComun != "moriche" || r.UsoPrecolombino != "preparación de bebidas fermentadas" {
		t.Errorf("unexpected record: %+v", r)
	}
	s := res.Summaries[0]
	if s.Status != constants.DocumentOK || s.PagesDigital != 1 || s.Chunks != 1 || s.Accepted != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if h.ocr.calls != 0 {
		t.Errorf("digital page should not be OCRed, got %d calls", h.ocr.calls)
	}
	if res.RunID == "" || res.Cancelled {
		t.Errorf("unexpected run result: id=%q cancelled=%v", res.RunID, res.Cancelled)
	}
}

func TestRun_DuplicateRecordsAcrossDocuments(t *testing.T) {
	h := newHarness(t)
	h.addPDF(t, "a.pdf", morichePage)
	h.addPDF(t, "b.pdf", "Otro estudio: "+morichePage)

	res, err := h.pipeline().Run(context.Background(), h.dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	prov := res.Records[0].Provenance
	if len(prov) != 2 || prov[0] != (entity.Provenance{Document: "a.pdf", Chunk: 0}) || prov[1] != (entity.Provenance{Document: "b.pdf", Chunk: 0}) {
		t.Errorf("provenance = %+v", prov)
	}
}

func TestRun_RefusalYieldsNoRecords(t *testing.T) {
	h := newHarness(t)
	h.model.answers = map[string]string{"Mauritia": "Lo siento, no encontré información relevante."}
	h.addPDF(t, "a.pdf", morichePage)

	res, err := h.pipeline().Run(context.Background(), h.dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Records) != 0 {
		t.Fatalf("expected no records, got %+v", res.Records)
	}
	s := res.Summaries[0]
	if s.Status != constants.DocumentOK || s.Candidates != 0 || s.ChunksFailed != 0 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestRun_ScannedPageOCRFailureCompletes(t *testing.T) {
	h := newHarness(t)
	h.ocr.err = errors.New("tesseract crashed")
	h.addPDF(t, "scan.pdf", "")

	res, err := h.pipeline().Run(context.Background(), h.dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.ocr.calls != 1 {
		t.Errorf("OCR calls = %d, want 1", h.ocr.calls)
	}
	s := res.Summaries[0]
	if s.Status != constants.DocumentOK || s.PagesEmpty != 1 || s.OCRFailures != 1 || s.Chunks != 0 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if h.model.calls != 0 {
		t.Errorf("model called %d times for an empty document", h.model.calls)
	}
}

func TestRun_CorruptAndDuplicateDocuments(t *testing.T) {
	h := newHarness(t)
	h.addPDF(t, "a.pdf", morichePage)
	h.addPDF(t, "broken.pdf")
	h.source["broken.pdf"] = nil
	if err := os.WriteFile(filepath.Join(h.dir, "copy.pdf"), []byte("%PDF a.pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := h.pipeline().Run(context.Background(), h.dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	statuses := map[string]constants.DocumentStatus{}
	for _, s := range res.Summaries {
		statuses[s.Document] = s.Status
	}
	want := map[string]constants.DocumentStatus{
		"a.pdf":      constants.DocumentOK,
		"broken.pdf": constants.DocumentFailed,
		"copy.pdf":   constants.DocumentDeduplicated,
	}
	for doc, st := range want {
		if statuses[doc] != st {
			t.Errorf("%s status = %q, want %q", doc, statuses[doc], st)
		}
	}
	if len(res.Records) != 1 {
		t.Errorf("got %d records, want 1", len(res.Records))
	}
}

func TestRun_NoDocuments(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline().Run(context.Background(), h.dir)
	if !errors.Is(err, common.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestRun_PrefilterSkipsIrrelevantChunks(t *testing.T) {
	h := newHarness(t)
	h.chunk = chunker.Config{MaxChars: 150}
	h.addPDF(t, "a.pdf", morichePage+"\n\nEste párrafo trata sólo de la historia de la expedición y del clima de la región durante aquellos años de lluvias.")

	res, err := h.pipeline().Run(context.Background(), h.dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s := res.Summaries[0]
	if s.Chunks != 2 || s.ChunksSkipped != 1 || h.model.calls != 1 {
		t.Errorf("summary %+v, model calls %d", s, h.model.calls)
	}
}

func TestRun_ConcurrentChunks(t *testing.T) {
	h := newHarness(t)
	h.cfg.Concurrency = 3
	h.chunk = chunker.Config{MaxChars: 150}
	h.model.answers = map[string]string{
		"Mauritia": moricheJSON,
		"Bixa":     `[{"especie_cientifica": "Bixa orellana", "nombre_comun": "achiote", "uso_precolombino": "tinte"}]`,
		"Zea":      `[{"especie_cientifica": "Zea mays", "nombre_comun": "maíz", "uso_precolombino": "alimento"}]`,
	}
	h.addPDF(t, "a.pdf", strings.Join([]string{
		morichePage,
		"El achiote, Bixa orellana, se usaba como tinte corporal en ceremonias y para colorear textiles.",
		"La especie Zea mays era el alimento principal y se consumía en forma de tortillas y chicha.",
	}, "\n\n"))

	res, err := h.pipeline().Run(context.Background(), h.dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3: %+v", len(res.Records), res.Records)
	}
	for i, want := range []string{"Mauritia flexuosa", "Bixa orellana", "Zea mays"} {
		if res.Records[i].EspecieCientifica != want {
			t.Errorf("record %d = %q, want %q (chunk order)", i, res.Records[i].EspecieCientifica, want)
		}
	}
}

func TestRun_CancelFlushesPartialWork(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.model.onCall = cancel
	h.addPDF(t, "a.pdf", morichePage)
	h.addPDF(t, "b.pdf", "Segundo: "+morichePage)

	res, err := h.pipeline().Run(ctx, h.dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Cancelled {
		t.Error("result should be marked cancelled")
	}
	if len(res.Records) != 1 {
		t.Fatalf("in-flight answer should be kept, got %+v", res.Records)
	}
	if h.model.calls != 1 {
		t.Errorf("model calls = %d, want 1", h.model.calls)
	}
	if len(res.Summaries) != 2 || res.Summaries[1].Status != constants.DocumentCancelled {
		t.Errorf("unexpected summaries: %+v", res.Summaries)
	}
}

type memLedger struct {
	mu       sync.Mutex
	started  string
	docs     []entity.DocumentSummary
	finished constants.RunStatus
	records  int
}

func (l *memLedger) StartRun(_ context.Context, runID, _, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = runID
	return nil
}

func (l *memLedger) RecordDocument(_ context.Context, _ string, s entity.DocumentSummary) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.docs = append(l.docs, s)
	return errors.New("disk full")
}

func (l *memLedger) FinishRun(_ context.Context, _ string, status constants.RunStatus, _, records int, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = status
	l.records = records
	return nil
}

func TestRun_LedgerFailuresDoNotAbort(t *testing.T) {
	h := newHarness(t)
	h.addPDF(t, "a.pdf", morichePage)
	ledger := &memLedger{}
	p := h.pipeline()
	p.ledger = ledger

	ctx := common.WithRunID(context.Background(), "run-42")
	res, err := p.Run(ctx, h.dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RunID != "run-42" || ledger.started != "run-42" {
		t.Errorf("run id not propagated: %q %q", res.RunID, ledger.started)
	}
	if len(ledger.docs) != 1 || ledger.finished != constants.RunCompleted || ledger.records != 1 {
		t.Errorf("unexpected ledger: %+v", ledger)
	}
}

func TestProcessPath_WatchMode(t *testing.T) {
	h := newHarness(t)
	h.addPDF(t, "a.pdf", morichePage)
	p := h.pipeline()
	if _, err := p.Run(context.Background(), h.dir); err != nil {
		t.Fatalf("run: %v", err)
	}

	changed, err := p.ProcessPath(context.Background(), filepath.Join(h.dir, "a.pdf"))
	if err != nil || changed {
		t.Fatalf("unchanged file reprocessed: changed=%v err=%v", changed, err)
	}

	h.model.answers["Bixa"] = `[{"especie_cientifica": "Bixa orellana", "nombre_comun": "achiote", "uso_precolombino": "tinte"}]`
	h.addPDF(t, "nuevo.pdf", "El achiote, Bixa orellana, se usaba como tinte corporal en ceremonias y para colorear textiles.")
	changed, err = p.ProcessPath(context.Background(), filepath.Join(h.dir, "nuevo.pdf"))
	if err != nil || !changed {
		t.Fatalf("new file not processed: changed=%v err=%v", changed, err)
	}

	snap := p.Snapshot()
	if len(snap.Records) != 2 || len(snap.Summaries) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Summaries[1].Document != "nuevo.pdf" {
		t.Errorf("document label = %q", snap.Summaries[1].Document)
	}
	if p.corpus.Len() != 2 {
		t.Errorf("corpus holds %d documents, want 2", p.corpus.Len())
	}

	missing := filepath.Join(h.dir, "borrado.pdf")
	if _, err := p.ProcessPath(context.Background(), missing); !errors.Is(err, fs.ErrNotExist) || !strings.HasPrefix(err.Error(), "ingest "+missing) {
		t.Errorf("missing file error = %v", err)
	}
	if p.corpus.Len() != 2 {
		t.Errorf("failed ingest changed the corpus: %d", p.corpus.Len())
	}
}
