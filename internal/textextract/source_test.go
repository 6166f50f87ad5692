package textextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/species-extractor/constants"
	"github.com/joseph-ayodele/species-extractor/internal/common"
)

// buildPDF writes a minimal PDF with one Helvetica text line per page. An
// empty string gives a page without a text layer.
func buildPDF(pages ...string) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	// 1 catalog, 2 pages, 3 font, then page/content pairs.
	n := len(pages)
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		content := ""
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func writePDF(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPdfcpuInspectorCountsPages(t *testing.T) {
	path := writePDF(t, "tesis.pdf", buildPDF(digitalPage, ""))

	n, err := PdfcpuInspector{}.Inspect(path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if n != 2 {
		t.Errorf("pages = %d, want 2", n)
	}

	if _, err := (PdfcpuInspector{}).Inspect(writePDF(t, "basura.pdf", []byte("esto no es un pdf"))); err == nil {
		t.Error("expected an error for a non-PDF file")
	}
}

func TestLedongthucSourceReadsTextLayer(t *testing.T) {
	path := writePDF(t, "tesis.pdf", buildPDF(digitalPage, ""))

	r, err := LedongthucSource{}.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.NumPage() != 2 {
		t.Fatalf("NumPage = %d, want 2", r.NumPage())
	}
	text, err := r.PageText(1)
	if err != nil {
		t.Fatalf("PageText(1): %v", err)
	}
	if !strings.Contains(text, "Mauritia flexuosa") {
		t.Errorf("page 1 text = %q", text)
	}
	text, err = r.PageText(2)
	if err != nil {
		t.Fatalf("PageText(2): %v", err)
	}
	if strings.TrimSpace(text) != "" {
		t.Errorf("page 2 text = %q, want empty", text)
	}
}

func TestExtractRealPDF(t *testing.T) {
	path := writePDF(t, "tesis.pdf", buildPDF(digitalPage, ""))
	o := &fakeOCR{text: "Bixa orellana, achiote, tinte corporal usado en rituales del periodo formativo."}
	x := NewExtractor(cfg, LedongthucSource{}, PdfcpuInspector{}, o, nil)

	pages, stats, err := x.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(pages) != 2 || stats.Pages != 2 {
		t.Fatalf("pages = %d, stats = %+v", len(pages), stats)
	}
	if pages[0].Method != constants.PageDigital || !strings.Contains(pages[0].Text, "moriche") {
		t.Errorf("page 1 = %+v", pages[0])
	}
	if pages[1].Method != constants.PageOCR {
		t.Errorf("page 2 method = %q, want ocr", pages[1].Method)
	}
	if len(o.calls) != 1 || o.calls[0] != 2 {
		t.Errorf("ocr calls = %v, want [2]", o.calls)
	}
}

func TestExtractCorruptPDF(t *testing.T) {
	valid := buildPDF(digitalPage)
	tests := map[string][]byte{
		"garbage":   []byte("%PDF-1.4\nesto no es un pdf"),
		"truncated": valid[:len(valid)/2],
		"empty":     nil,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := writePDF(t, name+".pdf", data)
			x := NewExtractor(cfg, LedongthucSource{}, PdfcpuInspector{}, &fakeOCR{}, nil)

			_, _, err := x.Extract(context.Background(), path)
			if !errors.Is(err, common.ErrDocumentOpen) {
				t.Fatalf("err = %v, want ErrDocumentOpen", err)
			}
		})
	}
}
