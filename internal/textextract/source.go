package textextract

import (
	"fmt"
	"os"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageSource opens a PDF for page-by-page reading of its embedded text.
type PageSource interface {
	Open(path string) (PageReader, error)
}

// PageReader reads the embedded text layer of one open PDF. Pages are 1-based.
type PageReader interface {
	NumPage() int
	PageText(page int) (string, error)
	Close() error
}

// Inspector checks a PDF's structure and reports its page count.
type Inspector interface {
	Inspect(path string) (pages int, err error)
}

// PdfcpuInspector validates the cross-reference structure with pdfcpu in
// relaxed mode, which tolerates the sloppy writers common in scanned theses.
type PdfcpuInspector struct{}

func (PdfcpuInspector) Inspect(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}

// LedongthucSource reads text layers with github.com/ledongthuc/pdf.
type LedongthucSource struct{}

func (LedongthucSource) Open(path string) (pr PageReader, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			pr, err = nil, fmt.Errorf("malformed pdf: %v", rec)
		}
		if err != nil {
			_ = f.Close()
		}
	}()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r, err := pdflib.NewReader(f, info.Size())
	if err != nil {
		return nil, err
	}
	return &ledongthucReader{f: f, r: r}, nil
}

type ledongthucReader struct {
	f *os.File
	r *pdflib.Reader
}

func (l *ledongthucReader) NumPage() int { return l.r.NumPage() }

// PageText recovers from the panics the library raises on malformed content streams.
func (l *ledongthucReader) PageText(i int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("page %d: malformed content: %v", i, rec)
		}
	}()
	page := l.r.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func (l *ledongthucReader) Close() error { return l.f.Close() }
