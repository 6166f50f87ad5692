// Package ocr renders single PDF pages to images and recognizes their text.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	EngineTesseract = "tesseract"
	EngineGosseract = "gosseract"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Engine    string // EngineTesseract (CLI) | EngineGosseract (needs -tags gosseract)

	Lang        string // default "spa+eng"
	DPI         int    // rasterization DPI, default 300
	TessdataDir string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	EnableTSVConfidence bool
}

// ImageRecognizer turns a rendered page image into text.
type ImageRecognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

type PageResult struct {
	Text       string
	Confidence float32 // mean word confidence in 0..1, 0 when not computed
	Duration   time.Duration
}

type Extractor struct {
	cfg    Config
	runner Runner
	engine ImageRecognizer
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the command runner (tests).
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithRecognizer replaces the image recognition engine.
func WithRecognizer(r ImageRecognizer) Option {
	return func(e *Extractor) { e.engine = r }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Engine == "" {
		cfg.Engine = EngineTesseract
	}
	if cfg.Lang == "" {
		cfg.Lang = "spa+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}

	e := &Extractor{cfg: cfg, runner: ExecRunner{Logger: logger}, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.engine != nil {
		return e, nil
	}

	switch cfg.Engine {
	case EngineTesseract:
		e.engine = &tesseractCLI{cfg: cfg, runner: e.runner}
	case EngineGosseract:
		g, err := newGosseract(cfg)
		if err != nil {
			return nil, err
		}
		e.engine = g
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
	return e, nil
}

// RecognizePage renders one page (1-based) of the PDF at path and runs OCR on it.
func (e *Extractor) RecognizePage(ctx context.Context, path string, page int) (PageResult, error) {
	start := time.Now()
	tmpDir, err := os.MkdirTemp("", "spx-page-*")
	if err != nil {
		return PageResult{}, err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("ocr.tmp.cleanup_failed", "dir", dir, "error", err)
		}
	}(tmpDir)

	img, err := e.renderPage(ctx, path, page, tmpDir)
	if err != nil {
		return PageResult{Duration: time.Since(start)}, err
	}

	txt, err := e.engine.Recognize(ctx, img)
	if err != nil {
		return PageResult{Duration: time.Since(start)}, err
	}
	res := PageResult{Text: Normalize(txt)}

	if t, ok := e.engine.(*tesseractCLI); ok && e.cfg.EnableTSVConfidence {
		if c, err := t.tsvConfidence(ctx, img); err == nil {
			res.Confidence = c
		} else {
			e.logger.Debug("ocr.confidence.failed", "path", path, "page", page, "error", err)
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

// pdftoppm -r 300 -png -f N -l N -singlefile <in.pdf> <tmp/page>
func (e *Extractor) renderPage(ctx context.Context, path string, page int, dir string) (string, error) {
	prefix := filepath.Join(dir, "page")
	n := strconv.Itoa(page)
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI), "-png", "-f", n, "-l", n, "-singlefile", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm page %d: %w: %s", page, err, truncate(string(errb), 512))
	}
	img := prefix + ".png"
	if _, statErr := os.Stat(img); statErr != nil {
		return "", fmt.Errorf("pdftoppm produced no image for page %d: %w", page, statErr)
	}
	return img, nil
}

// Close releases engine resources.
func (e *Extractor) Close() error {
	if c, ok := e.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var ErrEngineUnavailable = errors.New("ocr engine not available in this build")
