//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// gosseractEngine recognizes images in-process through libtesseract.
// The underlying client is not safe for concurrent use.
type gosseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func newGosseract(cfg Config) (*gosseractEngine, error) {
	client := gosseract.NewClient()
	if cfg.TessdataDir != "" {
		client.TessdataPrefix = cfg.TessdataDir
	}
	if err := client.SetLanguage(splitLangs(cfg.Lang)...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gosseract language: %w", err)
	}
	if cfg.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PSM)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("gosseract psm: %w", err)
		}
	}
	return &gosseractEngine{client: client}, nil
}

func (g *gosseractEngine) Recognize(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.client.SetImage(path); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := g.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}

func (g *gosseractEngine) Close() error {
	return g.client.Close()
}
