package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/species-extractor/internal/app"
	"github.com/joseph-ayodele/species-extractor/internal/common"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file.pdf>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := common.LoadConfig("")
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(2)
	}

	extractor, closeOCR, err := app.NewTextExtractor(cfg.OCR, logger)
	if err != nil {
		logger.Error("build extractor", "error", err)
		os.Exit(1)
	}
	defer closeOCR()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	pages, stats, err := extractor.Extract(ctx, path)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "doc", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	for _, p := range pages {
		logger.Info("page", "page", p.Page, "method", p.Method, "chars", len([]rune(p.Text)))
	}
	logger.Info("text extraction OK",
		"doc", path,
		"pages", stats.Pages,
		"digital", stats.Digital,
		"ocr", stats.OCR,
		"empty", stats.Empty,
		"ocr_failures", stats.OCRFailures,
		"duration_ms", dur.Milliseconds(),
	)
}
