package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joseph-ayodele/species-extractor/internal/app"
	"github.com/joseph-ayodele/species-extractor/internal/chunker"
	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/llm"
	"github.com/joseph-ayodele/species-extractor/internal/parser"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: llm <text-file> [times]")
		os.Exit(2)
	}
	path := os.Args[1]
	times := 3
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	cfg, err := common.LoadConfig("")
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(2)
	}
	text, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read text", "path", path, "error", err)
		os.Exit(1)
	}

	completer, err := app.NewCompleter(cfg.LLM, logger)
	if err != nil {
		logger.Error("build completer", "error", err)
		os.Exit(2)
	}
	// No cache here: every iteration must reach the model.
	client := llm.NewClient(completer, llm.ClientConfig{
		Timeout:      cfg.LLM.Timeout,
		MaxRetries:   cfg.LLM.MaxRetries,
		RetryBackoff: cfg.LLM.RetryBackoff,
	}, nil, logger)
	p := parser.New(logger)
	chunks := chunker.New(chunker.Config{MaxChars: cfg.Chunk.Size, Overlap: cfg.Chunk.Overlap}).
		Collect(filepath.Base(path), string(text))

	for i := 1; i <= times; i++ {
		start := time.Now()
		total := 0
		for _, c := range chunks {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			resp, err := client.Extract(ctx, c)
			cancel()
			if err != nil {
				logger.Error("chunk.error", "iter", i, "chunk", c.Index, "error", err)
				continue
			}
			res := p.Parse(resp.Raw)
			total += len(res.Records)
			for _, r := range res.Records {
				logger.Info("candidate",
					"iter", i,
					"chunk", c.Index,
					"strategy", res.Strategy,
					"especie_cientifica", r.EspecieCientifica,
					"nombre_comun", r.NombreComun,
					"uso_precolombino", r.UsoPrecolombino,
				)
			}
		}
		logger.Info("iteration.done", "iter", i, "chunks", len(chunks), "candidates", total,
			"elapsed_ms", time.Since(start).Milliseconds())
	}

	logger.Info("done", "file", path, "times", times, "model", client.Model())
}
