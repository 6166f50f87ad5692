package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/species-extractor/constants"
	"github.com/joseph-ayodele/species-extractor/internal/app"
	"github.com/joseph-ayodele/species-extractor/internal/async"
	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
	"github.com/joseph-ayodele/species-extractor/internal/ingest"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "YAML config file (defaults to CONFIG_FILE)")
		dir         = flag.String("dir", "", "directory of PDFs (overrides INPUT_DIR)")
		out         = flag.String("out", "", "output .xlsx or .csv file (overrides OUTPUT_FILE)")
		logFile     = flag.String("log-file", "", "log file (overrides LOG_FILE)")
		logLevel    = flag.String("log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")
		concurrency = flag.Int("concurrency", 0, "concurrent model calls per document (overrides LLM_CONCURRENCY)")
		watch       = flag.Bool("watch", false, "keep watching the input directory after the first pass")
	)
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		return exitConfig
	}
	if *dir != "" {
		cfg.Input.Dir = *dir
	}
	if *out != "" {
		cfg.Export.OutputFile = *out
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *concurrency > 0 {
		cfg.LLM.Concurrency = *concurrency
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		return exitConfig
	}

	logger, closeLog, err := app.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		printError("Error: %v\n", err)
		return exitConfig
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)
	logger.Info("config.loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = common.WithRunID(ctx, uuid.NewString())

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("app.build.failed", "error", err)
		if errors.Is(err, common.ErrInvalidInput) {
			return exitConfig
		}
		return exitFatal
	}
	defer a.Close()

	result, err := a.Pipeline.Run(ctx, cfg.Input.Dir)
	if err != nil && !(*watch && errors.Is(err, common.ErrNoDocuments)) {
		logger.Error("run.failed", "error", err)
		return exitFatal
	}
	if err := flush(a, result); err != nil {
		return exitFatal
	}
	if result.Cancelled || !*watch {
		report(logger, result)
		return exitOK
	}

	status := watchLoop(ctx, a, logger)
	a.Pipeline.Finish(ctx, status)
	final := a.Pipeline.Snapshot()
	if err := flush(a, final); err != nil {
		return exitFatal
	}
	report(logger, final)
	return exitOK
}

// flush rewrites the export. The export ignores cancellation so partial
// work always lands on disk.
func flush(a *app.App, result entity.RunResult) error {
	ctx, cancel := common.DetachedTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := a.Sink.Write(ctx, result); err != nil {
		a.Logger.Error("export.failed", "path", a.Sink.Path(), "error", err)
		return err
	}
	return nil
}

// watchLoop feeds watcher events to the document queue until ctx ends.
func watchLoop(ctx context.Context, a *app.App, logger *slog.Logger) constants.RunStatus {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:      []string{a.Config.Input.Dir},
		Debounce:   a.Config.Input.WatchDebounce,
		SkipHidden: true,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("watch.start.failed", "error", err)
		return constants.RunFailed
	}

	handle := func(jctx context.Context, job async.Job) error {
		changed, err := a.Pipeline.ProcessPath(jctx, job.Path)
		if err != nil || !changed {
			return err
		}
		return flush(a, a.Pipeline.Snapshot())
	}
	q := async.NewProcessorQueue(handle, logger,
		async.WithQueueSize(a.Config.Input.QueueSize),
		async.WithProcessTimeout(a.Config.Input.JobTimeout),
		async.WithBaseContext(ctx),
	)
	logger.Info("watch.start", "dir", a.Config.Input.Dir)

	for {
		select {
		case <-ctx.Done():
			q.Shutdown(context.Background())
			logger.Info("watch.stop")
			return constants.RunCancelled
		case err, ok := <-errs:
			if ok {
				logger.Warn("watch.error", "error", err)
			}
		case path, ok := <-events:
			if !ok {
				q.Shutdown(context.Background())
				if ctx.Err() != nil {
					return constants.RunCancelled
				}
				return constants.RunCompleted
			}
			job := async.Job{Path: path, SubmittedAt: time.Now(), TraceID: uuid.NewString()}
			if err := q.Enqueue(ctx, job); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("watch.enqueue.failed", "path", path, "error", err)
			}
		}
	}
}

func report(logger *slog.Logger, result entity.RunResult) {
	counts := map[constants.DocumentStatus]int{}
	for _, s := range result.Summaries {
		counts[s.Status]++
	}
	logger.Info("run.summary",
		"run_id", result.RunID,
		"records", len(result.Records),
		"documents", len(result.Summaries),
		"ok", counts[constants.DocumentOK],
		"partial", counts[constants.DocumentPartial],
		"failed", counts[constants.DocumentFailed],
		"deduplicated", counts[constants.DocumentDeduplicated],
		"cancelled", counts[constants.DocumentCancelled],
		"cancelled_run", result.Cancelled,
	)
}
