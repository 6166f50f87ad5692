package ocr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"github.com/joseph-ayodele/species-extractor/internal/common"
)

// Runner executes an external tool (pdftoppm, tesseract). Tests swap it out.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs tools with os/exec. A cancelled context kills the process
// and its pipes are abandoned after WaitDelay.
type ExecRunner struct {
	Logger    *slog.Logger
	WaitDelay time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 5 * time.Second
	}
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()
	if err != nil && ctx.Err() != nil {
		err = errors.Join(ctx.Err(), err)
	}

	doc := common.DocumentFromContext(ctx)
	if err != nil {
		logger.Warn("ocr.exec.failed", "cmd", name, "doc", doc, "elapsed_ms", elapsed, "error", err,
			"stderr", truncate(errb.String(), 2048))
	} else {
		logger.Debug("ocr.exec.ok", "cmd", name, "doc", doc, "elapsed_ms", elapsed, "stdout_bytes", out.Len())
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
