package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/species-extractor/internal/common"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

// ClientConfig attaches the timeout and retry policy to each model call.
type ClientConfig struct {
	Timeout      time.Duration // per attempt
	MaxRetries   int           // retries after the first attempt
	RetryBackoff time.Duration // base for exponential backoff
}

// Response is the raw answer for one chunk.
type Response struct {
	Raw      string
	Cached   bool
	Attempts int
	Elapsed  time.Duration
}

// Client sends chunks to a Completer with retry, backoff and an optional
// response cache. It does not look at the content of the answer.
type Client struct {
	completer Completer
	cfg       ClientConfig
	cache     ResponseCache
	logger    *slog.Logger
	sleep     func(context.Context, time.Duration) error
}

func NewClient(completer Completer, cfg ClientConfig, cache ResponseCache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{completer: completer, cfg: cfg, cache: cache, logger: logger, sleep: sleepCtx}
}

// Model returns the model identifier of the underlying completer.
func (c *Client) Model() string { return c.completer.Model() }

// CacheKey identifies a model answer by model, instruction and chunk text.
func CacheKey(model string, req CompletionRequest) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(req.System))
	h.Write([]byte{0})
	h.Write([]byte(req.User))
	return hex.EncodeToString(h.Sum(nil))
}

// Extract returns the raw model response for a chunk. Once ctx is cancelled
// no new attempt starts, but an attempt already in flight runs to completion
// or to its own timeout. After the retries are exhausted the error is an
// InferenceError.
func (c *Client) Extract(ctx context.Context, chunk entity.Chunk) (Response, error) {
	start := time.Now()
	req := BuildRequest(chunk.Text)
	model := c.completer.Model()
	key := CacheKey(model, req)
	log := c.logger.With("doc", chunk.Document, "chunk", chunk.Index, "model", model)

	if c.cache != nil {
		raw, ok, err := c.cache.GetResponse(ctx, key)
		if err != nil {
			log.Warn("llm.cache.get_failed", "error", err)
		} else if ok {
			log.Debug("llm.cache.hit")
			return Response{Raw: raw, Cached: true, Elapsed: time.Since(start)}, nil
		}
	}

	log.Debug("llm.extract.start", "text_len", len(chunk.Text), "preview", preview(chunk.Text, 120))

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Response{Attempts: attempts, Elapsed: time.Since(start)}, err
		}
		if attempt > 0 {
			wait := Backoff(c.cfg.RetryBackoff, attempt-1)
			log.Warn("llm.extract.retry", "attempt", attempt, "wait_ms", wait.Milliseconds(), "error", lastErr)
			if err := c.sleep(ctx, wait); err != nil {
				return Response{Attempts: attempts, Elapsed: time.Since(start)}, err
			}
		}

		attempts++
		raw, err := c.call(ctx, req)
		if err == nil {
			log.Info("llm.extract.ok",
				"attempts", attempts,
				"bytes", len(raw),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			log.Debug("llm.extract.raw", "raw", truncateBytes(raw, 4000))
			if c.cache != nil {
				if perr := c.cache.PutResponse(context.WithoutCancel(ctx), key, model, raw); perr != nil {
					log.Warn("llm.cache.put_failed", "error", perr)
				}
			}
			return Response{Raw: raw, Attempts: attempts, Elapsed: time.Since(start)}, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}

	log.Error("llm.extract.failed",
		"attempts", attempts,
		"error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Response{Attempts: attempts, Elapsed: time.Since(start)},
		common.InferenceError(fmt.Sprintf("%s chunk %d", chunk.Document, chunk.Index), lastErr)
}

func (c *Client) call(ctx context.Context, req CompletionRequest) (string, error) {
	callCtx, cancel := common.DetachedTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	return c.completer.Complete(callCtx, req)
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
