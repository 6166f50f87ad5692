// Package async runs queued documents through a handler on a fixed number
// of workers. Watch mode feeds it from the filesystem watcher.
package async

import (
	"context"
	"errors"
	"time"
)

// Job is one document waiting to be processed.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

// Handler processes one job.
type Handler func(ctx context.Context, job Job) error

var ErrQueueClosed = errors.New("queue is shutting down")

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
