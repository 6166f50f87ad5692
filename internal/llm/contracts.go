package llm

import "context"

// CompletionRequest is one prompt for a chat model: the fixed instruction
// and the user turn carrying the chunk text.
type CompletionRequest struct {
	System string
	User   string
}

// Completer is a provider-specific chat endpoint. It returns the raw text of
// the model's answer without interpreting it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Model() string
}

// ResponseCache stores raw model answers by CacheKey.
type ResponseCache interface {
	GetResponse(ctx context.Context, key string) (raw string, ok bool, err error)
	PutResponse(ctx context.Context, key, model, raw string) error
}
