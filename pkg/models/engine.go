package models

import (
	"context"
	"errors"
)

// Sentinel errors for summarization engine failures.
var (
	ErrEngineUnavailable = errors.New("ai engine unavailable")
	ErrInferenceTimeout  = errors.New("ai inference timeout")
	ErrInvalidResponse   = errors.New("ai engine returned invalid response")
	ErrModelNotFound     = errors.New("ai model not available on engine")
)

// AIEngine produces a summary and keywords from extracted document text.
// Implementations must be safe for concurrent use: job workers share a
// single engine.
type AIEngine interface {
	// Summarize analyzes the given text. The context carries the inference
	// deadline; implementations must abort when it expires.
	Summarize(ctx context.Context, text string) (Analysis, error)
	// HealthCheck verifies the engine is reachable and ready to serve.
	HealthCheck(ctx context.Context) error
	Name() string
}
