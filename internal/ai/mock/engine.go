// Package mock provides a test double for the summarization engine.
package mock

import (
	"context"

	"github.com/docsense/docsense/pkg/models"
)

// MockEngine satisfies models.AIEngine for testing.
type MockEngine struct {
	Name_           string
	SummarizeFunc   func(ctx context.Context, text string) (models.Analysis, error)
	HealthCheckFunc func(ctx context.Context) error
}

func (m *MockEngine) Name() string { return m.Name_ }

func (m *MockEngine) Summarize(ctx context.Context, text string) (models.Analysis, error) {
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}
	return models.Analysis{}, nil
}

func (m *MockEngine) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFunc != nil {
		return m.HealthCheckFunc(ctx)
	}
	return nil
}

// NewMockEngine returns a MockEngine with sensible default responses.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		Name_: "mock",
		SummarizeFunc: func(_ context.Context, _ string) (models.Analysis, error) {
			return models.Analysis{
				Summary:  "Mock summary of the document for testing",
				Keywords: []string{"mock", "document", "testing"},
			}, nil
		},
		HealthCheckFunc: func(_ context.Context) error { return nil },
	}
}

// NewFailingEngine returns a MockEngine that always returns the given error.
func NewFailingEngine(err error) *MockEngine {
	return &MockEngine{
		Name_: "mock-failing",
		SummarizeFunc: func(_ context.Context, _ string) (models.Analysis, error) {
			return models.Analysis{}, err
		},
		HealthCheckFunc: func(_ context.Context) error { return err },
	}
}

// NewTimeoutEngine returns a MockEngine that blocks until context is cancelled.
func NewTimeoutEngine() *MockEngine {
	return &MockEngine{
		Name_: "mock-timeout",
		SummarizeFunc: func(ctx context.Context, _ string) (models.Analysis, error) {
			<-ctx.Done()
			return models.Analysis{}, models.ErrInferenceTimeout
		},
		HealthCheckFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return models.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockEngine implements AIEngine.
var _ models.AIEngine = (*MockEngine)(nil)
