// Package ai constructs summarization engines. The engine contract lives
// in pkg/models; concrete engines live in subpackages.
package ai

import (
	"fmt"

	"github.com/docsense/docsense/internal/ai/mock"
	"github.com/docsense/docsense/internal/ai/ollama"
	"github.com/docsense/docsense/internal/config"
	"github.com/docsense/docsense/pkg/models"
)

// NewEngine constructs the summarization engine selected by config.
// Called once at server startup.
func NewEngine(cfg config.AIConfig) (models.AIEngine, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewEngine(cfg.Ollama), nil
	case "mock":
		return mock.NewMockEngine(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, mock", cfg.Provider)
	}
}
