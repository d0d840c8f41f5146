// Package ollama implements the summarization engine against a local
// Ollama server's generate API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/docsense/docsense/internal/config"
	"github.com/docsense/docsense/pkg/models"
)

// maxInputRunes caps how much document text is sent to the model. Local
// models degrade badly past this; the head of a document carries most of
// the signal for summarization.
const maxInputRunes = 15000

const maxKeywords = 10

const summaryPrompt = `You are a document analysis assistant. Summarize the following document in 2-4 sentences. Respond with the summary only, no preamble.

Document:
%s`

const keywordsPrompt = `You are a document analysis assistant. Extract up to 10 keywords or key phrases from the following document. Respond with a single comma-separated list, no preamble, no numbering.

Document:
%s`

// Engine implements models.AIEngine using Ollama.
type Engine struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewEngine(cfg config.OllamaConfig) *Engine {
	return &Engine{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		// No client timeout: the per-call context carries the inference deadline.
		client: &http.Client{},
	}
}

func (e *Engine) Name() string { return "ollama" }

// Summarize runs two generations against the model: one for the summary,
// one for the keyword list.
func (e *Engine) Summarize(ctx context.Context, text string) (models.Analysis, error) {
	text = truncateRunes(text, maxInputRunes)

	summary, err := e.generate(ctx, fmt.Sprintf(summaryPrompt, text))
	if err != nil {
		return models.Analysis{}, fmt.Errorf("generating summary: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return models.Analysis{}, fmt.Errorf("%w: empty summary", models.ErrInvalidResponse)
	}

	rawKeywords, err := e.generate(ctx, fmt.Sprintf(keywordsPrompt, text))
	if err != nil {
		return models.Analysis{}, fmt.Errorf("generating keywords: %w", err)
	}

	return models.Analysis{
		Summary:  strings.TrimSpace(summary),
		Keywords: parseKeywords(rawKeywords),
	}, nil
}

// HealthCheck verifies the Ollama server responds and has the configured
// model pulled.
func (e *Engine) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: tags returned status %d", models.ErrEngineUnavailable, resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("%w: decoding tags: %v", models.ErrInvalidResponse, err)
	}

	for _, m := range tags.Models {
		if m.Name == e.model || strings.TrimSuffix(m.Name, ":latest") == e.model {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", models.ErrModelNotFound, e.model)
}

func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  e.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: 0.7,
			TopP:        0.9,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: generate returned status %d", models.ErrEngineUnavailable, resp.StatusCode)
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return "", fmt.Errorf("%w: decoding generate response: %v", models.ErrInvalidResponse, err)
	}
	return gen.Response, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", models.ErrEngineUnavailable, err)
}

// truncateRunes cuts s to at most n runes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// parseKeywords splits a comma-separated model response into at most
// maxKeywords cleaned entries.
func parseKeywords(raw string) []string {
	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		kw := strings.TrimSpace(part)
		kw = strings.Trim(kw, `."'`)
		if kw == "" {
			continue
		}
		keywords = append(keywords, kw)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// --- Ollama wire types ---

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

var _ models.AIEngine = (*Engine)(nil)
