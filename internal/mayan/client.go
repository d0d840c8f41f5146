// Package mayan is a thin client for the Mayan EDMS REST API, scoped to the
// two things the analysis pipeline needs: extracted OCR text and the
// content-version timestamp used as the cache fingerprint.
package mayan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for Mayan client failures.
var (
	ErrNoContent        = errors.New("document has no extracted content")
	ErrMayanUnreachable = errors.New("mayan unreachable")
	ErrMayanTimeout     = errors.New("mayan request timeout")
	ErrMayanAPIError    = errors.New("mayan api error")
)

// Client is the interface for reading document content from Mayan.
type Client interface {
	// GetExtractedText returns the concatenated OCR text of the document's
	// active content version. Fails with ErrNoContent when extraction has
	// not produced anything yet.
	GetExtractedText(ctx context.Context, documentID int64) (string, error)
	// GetContentVersionTimestamp returns the opaque timestamp of the
	// document's active content version, or "" when no version exists yet.
	GetContentVersionTimestamp(ctx context.Context, documentID int64) (string, error)
}

// HTTPClient implements Client using Mayan's HTTP API.
type HTTPClient struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

// NewHTTPClient creates a new Mayan HTTP client.
func NewHTTPClient(baseURL, apiToken string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) GetContentVersionTimestamp(ctx context.Context, documentID int64) (string, error) {
	version, err := c.activeVersion(ctx, documentID)
	if err != nil {
		return "", err
	}
	if version == nil {
		return "", nil
	}
	return version.Timestamp, nil
}

func (c *HTTPClient) GetExtractedText(ctx context.Context, documentID int64) (string, error) {
	version, err := c.activeVersion(ctx, documentID)
	if err != nil {
		return "", err
	}
	if version == nil {
		return "", fmt.Errorf("%w: document %d has no versions", ErrNoContent, documentID)
	}

	pages, err := c.versionPages(ctx, documentID, version.ID)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("%w: document %d version %d has no pages", ErrNoContent, documentID, version.ID)
	}

	var parts []string
	for _, page := range pages {
		content, err := c.pageOCR(ctx, documentID, version.ID, page.ID)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", page.PageNumber, content))
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: document %d has no OCR content", ErrNoContent, documentID)
	}
	return strings.Join(parts, "\n\n"), nil
}

// activeVersion returns the active version of a document, falling back to
// the most recent one. A nil version means the document has none yet.
func (c *HTTPClient) activeVersion(ctx context.Context, documentID int64) (*documentVersion, error) {
	u := fmt.Sprintf("%s/documents/%d/versions/", c.baseURL, documentID)

	var resp versionsResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	for i := range resp.Results {
		if resp.Results[i].Active {
			return &resp.Results[i], nil
		}
	}
	return &resp.Results[len(resp.Results)-1], nil
}

func (c *HTTPClient) versionPages(ctx context.Context, documentID, versionID int64) ([]versionPage, error) {
	u := fmt.Sprintf("%s/documents/%d/versions/%d/pages/", c.baseURL, documentID, versionID)

	var resp pagesResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *HTTPClient) pageOCR(ctx context.Context, documentID, versionID, pageID int64) (string, error) {
	u := fmt.Sprintf("%s/documents/%d/versions/%d/pages/%d/ocr/", c.baseURL, documentID, versionID, pageID)

	var resp ocrResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		// A page without an OCR record is empty, not an error.
		if errors.Is(err, ErrMayanAPIError) && strings.Contains(err.Error(), "status 404") {
			return "", nil
		}
		return "", err
	}
	return resp.Content, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Token "+c.apiToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d for %s", ErrMayanAPIError, resp.StatusCode, u)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding mayan response: %w", err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrMayanTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrMayanTimeout, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrMayanUnreachable, err)
}

// --- Mayan response types ---

type documentVersion struct {
	ID        int64  `json:"id"`
	Active    bool   `json:"active"`
	Timestamp string `json:"timestamp"`
}

type versionsResponse struct {
	Results []documentVersion `json:"results"`
}

type versionPage struct {
	ID         int64 `json:"id"`
	PageNumber int   `json:"page_number"`
}

type pagesResponse struct {
	Results []versionPage `json:"results"`
}

type ocrResponse struct {
	Content string `json:"content"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
