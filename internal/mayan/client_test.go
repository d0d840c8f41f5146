package mayan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMayanServer fakes the Mayan endpoints the client touches.
// ocrByPage maps page ID to OCR content; a missing entry yields a 404.
func newMayanServer(t *testing.T, versions string, pages string, ocrByPage map[int64]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/documents/42/versions/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents/42/versions/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, versions)
	})
	mux.HandleFunc("/documents/42/versions/7/pages/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents/42/versions/7/pages/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, pages)
	})
	for pageID, content := range ocrByPage {
		c := content
		mux.HandleFunc(fmt.Sprintf("/documents/42/versions/7/pages/%d/ocr/", pageID), func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"content": %q}`, c)
		})
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

func TestGetExtractedText(t *testing.T) {
	srv := newMayanServer(t,
		`{"results": [{"id": 7, "active": true, "timestamp": "2026-01-15T10:30:00Z"}]}`,
		`{"results": [{"id": 100, "page_number": 1}, {"id": 101, "page_number": 2}]}`,
		map[int64]string{100: "first page text", 101: "second page text"},
	)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret", 5*time.Second)
	text, err := c.GetExtractedText(context.Background(), 42)
	require.NoError(t, err)

	assert.Contains(t, text, "--- Page 1 ---\nfirst page text")
	assert.Contains(t, text, "--- Page 2 ---\nsecond page text")
}

func TestGetExtractedText_SkipsEmptyPages(t *testing.T) {
	srv := newMayanServer(t,
		`{"results": [{"id": 7, "active": true, "timestamp": "2026-01-15T10:30:00Z"}]}`,
		`{"results": [{"id": 100, "page_number": 1}, {"id": 101, "page_number": 2}]}`,
		map[int64]string{100: "   ", 101: "only real content"},
	)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	text, err := c.GetExtractedText(context.Background(), 42)
	require.NoError(t, err)

	assert.NotContains(t, text, "--- Page 1 ---")
	assert.Contains(t, text, "--- Page 2 ---\nonly real content")
}

func TestGetExtractedText_NoVersions(t *testing.T) {
	srv := newMayanServer(t, `{"results": []}`, `{"results": []}`, nil)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	_, err := c.GetExtractedText(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestGetExtractedText_NoPages(t *testing.T) {
	srv := newMayanServer(t,
		`{"results": [{"id": 7, "active": true, "timestamp": "2026-01-15T10:30:00Z"}]}`,
		`{"results": []}`, nil)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	_, err := c.GetExtractedText(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestGetExtractedText_OCRNotFoundIsEmpty(t *testing.T) {
	// Page 101 has no OCR record; the 404 must not fail the whole document.
	srv := newMayanServer(t,
		`{"results": [{"id": 7, "active": true, "timestamp": "2026-01-15T10:30:00Z"}]}`,
		`{"results": [{"id": 100, "page_number": 1}, {"id": 101, "page_number": 2}]}`,
		map[int64]string{100: "page one"},
	)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	text, err := c.GetExtractedText(context.Background(), 42)
	require.NoError(t, err)
	assert.Contains(t, text, "page one")
	assert.NotContains(t, text, "--- Page 2 ---")
}

func TestGetContentVersionTimestamp(t *testing.T) {
	srv := newMayanServer(t,
		`{"results": [
			{"id": 5, "active": false, "timestamp": "2026-01-01T00:00:00Z"},
			{"id": 7, "active": true, "timestamp": "2026-01-15T10:30:00Z"}
		]}`, `{"results": []}`, nil)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	ts, err := c.GetContentVersionTimestamp(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15T10:30:00Z", ts)
}

func TestGetContentVersionTimestamp_FallsBackToLastVersion(t *testing.T) {
	srv := newMayanServer(t,
		`{"results": [
			{"id": 5, "active": false, "timestamp": "2026-01-01T00:00:00Z"},
			{"id": 6, "active": false, "timestamp": "2026-01-10T00:00:00Z"}
		]}`, `{"results": []}`, nil)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	ts, err := c.GetContentVersionTimestamp(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-10T00:00:00Z", ts)
}

func TestGetContentVersionTimestamp_NoVersions(t *testing.T) {
	srv := newMayanServer(t, `{"results": []}`, `{"results": []}`, nil)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	ts, err := c.GetContentVersionTimestamp(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "", ts)
}

func TestAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tok123", 5*time.Second)
	_, err := c.GetContentVersionTimestamp(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Token tok123", gotAuth)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	_, err := c.GetContentVersionTimestamp(context.Background(), 42)
	assert.ErrorIs(t, err, ErrMayanAPIError)
}

func TestUnreachable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", "", 500*time.Millisecond)
	_, err := c.GetContentVersionTimestamp(context.Background(), 42)
	assert.ErrorIs(t, err, ErrMayanUnreachable)
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 100*time.Millisecond)
	_, err := c.GetContentVersionTimestamp(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMayanTimeout) || errors.Is(err, ErrMayanUnreachable))
}

func TestClassifyError_ContextDeadline(t *testing.T) {
	err := classifyError(context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrMayanTimeout)
}
