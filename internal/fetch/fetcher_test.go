package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fetchHost strips the scheme from an httptest server URL so it can be
// used as a task key. The https attempt fails against the plain-http
// test server, exercising the fallback path.
func fetchHost(t *testing.T, server *httptest.Server) string {
	t.Helper()
	return strings.TrimPrefix(server.URL, "http://")
}

func TestFetchFallsBackToHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1>Acme Corp</h1><script src="/wp-content/x.js"></script></body></html>`))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(Config{UserAgent: "intel-test/1.0"})
	content, err := fetcher.Fetch(context.Background(), fetchHost(t, server))
	require.NoError(t, err)

	assert.Equal(t, "http://"+fetchHost(t, server), content.URL)
	assert.Equal(t, "Acme Corp", content.Text)
	assert.Equal(t, []string{"WordPress"}, content.TechStack)
}

func TestFetchSendsUserAgent(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<p>ok</p>"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(Config{UserAgent: "intel-test/1.0"})
	_, err := fetcher.Fetch(context.Background(), fetchHost(t, server))
	require.NoError(t, err)
	assert.Equal(t, "intel-test/1.0", gotAgent)
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(Config{})
	_, err := fetcher.Fetch(context.Background(), fetchHost(t, server))
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestFetchRejectsEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><script>only code</script></html>"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(Config{})
	_, err := fetcher.Fetch(context.Background(), fetchHost(t, server))
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestFetchUnreachableHost(t *testing.T) {
	fetcher := NewHTTPFetcher(Config{Timeout: 2 * time.Second})
	// Reserved TLD, guaranteed not to resolve.
	_, err := fetcher.Fetch(context.Background(), "unreachable.invalid")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestFetchTruncatesLongContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<body>" + strings.Repeat("word ", 5000) + "</body>"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(Config{MaxTextLength: 100})
	content, err := fetcher.Fetch(context.Background(), fetchHost(t, server))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(content.Text), 100)
}
