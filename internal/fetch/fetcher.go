// Package fetch retrieves and cleans website content for extraction.
// The fetcher is an external collaborator of the coordination core:
// workers call it through the Fetcher interface and never depend on how
// content is obtained.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Common fetcher errors.
var (
	// ErrFetchFailed is returned when the site could not be retrieved
	// over either https or http.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrEmptyContent is returned when the site responded but yielded
	// no usable text.
	ErrEmptyContent = errors.New("fetched content is empty")
)

// maxBodyBytes bounds how much of a response body is read. Company
// landing pages beyond this add no extraction signal.
const maxBodyBytes = 2 << 20

// Content is the cleaned result of fetching one domain.
type Content struct {
	Domain    string
	URL       string
	Text      string
	TechStack []string
}

// Fetcher retrieves the content for a task key.
type Fetcher interface {
	Fetch(ctx context.Context, domain string) (*Content, error)
}

// HTTPFetcher fetches sites over HTTP, trying https first and falling
// back to plain http, and reduces the HTML to bounded clean text.
type HTTPFetcher struct {
	client        *http.Client
	userAgent     string
	maxTextLength int
}

// Config holds the HTTPFetcher settings.
type Config struct {
	// Timeout bounds a single request. Defaults to 15s.
	Timeout time.Duration

	// MaxTextLength bounds the cleaned text. Defaults to 8000.
	MaxTextLength int

	// UserAgent is sent on outbound requests.
	UserAgent string
}

// NewHTTPFetcher creates an HTTPFetcher with the given configuration.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxTextLength := cfg.MaxTextLength
	if maxTextLength <= 0 {
		maxTextLength = 8000
	}

	return &HTTPFetcher{
		client:        &http.Client{Timeout: timeout},
		userAgent:     cfg.UserAgent,
		maxTextLength: maxTextLength,
	}
}

// Fetch retrieves the domain's landing page and returns cleaned text
// plus any tech-stack hints found in the markup.
func (f *HTTPFetcher) Fetch(ctx context.Context, domain string) (*Content, error) {
	var html, url string
	var lastErr error

	for _, scheme := range []string{"https", "http"} {
		candidate := fmt.Sprintf("%s://%s", scheme, domain)
		body, err := f.get(ctx, candidate)
		if err != nil {
			lastErr = err
			continue
		}
		html, url = body, candidate
		break
	}
	if html == "" {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, domain, lastErr)
		}
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, domain)
	}

	text := CleanText(html, f.maxTextLength)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, domain)
	}

	return &Content{
		Domain:    domain,
		URL:       url,
		Text:      text,
		TechStack: DetectTechStack(html),
	}, nil
}

// get performs a single GET and returns the bounded body.
func (f *HTTPFetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}

	return string(body), nil
}
