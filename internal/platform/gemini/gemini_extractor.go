package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kmatteson/domainintel/internal/config"
	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/extract"
	"github.com/kmatteson/domainintel/internal/fetch"
)

// GeminiExtractor implements the extract.Extractor interface using
// Google's Gemini API to extract company profiles from website text.
type GeminiExtractor struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string
}

// NewGeminiExtractor creates a new GeminiExtractor with the provided
// dependencies. Returns an error if the logger is nil or the
// configuration is incomplete.
func NewGeminiExtractor(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
) (*GeminiExtractor, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", extract.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", extract.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			extract.ErrInvalidConfig, err)
	}

	return &GeminiExtractor{
		logger: logger,
		config: cfg,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Extract builds a CompanyProfile from the given fetched content.
func (g *GeminiExtractor) Extract(
	ctx context.Context,
	content *fetch.Content,
) (*domain.CompanyProfile, error) {
	if content == nil || content.Text == "" {
		return nil, fmt.Errorf("%w: %w", extract.ErrExtractionFailed, ErrEmptyContentText)
	}
	if g.client == nil {
		return nil, fmt.Errorf("%w: %w", extract.ErrExtractionFailed, ErrNilClient)
	}

	prompt, err := buildPrompt(content.Domain, content.URL, content.Text, content.TechStack)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build prompt: %v", extract.ErrExtractionFailed, err)
	}

	text, err := g.callGeminiWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	profile, err := ParseProfileResponse(text)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to parse extraction response",
			"domain", content.Domain,
			"error", err)
		return nil, err
	}

	// Tech stack comes from markup scanning, not from the model.
	profile.TechStack = content.TechStack

	g.logger.InfoContext(ctx, "extracted company profile",
		"domain", content.Domain,
		"company_name", profile.CompanyName())

	return profile, nil
}

// callGeminiWithRetry calls the Gemini API with exponential backoff and
// jitter for transient errors. Permanent errors (safety blocks,
// unparseable responses) are returned immediately without retrying.
func (g *GeminiExtractor) callGeminiWithRetry(ctx context.Context, prompt string) (string, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}

	baseDelaySeconds := g.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		g.logger.DebugContext(ctx, "making Gemini API call",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		text, transient, err := g.callGemini(ctx, prompt)
		if err == nil {
			return text, nil
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attemptNum,
			"transient", transient,
			"error", err)

		if !transient {
			return "", err
		}

		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				extract.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * (0.5 + rand(0, 0.5))
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitterFactor := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitterFactor * float64(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", extract.ErrTransientFailure, ctx.Err())
		}
	}
}

// callGemini performs a single API call and classifies the error as
// transient (retryable) or permanent.
func (g *GeminiExtractor) callGemini(ctx context.Context, prompt string) (string, bool, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})
	if err != nil {
		// API-level failures (rate limits, 5xx, network) may resolve
		// on retry.
		return "", true, fmt.Errorf("%w: %v", extract.ErrTransientFailure, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", false, fmt.Errorf("%w: no content generated", extract.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", false, fmt.Errorf("%w: blocked by safety filters", extract.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", false, fmt.Errorf("%w: empty content in response", extract.ErrInvalidResponse)
	}

	text := resp.Text()
	if text == "" {
		return "", false, fmt.Errorf("%w: empty response text", extract.ErrInvalidResponse)
	}

	return text, false, nil
}

// ParseProfileResponse parses the model's JSON reply into a
// CompanyProfile. Markdown code fences around the JSON are tolerated.
func ParseProfileResponse(text string) (*domain.CompanyProfile, error) {
	cleaned := stripCodeFences(text)

	var profile domain.CompanyProfile
	if err := json.Unmarshal([]byte(cleaned), &profile); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v",
			extract.ErrInvalidResponse, err)
	}

	if profile.CompanyName() == "" && profile.DescriptionIndustry.LongDescription == "" {
		return nil, fmt.Errorf("%w: response carries no profile data", extract.ErrInvalidResponse)
	}

	return &profile, nil
}

// stripCodeFences removes a surrounding ```json ... ``` block if the
// model wrapped its reply despite the JSON response MIME type.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
