// Package embedding wraps the Gemini embedContent API behind a client that
// paces requests to respect the external rate limit and retries transient
// failures with backoff.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Dimensions is the vector size produced by the embedding model. Every
// response is validated against it; the vector store schema depends on it.
const Dimensions = 768

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"

	// maxInputChars caps the text sent per request; the API rejects
	// oversized payloads.
	maxInputChars = 8000

	requestTimeout = 30 * time.Second
)

// Client calls the Gemini embedContent endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      Policy

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client for the given API key and model name (for example
// "embedding-001"). requestsPerSecond bounds the call rate; values <= 0
// fall back to 10 req/s.
func New(apiKey, model string, requestsPerSecond float64, retry Policy) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		retry:      retry,
		sleep:      sleepCtx,
	}
}

type embedRequest struct {
	Model   string       `json:"model"`
	Content embedContent `json:"content"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding vector for text. Transient failures (network
// errors, 429, 5xx) are retried per the client's Policy; permanent ones
// (bad credentials, rejected input, wrong dimensions) return immediately
// wrapped in ErrPermanent.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input text", ErrPermanent)
	}
	if runes := []rune(text); len(runes) > maxInputChars {
		text = string(runes[:maxInputChars])
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vec, err := c.doRequest(ctx, text)
		if err == nil {
			return vec, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, ErrPermanent) {
			return nil, err
		}

		lastErr = err
		if attempt < c.retry.MaxAttempts {
			if err := c.sleep(ctx, c.retry.Delay(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

func (c *Client) doRequest(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model:   "models/" + c.model,
		Content: embedContent{Parts: []embedPart{{Text: text}}},
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fmt.Errorf("embed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		default:
			return nil, fmt.Errorf("%w: status %d: %s", ErrPermanent, resp.StatusCode, strings.TrimSpace(string(msg)))
		}
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}

	if got := len(result.Embedding.Values); got != Dimensions {
		return nil, fmt.Errorf("%w: embedding dimension mismatch: %d != %d", ErrPermanent, got, Dimensions)
	}
	return result.Embedding.Values, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
