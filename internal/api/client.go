package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Retry and backoff constants for submit requests. Status reads are never
// retried here — the job tracker owns that cadence.
const (
	maxRetries     = 3
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "easyemail-cli/0.1"
)

// Client is an HTTP client for the easyEmail backend API. It handles
// request construction, JSON encoding, error classification, and bounded
// retry with exponential backoff for enqueue operations.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// sleepFunc waits between retries. Tests override this to avoid real
	// delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a backend API client.
// baseURL is typically "http://localhost:8000/api".
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// do executes one request and decodes the JSON response into out (which may
// be nil for callers that only care about the status). When retry is true,
// transport errors and 5xx responses are retried with backoff.
func (c *Client) do(ctx context.Context, method, path string, body, out any, retry bool) error {
	var encoded []byte

	if body != nil {
		var err error
		if encoded, err = json.Marshal(body); err != nil {
			return fmt.Errorf("api: encoding request body: %w", err)
		}
	}

	requestID := uuid.NewString()

	var attempt int
	for {
		err := c.doOnce(ctx, method, path, encoded, out, requestID)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("api: request canceled: %w", ctx.Err())
		}

		if !retry || attempt >= maxRetries || !shouldRetry(err) {
			return err
		}

		backoff := calcBackoff(attempt)
		c.logger.Warn("retrying backend request",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
			return fmt.Errorf("api: request canceled: %w", sleepErr)
		}

		attempt++
	}
}

// doOnce performs a single HTTP round trip.
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out any, requestID string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("api: building request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Detail:     readDetail(resp.Body),
			Err:        sentinel,
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decoding %s %s response: %w", method, path, err)
	}

	return nil
}

// detailBodyLimit caps how much of an error body is read for diagnostics.
const detailBodyLimit = 4096

// errorBody is the backend's error envelope: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

// readDetail extracts the backend error detail, falling back to the raw
// body when it is not the standard envelope.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, detailBodyLimit))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Detail != "" {
		return eb.Detail
	}

	return string(raw)
}

// shouldRetry reports whether an error from doOnce is retryable: transport
// failures and retryable HTTP statuses.
func shouldRetry(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return retryable(apiErr.StatusCode)
	}

	// Non-HTTP errors at this layer are transport failures.
	return true
}

// calcBackoff computes exponential backoff with jitter for the given attempt.
func calcBackoff(attempt int) time.Duration {
	backoff := time.Duration(float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt)))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	jitter := time.Duration(rand.Float64() * jitterFraction * float64(backoff))

	return backoff + jitter
}

// timeSleep waits for d or until ctx is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
