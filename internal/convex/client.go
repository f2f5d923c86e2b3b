// Package convex reports publish outcomes back to the document backend
// through its HTTP mutation API.
package convex

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
)

// Static errors for Convex client operations.
var (
	// ErrURLRequired is returned when the deployment URL is not provided.
	ErrURLRequired = errors.New("convex: deployment URL is required")
	// ErrVersionIDRequired is returned when a report has no version ID.
	ErrVersionIDRequired = errors.New("convex: version ID is required")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("convex: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("convex: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("convex: request failed")
	// ErrMutationFailed is returned when the mutation itself reports an error.
	ErrMutationFailed = errors.New("convex: mutation failed")
)

// Reporter delivers publish outcomes.
type Reporter interface {
	Report(ctx context.Context, r Report) error
}

// NopReporter drops every report. It is used when no deployment is configured.
type NopReporter struct{}

// Report implements Reporter.
func (NopReporter) Report(context.Context, Report) error { return nil }

// HTTPClient is the HTTP implementation of Reporter.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a client for the deployment at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, ErrURLRequired
	}

	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Report invokes the completePublish mutation for r.
func (c *HTTPClient) Report(ctx context.Context, r Report) error {
	if r.VersionID == "" {
		return ErrVersionIDRequired
	}

	reqBody := mutationRequest{
		Path: CompletePublishPath,
		Args: completeArgs{
			VersionID:      r.VersionID,
			Status:         r.Status,
			PublishedS3Key: r.PublishedS3Key,
			PublishError:   r.Error,
		},
		Format: "json",
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("convex: marshal request: %w", err)
	}

	var resp mutationResponse
	if err := c.doRequestWithRetry(ctx, c.baseURL+"/api/mutation", bodyBytes, &resp); err != nil {
		return err
	}
	if resp.Status == "error" {
		return fmt.Errorf("%w: %s", ErrMutationFailed, resp.ErrorMessage)
	}
	return nil
}

// doRequestWithRetry performs a POST with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, url string, body []byte, result any) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("convex: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, url, body, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("convex: max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) doRequest(ctx context.Context, url string, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("convex: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("convex: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("convex: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("convex: unmarshal response: %w", err)
		}
	}
	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
