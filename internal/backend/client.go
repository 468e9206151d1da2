// Package backend is the HTTP client of the CRM REST backend that the tables read from.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/straye-as/salesdesk/internal/config"
	"go.uber.org/zap"
)

const maxErrorBody = 4 << 10

// Client issues requests against the backend base URL. It holds no credentials;
// every call receives the caller's Credentials explicitly.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewClient creates a backend client from configuration
func NewClient(cfg *config.BackendConfig, logger *zap.Logger) (*Client, error) {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: cfg.TimeoutDuration()}, logger)
}

// NewClientWithHTTP creates a backend client using the given http.Client
func NewClientWithHTTP(cfg *config.BackendConfig, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q: scheme and host required", cfg.BaseURL)
	}

	baseDelay := cfg.RetryBaseDelay()
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	maxDelay := cfg.RetryMaxDelay()
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}, nil
}

// Get issues an idempotent GET and decodes the JSON body into out. Transport
// failures, 429 and 5xx answers are retried with capped exponential backoff.
func (c *Client) Get(ctx context.Context, creds Credentials, path string, params url.Values, out any) error {
	b := retry.NewExponential(c.baseDelay)
	b = retry.WithCappedDuration(c.maxDelay, b)
	b = retry.WithMaxRetries(uint64(c.maxRetries), b)

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := c.do(ctx, creds, http.MethodGet, path, params, nil, out)
		if err != nil && retryable(err) {
			c.logger.Debug("backend request failed, retrying",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && ctx.Err() != nil {
		return classify(ctx, ctx.Err())
	}
	return err
}

// Send issues a mutation. Mutations are never retried.
func (c *Client) Send(ctx context.Context, creds Credentials, method, path string, body, out any) error {
	return c.do(ctx, creds, method, path, nil, body, out)
}

// Ping checks that the backend answers on its health endpoint
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, nil, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, params url.Values, body, out any) error {
	target := c.baseURL.JoinPath(path)
	if len(params) > 0 {
		target.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds != nil {
		creds.Apply(req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", target.Path),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return &ServerError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return classify(ctx, err)
		}
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// errorMessage extracts a message from a JSON error body or falls back to plain text
func errorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
