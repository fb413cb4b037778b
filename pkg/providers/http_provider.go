package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Default configuration values applied by NewHTTPProvider.
const (
	DefaultTimeout         = 60 * time.Second
	DefaultMaxRetries      = 2
	DefaultMaxIdleConns    = 20
	DefaultIdleConnTimeout = 90 * time.Second
)

// HTTPProvider is the base implementation shared by the HTTP-based adapters.
// It provides connection pooling, per-call timeouts, and retry with
// exponential backoff for transient errors.
//
// Concrete adapters (openai, anthropic) embed this struct and implement the
// Provider interface on top of DoJSONRequest.
type HTTPProvider struct {
	config ProviderConfig
	client *http.Client
}

// NewHTTPProvider creates a base HTTP provider with pooled connections.
func NewHTTPProvider(config ProviderConfig) *HTTPProvider {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = DefaultMaxIdleConns
	}
	if config.IdleConnTimeout <= 0 {
		config.IdleConnTimeout = DefaultIdleConnTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:      config.MaxIdleConns,
		IdleConnTimeout:   config.IdleConnTimeout,
		ForceAttemptHTTP2: true,
	}

	return &HTTPProvider{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
	}
}

// Name returns the provider's configured name.
func (p *HTTPProvider) Name() string {
	return p.config.Name
}

// Type returns the adapter type.
func (p *HTTPProvider) Type() string {
	return p.config.Type
}

// Config returns the provider's configuration.
func (p *HTTPProvider) Config() ProviderConfig {
	return p.config
}

// Close releases idle HTTP connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// DoRequest performs an HTTP request with retry and timeout handling.
// Transient failures (network errors, 5xx) are retried with exponential
// backoff up to the configured budget; timeouts, auth failures, rate limits,
// and 4xx responses are surfaced immediately as typed errors.
func (p *HTTPProvider) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			slog.Debug("retrying provider request",
				"provider", p.config.Name,
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		if req.Header.Get("Content-Type") == "" && body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				// Context cancelled or deadline hit - do not retry.
				return nil, &TimeoutError{
					Provider: p.config.Name,
					Timeout:  p.config.Timeout,
				}
			}
			slog.Warn("provider request failed, will retry",
				"provider", p.config.Name,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		errorBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &AuthError{
				Provider: p.config.Name,
				Message:  string(errorBody),
			}

		case http.StatusTooManyRequests:
			return nil, &RateLimitError{
				Provider:   p.config.Name,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Message:    string(errorBody),
			}

		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			return nil, &ProviderError{
				Provider:   p.config.Name,
				StatusCode: resp.StatusCode,
				Message:    string(errorBody),
			}

		default:
			lastErr = &ProviderError{
				Provider:   p.config.Name,
				StatusCode: resp.StatusCode,
				Message:    string(errorBody),
			}
			slog.Warn("provider returned error status, will retry",
				"provider", p.config.Name,
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
		}
	}

	return nil, lastErr
}

// DoJSONRequest performs a JSON request and decodes the JSON response.
func (p *HTTPProvider) DoJSONRequest(ctx context.Context, method, url string, reqBody, respBody interface{}, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := p.DoRequest(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if respBody != nil {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return &ParseError{
				Provider:    p.config.Name,
				RawResponse: string(raw),
				Cause:       err,
			}
		}
	}

	return nil
}

// parseRetryAfter parses a Retry-After header value given in seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
