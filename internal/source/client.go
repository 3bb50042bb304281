package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// httpClient wraps a net/http client with retry, backoff and block
// detection. Transient failures (network errors, 5xx) are retried with
// exponential backoff; an access denial or rate-limit status is surfaced
// immediately as a BlockError and never retried, because hammering a source
// that just blocked us only makes the block longer.
type httpClient struct {
	source     string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

func newHTTPClient(source string, timeout time.Duration) *httpClient {
	return &httpClient{
		source:     source,
		maxRetries: 3,
		retryDelay: 1 * time.Second,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// get fetches a page body, retrying transient failures.
func (c *httpClient) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s
			backoff := c.retryDelay * time.Duration(1<<uint(attempt-1))
			log.Info().
				Str("source", c.source).
				Str("url", url).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying fetch after backoff")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "text/html")
		req.Header.Set("User-Agent", "fightsync-reconciler/1.0")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("fetch failed: %w", err)
			if attempt < c.maxRetries {
				continue
			}
			return nil, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				lastErr = fmt.Errorf("failed to read response body: %w", readErr)
				if attempt < c.maxRetries {
					continue
				}
				return nil, lastErr
			}
			return body, nil

		case resp.StatusCode == http.StatusForbidden ||
			resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusUnavailableForLegalReasons:
			// Explicit refusal. Do not retry, do not disguise as a
			// generic failure.
			return nil, &BlockError{Source: c.source, StatusCode: resp.StatusCode}

		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("source returned status %d", resp.StatusCode)
			if attempt < c.maxRetries {
				log.Warn().
					Str("source", c.source).
					Str("url", url).
					Int("status", resp.StatusCode).
					Msg("Retryable upstream error")
				continue
			}
			return nil, lastErr

		default:
			return nil, fmt.Errorf("source returned status %d", resp.StatusCode)
		}
	}

	return nil, lastErr
}
