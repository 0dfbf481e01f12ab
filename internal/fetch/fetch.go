// Package fetch downloads content from research data providers
// (EC, DFO, NOAA) with bounded exponential-backoff retries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrRetriesExhausted = errors.New("fetch: retries exhausted")

// Client retries failed downloads at intervals that grow by
// BackoffFactor from FirstRetryDelay until the next delay would exceed
// RetryTimeLimit. With the defaults the retry waits are 2, 4, 8, ...,
// 2048 seconds.
type Client struct {
	HTTP            *http.Client
	FirstRetryDelay time.Duration
	BackoffFactor   float64
	RetryTimeLimit  time.Duration
}

// New returns a Client with the standard nowcast retry contract.
func New() *Client {
	return &Client{
		HTTP:            &http.Client{Timeout: 5 * time.Minute},
		FirstRetryDelay: 2 * time.Second,
		BackoffFactor:   2,
		RetryTimeLimit:  time.Hour,
	}
}

// Get returns the response body for url.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.retry(ctx, url, func(resp *http.Response) error {
		var err error
		body, err = io.ReadAll(resp.Body)
		return err
	})
	return body, err
}

// Download streams the content of url into path via a temp file so a
// partial download never replaces a previous good file.
func (c *Client) Download(ctx context.Context, url, path string) error {
	return c.retry(ctx, url, func(resp *http.Response) error {
		tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part*")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())
		if _, err := io.Copy(tmp, resp.Body); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmp.Name(), path)
	})
}

func (c *Client) retry(ctx context.Context, url string, handle func(*http.Response) error) error {
	factor := c.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	attempts := 0
	lastErr := c.attempt(ctx, url, handle)
	if lastErr == nil {
		return nil
	}

	delay := c.FirstRetryDelay
	for delay > 0 && delay <= c.RetryTimeLimit {
		log.Warn().Str("url", url).Err(lastErr).
			Dur("retry_in", delay).Msg("download failed")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		attempts++
		lastErr = c.attempt(ctx, url, handle)
		if lastErr == nil {
			return nil
		}
		delay = time.Duration(float64(delay) * factor)
	}

	log.Error().Str("url", url).Int("attempts", attempts+1).
		Msg("giving up on download")
	return fmt.Errorf("%w: %s failed %d times: %v",
		ErrRetriesExhausted, url, attempts+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, url string, handle func(*http.Response) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch: %s from %s", resp.Status, url)
	}
	return handle(resp)
}
