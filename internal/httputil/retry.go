// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the shared network-fetch layer: bounded
// retry/backoff around GET requests and offset-based pagination. Every
// source goes through this package instead of carrying its own retry loop.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultMaxAttempts is the total number of calls made before a
	// request is given up on.
	DefaultMaxAttempts = 4

	// DefaultInitialBackoff is the delay before the first retry. Each
	// further retry doubles the previous delay.
	DefaultInitialBackoff = 1 * time.Second
)

// Options bound the retry loop for one call.
type Options struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = DefaultInitialBackoff
	}
	return o
}

// FetchError is the terminal failure of a fetch: either every attempt was
// exhausted or the server answered with a non-retryable client error.
type FetchError struct {
	URL        string
	StatusCode int // last HTTP status; 0 when the failure was transport-level
	Attempts   int
	Err        error // last transport error, nil when StatusCode is set
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GET %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("GET %s failed after %d attempt(s): HTTP %d", e.URL, e.Attempts, e.StatusCode)
}

// Unwrap exposes the underlying transport error, if any.
func (e *FetchError) Unwrap() error { return e.Err }

// retryable reports whether a status code is worth another attempt:
// HTTP 429 and all 5xx. Any other 4xx is fatal for the call.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// GetWithRetry issues a GET request and retries transient failures (HTTP
// 429, 5xx, and transport errors such as timeouts or connection resets)
// with doubling backoff. Query parameters are appended to rawURL; header
// may be nil. A warning is logged before every retry with the cause and
// the computed delay.
//
// On a non-retryable 4xx the response body is discarded and a *FetchError
// is returned immediately. After MaxAttempts the last status or transport
// error is wrapped in a *FetchError. A backoff wait aborted by ctx returns
// ctx.Err().
func GetWithRetry(ctx context.Context, client *http.Client, log zerolog.Logger, rawURL string, params url.Values, header http.Header, opts Options) (*http.Response, error) {
	opts = opts.withDefaults()

	reqURL := rawURL
	if len(params) > 0 {
		reqURL = rawURL + "?" + params.Encode()
	}

	var lastStatus int
	var lastErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			lastStatus = 0
		} else if resp.StatusCode < 400 {
			return resp, nil
		} else if !retryable(resp.StatusCode) {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, &FetchError{URL: reqURL, StatusCode: resp.StatusCode, Attempts: attempt}
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = nil
			lastStatus = resp.StatusCode
		}

		if attempt == opts.MaxAttempts {
			break
		}

		backoff := opts.InitialBackoff << (attempt - 1)
		ev := log.Warn().Str("url", rawURL).Dur("delay", backoff).Int("attempt", attempt).Int("max_attempts", opts.MaxAttempts)
		if lastErr != nil {
			ev = ev.Err(lastErr)
		} else {
			ev = ev.Int("status", lastStatus)
		}
		ev.Msg("transient fetch failure, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, &FetchError{URL: reqURL, StatusCode: lastStatus, Attempts: opts.MaxAttempts, Err: lastErr}
}

// GetJSON fetches rawURL with retry and returns the response body.
func GetJSON(ctx context.Context, client *http.Client, log zerolog.Logger, rawURL string, params url.Values, header http.Header, opts Options) ([]byte, error) {
	resp, err := GetWithRetry(ctx, client, log, rawURL, params, header, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
