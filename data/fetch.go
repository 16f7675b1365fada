// Copyright 2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	defaultMinInterval    = 2 * time.Second
	defaultMaxRetries     = 3
	defaultInitialBackoff = time.Second
	defaultTimeout        = 10 * time.Second
)

// FetchResult records the outcome of an upstream call so callers can log how
// the result was obtained. It is populated on failure as well as success.
type FetchResult struct {
	StatusCode int
	Body       []byte
	Attempts   int
	Throttled  bool
}

// FetchClient wraps upstream HTTP calls with a minimum wall-clock interval per
// endpoint class and bounded retry with exponential backoff on throttling
// responses. Non-transient failures (4xx other than 429) are returned
// immediately without retry.
type FetchClient struct {
	client         *http.Client
	minInterval    time.Duration
	maxRetries     int
	initialBackoff time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// FetchOption configures the client.
type FetchOption func(*FetchClient)

// WithMinInterval sets the minimum interval between calls to one endpoint class.
func WithMinInterval(d time.Duration) FetchOption {
	return func(c *FetchClient) {
		c.minInterval = d
	}
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n int) FetchOption {
	return func(c *FetchClient) {
		c.maxRetries = n
	}
}

// WithInitialBackoff sets the first retry delay; it doubles each attempt.
func WithInitialBackoff(d time.Duration) FetchOption {
	return func(c *FetchClient) {
		c.initialBackoff = d
	}
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(c *FetchClient) {
		c.client.Timeout = d
	}
}

// NewFetchClient creates a rate-limited fetch client.
func NewFetchClient(opts ...FetchOption) *FetchClient {
	c := &FetchClient{
		client:         &http.Client{Timeout: defaultTimeout},
		minInterval:    defaultMinInterval,
		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
		limiters:       make(map[string]*rate.Limiter),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// HTTPClient exposes the underlying client so tests can install a mock transport.
func (c *FetchClient) HTTPClient() *http.Client {
	return c.client
}

func (c *FetchClient) limiter(class string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lim, ok := c.limiters[class]; ok {
		return lim
	}

	lim := rate.NewLimiter(rate.Every(c.minInterval), 1)
	c.limiters[class] = lim
	return lim
}

// Get performs a throttled GET against url. The class identifies the upstream
// endpoint family the minimum-interval throttle applies to; different classes
// are throttled independently.
func (c *FetchClient) Get(ctx context.Context, class string, url string) (*FetchResult, error) {
	subLog := log.With().Str("Class", class).Logger()

	lim := c.limiter(class)
	res := &FetchResult{}
	delay := c.initialBackoff

	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		// every attempt passes through the per-class throttle, retries included
		if attempt == 1 {
			res.Throttled = !lim.Allow()
			if res.Throttled {
				if err := lim.Wait(ctx); err != nil {
					return res, err
				}
			}
		} else if err := lim.Wait(ctx); err != nil {
			return res, err
		}

		res.Attempts = attempt

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return res, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// Timeouts count against the same retry budget as throttling
			// responses; all other transport errors fail immediately.
			if isTimeout(err) && attempt <= c.maxRetries {
				subLog.Warn().Int("Attempt", attempt).Msg("upstream call timed out; retrying")
				if err := sleepCtx(ctx, delay); err != nil {
					return res, err
				}
				delay *= 2
				continue
			}
			return res, fmt.Errorf("%w: %s", ErrRequestFailed, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return res, fmt.Errorf("%w: %s", ErrRequestFailed, err)
		}

		res.StatusCode = resp.StatusCode
		res.Body = body

		switch {
		case resp.StatusCode == http.StatusOK:
			return res, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt > c.maxRetries {
				subLog.Warn().Int("Attempts", attempt).Msg("rate limit retries exhausted")
				return res, ErrRateLimitExhausted
			}
			subLog.Warn().Int("Attempt", attempt).Dur("Delay", delay).Msg("upstream rate limit hit; backing off")
			if err := sleepCtx(ctx, delay); err != nil {
				return res, err
			}
			delay *= 2
		default:
			return res, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
		}
	}

	return res, ErrRateLimitExhausted
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
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
