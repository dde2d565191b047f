package spotify

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// statusError is a 429 or 5xx response that used up an attempt.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

// retryAfterBackOff follows the wrapped schedule, except that a delay the
// server requested with Retry-After replaces the next step.
type retryAfterBackOff struct {
	backoff.BackOff
	retryAfter time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next != backoff.Stop && b.retryAfter > 0 {
		next = b.retryAfter
	}
	b.retryAfter = 0
	return next
}

func (b *retryAfterBackOff) Reset() {
	b.retryAfter = 0
	b.BackOff.Reset()
}

// retryPolicy doubles from the client's base delay and stops after its
// attempt budget.
func (c *Client) retryPolicy() *retryAfterBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryBase
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()
	return &retryAfterBackOff{BackOff: backoff.WithMaxRetries(eb, uint64(c.attempts-1))}
}

// send issues a bodiless request, waiting on the rate limiter before every
// attempt. Transport errors, 429 and 5xx are retried; any other response is
// returned to the caller.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	policy := c.retryPolicy()
	attempt := 0

	resp, err := backoff.RetryNotifyWithData(func() (*http.Response, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
		// #nosec G107 -- URL built from the configured base URL
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			policy.retryAfter = parseRetryAfter(resp)
			_ = resp.Body.Close()
			return nil, &statusError{code: resp.StatusCode}
		}
		return resp, nil
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		c.log.Warn().
			Err(err).
			Str("path", req.URL.Path).
			Int("attempt", attempt).
			Int("max_attempts", c.attempts).
			Dur("delay", next).
			Msg("retrying spotify request")
	})
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: request failed after %d attempts: %w", attempt, err)
	}
	return resp, nil
}

// parseRetryAfter accepts delay-seconds or an HTTP date. Anything else, and
// dates in the past, yield zero.
func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
