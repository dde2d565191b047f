// Package spotify looks up artist genres and audio features in the Spotify Web API.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/resonance/internal/core/ports"
	"github.com/ewilliams-labs/resonance/internal/logging"
	"github.com/ewilliams-labs/resonance/internal/metrics"
)

const (
	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	breakerName = "spotify-api"
)

// Config holds the client settings.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	Market       string

	// RequestsPerSecond <= 0 disables client-side rate limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxRetries is the number of attempts per request; values below one
	// mean a single attempt.
	MaxRetries int
	// RetryBackoff is the first retry delay, doubled on each further retry.
	RetryBackoff time.Duration
	Timeout      time.Duration
}

// DefaultConfig returns the production defaults without credentials.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		TokenURL:          DefaultTokenURL,
		Market:            "US",
		RequestsPerSecond: 5,
		Burst:             5,
		MaxRetries:        3,
		RetryBackoff:      500 * time.Millisecond,
		Timeout:           10 * time.Second,
	}
}

// Client is an HTTP client for the Spotify adapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	market     string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	attempts   int
	retryBase  time.Duration
	log        zerolog.Logger
}

// compile-time interface assertions
var (
	_ ports.GenreProvider   = (*Client)(nil)
	_ ports.FeatureProvider = (*Client)(nil)
)

// NewClient constructs a client that authenticates with the client
// credentials flow.
func NewClient(cfg Config) *Client {
	base := &http.Client{Timeout: cfg.Timeout}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fallbackIfEmpty(cfg.TokenURL, DefaultTokenURL),
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return newClient(cc.Client(ctx), cfg)
}

// NewClientWithBaseURL constructs an unauthenticated, unthrottled client
// against baseURL. It exists for tests and local stubs.
func NewClientWithBaseURL(httpClient *http.Client, baseURL string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.RequestsPerSecond = 0
	cfg.RetryBackoff = time.Millisecond
	return newClient(httpClient, cfg)
}

func newClient(httpClient *http.Client, cfg Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	retryBase := cfg.RetryBackoff
	if retryBase <= 0 {
		retryBase = DefaultConfig().RetryBackoff
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(fallbackIfEmpty(cfg.BaseURL, DefaultBaseURL), "/"),
		market:     cfg.Market,
		limiter:    limiter,
		attempts:   attempts,
		retryBase:  retryBase,
		log:        logging.WithComponent("spotify"),
	}
	c.breaker = newBreaker(c.log)
	return c
}

// newBreaker opens after 60% of at least 10 requests in a minute fail and
// probes again after two minutes.
func newBreaker(log zerolog.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", stateName(from)).Str("to", stateName(to)).Msg("circuit breaker state change")
			metrics.RecordBreakerTransition(name, stateName(from), stateName(to), stateValue(to))
		},
	})
}

// getJSON issues a GET through the breaker and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("spotify adapter: invalid %s url: %w", endpoint, err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("spotify adapter: failed to create %s request: %w", endpoint, err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.send(req)
	})
	if err != nil {
		metrics.RecordSpotifyRequest(endpoint, 0)
		return fmt.Errorf("spotify adapter: %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()
	metrics.RecordSpotifyRequest(endpoint, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("spotify adapter: %s status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("spotify adapter: %s decode error: %w", endpoint, err)
	}
	return nil
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
