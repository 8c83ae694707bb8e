package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/GriffinCanCode/offscreen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/offscreen/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrBodyTooLarge is returned when a response exceeds Config.MaxBodySize
	ErrBodyTooLarge = errors.New("response body too large")
	// ErrUnsupportedScheme is returned for anything but http and https
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// Config controls timeouts, retries and rate limiting
type Config struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit is requests per second across all origins; 0 is unlimited
	RateLimit   float64
	Burst       int
	UserAgent   string
	MaxBodySize int64
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 30 * time.Second,
		UserAgent:    "Offscreen/1.0",
		MaxBodySize:  10 * 1024 * 1024,
	}
}

// Response is a fully read document response
type Response struct {
	// URL is the final location after redirects
	URL         string
	Status      int
	Header      http.Header
	ContentType string
	Body        []byte
}

// Client fetches documents with rate limiting, retries and per-origin breakers
type Client struct {
	cfg      Config
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger used for request and retry logging
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics records fetch outcomes
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBreakerSettings replaces the default per-origin breaker settings
func WithBreakerSettings(settings resilience.Settings) Option {
	return func(c *Client) { c.breakers = resilience.NewGroup("fetch", withCancelSuccess(settings)) }
}

// New creates a client from cfg
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = def.MaxBodySize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	c := &Client{
		cfg: cfg,
		log: zap.NewNop(),
		breakers: resilience.NewGroup("fetch", withCancelSuccess(resilience.Settings{
			MaxRequests: 5,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				// Origins vary in reliability; trip on a long streak or a high failure rate
				return counts.ConsecutiveFailures >= 10 ||
					(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
			},
		})),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.RateLimit <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.RateLimit))
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = leveledLogger{c.log.Named("retry").Sugar()}
	// Hand the last response back instead of discarding it once retries run out
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c.resty = resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	return c
}

func withCancelSuccess(s resilience.Settings) resilience.Settings {
	if s.IsSuccessful == nil {
		s.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}
	}
	return s
}

// Fetch issues a GET for rawURL. headers override the client defaults.
func (c *Client) Fetch(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	start := time.Now()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	breaker := c.breakers.Get(u.Host)
	if err := breaker.Allow(); err != nil {
		c.metrics.RecordFetch("rejected", time.Since(start))
		return nil, fmt.Errorf("origin %s unavailable: %w", u.Host, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.RecordFetch("rate_limited", time.Since(start))
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	resp, err := resilience.Do(breaker, func() (*Response, error) {
		return c.do(ctx, rawURL, headers)
	})

	var se *statusError
	if errors.As(err, &se) {
		err = nil
	}
	if err != nil {
		c.metrics.RecordFetch("error", time.Since(start))
		c.log.Debug("Fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}

	c.metrics.RecordFetch(statusClass(resp.Status), time.Since(start))
	c.log.Debug("Fetched document",
		zap.String("url", resp.URL),
		zap.Int("status", resp.Status),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("duration", time.Since(start)))
	return resp, nil
}

func (c *Client) do(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	r, err := c.resty.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, err
	}

	raw := r.RawBody()
	defer raw.Close()

	body, err := io.ReadAll(io.LimitReader(raw, c.cfg.MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.cfg.MaxBodySize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, c.cfg.MaxBodySize)
	}

	final := rawURL
	if r.RawResponse != nil && r.RawResponse.Request != nil && r.RawResponse.Request.URL != nil {
		final = r.RawResponse.Request.URL.String()
	}

	resp := &Response{
		URL:         final,
		Status:      r.StatusCode(),
		Header:      r.Header(),
		ContentType: r.Header().Get("Content-Type"),
		Body:        body,
	}
	if resp.Status >= http.StatusInternalServerError {
		return resp, &statusError{code: resp.Status}
	}
	return resp, nil
}

// Breakers reports the breaker state of every origin fetched so far
func (c *Client) Breakers() map[string]string {
	states := c.breakers.States()
	out := make(map[string]string, len(states))
	for host, s := range states {
		out[host] = s.String()
	}
	return out
}

// statusError marks a server failure that still produced a response
type statusError struct{ code int }

func (e *statusError) Error() string { return "server returned " + strconv.Itoa(e.code) }

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
