// Package mediawiki fetches articles from a MediaWiki Action API endpoint.
package mediawiki

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 64 << 20
	defaultUserAgent   = "wikiharvest/1.0 (https://github.com/JakeFAU/wikiharvest)"
)

// Config controls the API client.
type Config struct {
	// Endpoint is the api.php URL, e.g. https://en.wikipedia.org/w/api.php.
	Endpoint    string
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	MaxBodySize int
}

// Limiter throttles outgoing requests.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Client implements crawler.MultiFetcher using a Colly collector.
type Client struct {
	cfg           Config
	endpoint      *url.URL
	baseCollector *colly.Collector
	limiter       Limiter
	retry         crawler.RetryPolicy
	logger        *zap.Logger
}

var _ crawler.MultiFetcher = (*Client)(nil)

// New builds a Client. A nil limiter disables throttling.
func New(cfg Config, limiter Limiter, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, &crawler.ConfigError{Key: "wiki.api_endpoint", Reason: fmt.Sprintf("must be an absolute URL, got %q", cfg.Endpoint)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.MaxBodySize = cfg.MaxBodySize
	c.WithTransport(newHTTPTransport())

	return &Client{
		cfg:           cfg,
		endpoint:      endpoint,
		baseCollector: c,
		limiter:       limiter,
		retry:         statusAwarePolicy{crawler.NewExponentialRetryPolicy(cfg.MaxRetries + 1)},
		logger:        logger.Named("mediawiki"),
	}, nil
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// statusAwarePolicy gives up on client errors other than 429.
type statusAwarePolicy struct {
	crawler.RetryPolicy
}

func (p statusAwarePolicy) ShouldRetry(err error, attempt int) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 && statusErr.Code != http.StatusTooManyRequests {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Transient() {
		return false
	}
	return p.RetryPolicy.ShouldRetry(err, attempt)
}

// get performs one API call with retries and returns the response body.
func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	u := *c.endpoint
	u.RawQuery = params.Encode()
	target := u.String()

	var body []byte
	err := crawler.Retry(ctx, c.retry, func(ctx context.Context) error {
		var err error
		body, err = c.visit(ctx, target)
		if err == nil {
			err = decodeAPIError(body)
		}
		if err != nil {
			c.logger.Debug("api request failed", zap.String("url", target), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) visit(ctx context.Context, target string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, target); err != nil {
			return nil, err
		}
	}

	var (
		body     []byte
		fetchErr error
	)
	collector := c.baseCollector.Clone()
	collector.UserAgent = c.cfg.UserAgent
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 300 {
			fetchErr = &StatusError{Code: r.StatusCode}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("api request canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return nil, fmt.Errorf("api response failed: %w", fetchErr)
		}
		if err != nil {
			return nil, fmt.Errorf("api visit failed: %w", err)
		}
		return body, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
}
