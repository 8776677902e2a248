package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/phimhub/ingest/internal/util"
	"golang.org/x/time/rate"
)

// Client performs throttled, retried JSON GETs against one upstream
type Client struct {
	source     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      *util.RetryConfig
	userAgent  string
}

// NewClient builds the HTTP client for one source configuration
func NewClient(cfg SourceConfig) *Client {
	cfg = cfg.WithDefaults()

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			util.Logger().WithError(err).WithField("proxy", cfg.Proxy).Warn("invalid proxy, connecting directly")
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	return &Client{
		source: cfg.Key,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		retry: &util.RetryConfig{
			MaxAttempts: cfg.RetryCount + 1,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
		},
		userAgent: cfg.UserAgent,
	}
}

// GetJSON decodes the response of GET rawURL into v.
// Every failure is returned as a *FetchError unless ctx was cancelled.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	return util.Retry(ctx, c.retry, func() error {
		return c.getOnce(ctx, rawURL, v)
	}, fmt.Sprintf("%s GET %s", c.source, rawURL))
}

func (c *Client) getOnce(ctx context.Context, rawURL string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &FetchError{Source: c.source, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	util.DebugLog("%s: GET %s", c.source, rawURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &FetchError{Source: c.source, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &FetchError{
			Source:     c.source,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &FetchError{Source: c.source, URL: rawURL, Decode: true, Err: err}
	}
	return nil
}

// JoinURL joins base and path with exactly one slash between them
func JoinURL(base string, parts ...string) string {
	u := base
	for _, p := range parts {
		if p == "" {
			continue
		}
		switch {
		case len(u) > 0 && u[len(u)-1] == '/' && p[0] == '/':
			u += p[1:]
		case len(u) > 0 && u[len(u)-1] != '/' && p[0] != '/':
			u += "/" + p
		default:
			u += p
		}
	}
	return u
}
