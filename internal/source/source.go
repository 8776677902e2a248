// Package source defines the contract every upstream catalog adapter
// implements, plus the helpers adapters share: HTTP access, type and status
// inference, and tolerant JSON field types.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/util"
)

// Adapter translates one upstream API into the canonical model
type Adapter interface {
	// Key is the configured source key, e.g. "primary"
	Key() string
	// Tag prefixes stored server names so servers of different sources never collide
	Tag() string
	FetchList(ctx context.Context, page int) ([]catalog.MovieSummary, catalog.Pagination, error)
	// FetchDetail returns a *NotFoundError when the upstream has no movie for slug
	FetchDetail(ctx context.Context, slug string) (*catalog.MovieDetail, []catalog.ServerGroup, error)
}

// SourceConfig configures one upstream
type SourceConfig struct {
	Key            string
	Kind           string
	BaseURL        string
	ListPath       string
	DetailPath     string
	Tag            string
	Timeout        time.Duration
	RetryCount     int
	RatePerSec     float64
	Burst          int
	MaxConcurrency int
	Proxy          string
	UserAgent      string
}

const (
	DefaultTimeout    = 20 * time.Second
	DefaultRetryCount = 2
	DefaultUserAgent  = "phimctl/1.0 (+https://github.com/phimhub/ingest)"
)

// WithDefaults fills unset fields
func (c SourceConfig) WithDefaults() SourceConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 1
	}
	if c.Tag == "" {
		c.Tag = c.Key
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// Validate checks the fields every adapter needs
func (c SourceConfig) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("%w: source key is empty", util.ErrInvalidConfig)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("%w: source %s has no base_url", util.ErrInvalidConfig, c.Key)
	}
	return nil
}

// FetchError is a failed upstream call: transport error, non-2xx status or
// an undecodable payload
type FetchError struct {
	Source     string
	URL        string
	StatusCode int
	Decode     bool
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: GET %s: status %d", e.Source, e.URL, e.StatusCode)
	case e.Decode:
		return fmt.Sprintf("%s: GET %s: malformed payload: %v", e.Source, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s: GET %s: %v", e.Source, e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether another attempt may succeed
func (e *FetchError) Temporary() bool {
	if e.StatusCode != 0 {
		return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
	}
	if e.Decode {
		return false
	}
	return util.IsRetryableError(e.Err)
}

// NotFoundError means the detail endpoint has no movie for the slug
type NotFoundError struct {
	Source string
	Slug   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: movie %q not found", e.Source, e.Slug)
}

// Is lets callers match with errors.Is(err, util.ErrNotFound)
func (e *NotFoundError) Is(target error) bool {
	return target == util.ErrNotFound
}

// IsNotFoundStatus reports whether err is a 404 from upstream
func IsNotFoundStatus(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound
}
