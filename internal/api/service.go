// Package api is the operator HTTP surface: it starts runs in the background,
// exposes the run ledger and resolves listing pages on demand.
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/crawl"
	"github.com/phimhub/ingest/internal/filter"
	"github.com/phimhub/ingest/internal/source"
	"github.com/phimhub/ingest/internal/util"
	"github.com/sirupsen/logrus"
)

// ErrBusy is returned while another run holds the service
var ErrBusy = errors.New("api: a run is already in progress")

// RunRequest describes one run. Either Slugs or a page range must be set.
type RunRequest struct {
	Slugs         []string `json:"slugs"`
	From          int      `json:"from"`
	To            int      `json:"to"`
	Shuffle       bool     `json:"shuffle"`
	SkipFormats   []string `json:"skip_formats"`
	SkipGenres    []string `json:"skip_genres"`
	SkipCountries []string `json:"skip_countries"`
	WaitMinMS     *int     `json:"wait_min_ms"`
	WaitMaxMS     *int     `json:"wait_max_ms"`
	Workers       int      `json:"workers"`
	Label         string   `json:"label"`
}

// Validate checks the request shape
func (r RunRequest) Validate() error {
	if len(r.Slugs) == 0 && r.From == 0 && r.To == 0 {
		return fmt.Errorf("%w: either slugs or from/to is required", util.ErrInvalidInput)
	}
	if len(r.Slugs) > 0 && (r.From != 0 || r.To != 0) {
		return fmt.Errorf("%w: slugs and from/to are exclusive", util.ErrInvalidInput)
	}
	if len(r.Slugs) == 0 && (r.From < 1 || r.To < r.From) {
		return fmt.Errorf("%w: page range %d-%d", util.ErrInvalidInput, r.From, r.To)
	}
	if _, err := filter.ParseFormats(r.SkipFormats); err != nil {
		return err
	}
	return nil
}

// Service runs at most one crawl at a time for one source
type Service struct {
	crawler    *crawl.Crawler
	adapter    source.Adapter
	defaults   crawl.Options
	maxWorkers int
	log        *logrus.Logger

	// ctx outlives requests; cancelling it cancels the active run
	ctx context.Context

	mu     sync.Mutex
	active bool
	wg     sync.WaitGroup
}

// NewService builds a service. maxWorkers caps the workers a request may ask for.
func NewService(ctx context.Context, c *crawl.Crawler, adapter source.Adapter, defaults crawl.Options, maxWorkers int) *Service {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Service{
		crawler:    c,
		adapter:    adapter,
		defaults:   defaults,
		maxWorkers: maxWorkers,
		log:        util.Logger(),
		ctx:        ctx,
	}
}

func (s *Service) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return false
	}
	s.active = true
	return true
}

func (s *Service) release() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// Busy reports whether a run is in progress
func (s *Service) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// options merges the request over the configured defaults
func (s *Service) options(req RunRequest) crawl.Options {
	opts := s.defaults
	if req.Label != "" {
		opts.Label = req.Label
	}
	if len(req.SkipFormats) > 0 {
		// checked by Validate
		opts.Filter.SkipFormats, _ = filter.ParseFormats(req.SkipFormats)
	}
	if len(req.SkipGenres) > 0 {
		opts.Filter.SkipGenres = req.SkipGenres
	}
	if len(req.SkipCountries) > 0 {
		opts.Filter.SkipCountries = req.SkipCountries
	}
	if req.WaitMinMS != nil {
		opts.WaitMin = time.Duration(*req.WaitMinMS) * time.Millisecond
	}
	if req.WaitMaxMS != nil {
		opts.WaitMax = time.Duration(*req.WaitMaxMS) * time.Millisecond
	}
	if req.Workers > 0 {
		opts.Workers = req.Workers
	}
	if opts.Workers > s.maxWorkers {
		opts.Workers = s.maxWorkers
	}
	return opts
}

// Execute runs req to completion on the caller's goroutine
func (s *Service) Execute(ctx context.Context, req RunRequest) (*crawl.RunSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.acquire() {
		return nil, ErrBusy
	}
	defer s.release()
	return s.execute(ctx, req, s.options(req))
}

func (s *Service) execute(ctx context.Context, req RunRequest, opts crawl.Options) (*crawl.RunSummary, error) {
	switch {
	case len(req.Slugs) > 0:
		list := req.Slugs
		if req.Shuffle {
			list = crawl.Shuffle(list, nil)
		}
		return s.crawler.Run(ctx, list, opts)

	default:
		opts.Shuffle = req.Shuffle
		return s.crawler.RunPages(ctx, req.From, req.To, opts)
	}
}

// Start launches req in the background and returns its ledger id once the
// entry exists. Errors before that point are returned directly.
func (s *Service) Start(req RunRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if !s.acquire() {
		return "", ErrBusy
	}

	opts := s.options(req)
	started := make(chan string, 1)
	opts.Started = func(id string) { started <- id }
	failed := make(chan error, 1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()

		summary, err := s.execute(s.ctx, req, opts)
		if err != nil {
			s.log.WithError(err).Warn("background run failed")
			failed <- err
			return
		}
		s.log.WithFields(logrus.Fields{
			"run_id":   summary.RunID,
			"status":   summary.Status,
			"added":    summary.Added,
			"updated":  summary.Updated,
			"failed":   summary.Failed,
			"episodes": summary.EpisodesAdded,
		}).Info("background run finished")
	}()

	select {
	case id := <-started:
		return id, nil
	case err := <-failed:
		select {
		case id := <-started:
			return id, nil
		default:
		}
		return "", err
	}
}

// Wait blocks until background runs have returned
func (s *Service) Wait() {
	s.wg.Wait()
}

// Resolve returns the slugs of listing pages from..to
func (s *Service) Resolve(ctx context.Context, from, to int) ([]string, error) {
	return crawl.ResolveList(ctx, s.adapter, from, to, nil)
}

// Ledger is the subset of the store the handlers read
type Ledger interface {
	ListRuns(ctx context.Context, limit int) ([]*catalog.Run, error)
	GetRun(ctx context.Context, id string) (*catalog.Run, error)
	Ping(ctx context.Context) error
}
