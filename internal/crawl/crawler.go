// Package crawl drives ingestion runs: it resolves a work list, fetches each
// item through a source adapter, gates it with the filter rules, persists the
// movie with its associations and new episodes, and keeps the run ledger.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/phimhub/ingest/internal/asset"
	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/filter"
	"github.com/phimhub/ingest/internal/reconcile"
	"github.com/phimhub/ingest/internal/report"
	"github.com/phimhub/ingest/internal/slug"
	"github.com/phimhub/ingest/internal/source"
	"github.com/phimhub/ingest/internal/util"
	"github.com/sourcegraph/conc/pool"
)

// Options configure one run
type Options struct {
	// Label is stored as the ledger entry type
	Label   string
	Filter  filter.Rules
	WaitMin time.Duration
	WaitMax time.Duration
	// Workers > 1 processes items in parallel; 1 keeps strict work-list order
	Workers int
	// Shuffle randomizes the resolved page list before processing
	Shuffle bool
	// Started, when set, receives the ledger id as soon as the entry exists
	Started func(runID string)
}

// Crawler runs work lists against one source and one store
type Crawler struct {
	adapter    source.Adapter
	store      catalog.Store
	reconciler *reconcile.Reconciler
	assets     asset.Policy
	events     *report.EventLogger
	progress   ProgressFunc
	sleep      func(ctx context.Context, d time.Duration) error
	rng        *rand.Rand

	slugLocks util.KeyedMutex[string]
}

// Option customizes a Crawler
type Option func(*Crawler)

// WithAssets sets the image policy consulted before a new movie is inserted
func WithAssets(p asset.Policy) Option {
	return func(c *Crawler) { c.assets = p }
}

// WithEvents sets the JSONL event log
func WithEvents(l *report.EventLogger) Option {
	return func(c *Crawler) { c.events = l }
}

// WithProgress sets the progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(c *Crawler) { c.progress = fn }
}

// WithChunkSize sets the episode insert chunk size
func WithChunkSize(n int) Option {
	return func(c *Crawler) { c.reconciler = reconcile.New(c.store, n) }
}

// WithSleep replaces the delay implementation
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Crawler) { c.sleep = fn }
}

// WithRand sets the random source used for delays
func WithRand(r *rand.Rand) Option {
	return func(c *Crawler) { c.rng = r }
}

// New builds a crawler
func New(adapter source.Adapter, store catalog.Store, opts ...Option) *Crawler {
	c := &Crawler{
		adapter: adapter,
		store:   store,
		assets:  asset.Passthrough{},
		sleep:   sleepCtx,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	c.reconciler = reconcile.New(store, catalog.DefaultChunkSize)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes a list of slugs or movie URLs
func (c *Crawler) Run(ctx context.Context, inputs []string, opts Options) (*RunSummary, error) {
	start := time.Now()
	if opts.Label == "" {
		opts.Label = fmt.Sprintf("list of %d", len(inputs))
	}

	run := &catalog.Run{Type: opts.Label, Source: c.adapter.Key(), Total: len(inputs)}
	if err := c.store.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	_ = c.events.LogRunStart(run)
	if opts.Started != nil {
		opts.Started(run.ID)
	}

	summary := c.process(ctx, run, inputs, opts)
	return c.finish(ctx, run, summary, start, nil)
}

// RunPages resolves listing pages from..to and processes the slugs found.
// A resolution failure finishes the ledger entry with status error.
func (c *Crawler) RunPages(ctx context.Context, from, to int, opts Options) (*RunSummary, error) {
	start := time.Now()
	if opts.Label == "" {
		opts.Label = fmt.Sprintf("pages %d-%d", from, to)
		if opts.Shuffle {
			opts.Label += " shuffled"
		}
	}

	run := &catalog.Run{Type: opts.Label, Source: c.adapter.Key()}
	if err := c.store.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	_ = c.events.LogRunStart(run)
	if opts.Started != nil {
		opts.Started(run.ID)
	}

	slugs, err := ResolveList(ctx, c.adapter, from, to, c.events)
	if err != nil {
		summary := &RunSummary{}
		return c.finish(ctx, run, summary, start, fmt.Errorf("resolve work list: %w", err))
	}
	if opts.Shuffle {
		slugs = Shuffle(slugs, c.rng)
	}

	run.Total = len(slugs)
	summary := c.process(ctx, run, slugs, opts)
	return c.finish(ctx, run, summary, start, nil)
}

func (c *Crawler) process(ctx context.Context, run *catalog.Run, inputs []string, opts Options) *RunSummary {
	engine := filter.New(opts.Filter)
	summary := &RunSummary{Total: len(inputs)}
	results := make([]*ItemResult, len(inputs))

	var mu sync.Mutex
	record := func(r *ItemResult) {
		mu.Lock()
		defer mu.Unlock()

		results[r.Index] = r
		summary.add(*r)
		copyCounters(run, summary)
		if err := c.store.UpdateRunProgress(context.WithoutCancel(ctx), run); err != nil {
			util.WarnLog("run %s: progress update failed: %v", run.ID, err)
		}
		_ = c.events.LogItem(run.ID, r.Line())
		if c.progress != nil {
			c.progress(Progress{
				Processed:   summary.Processed,
				Total:       summary.Total,
				CurrentSlug: r.Line().Slug,
				Last:        *r,
			})
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	if workers == 1 {
		for i, input := range inputs {
			if i > 0 {
				if err := c.wait(ctx, opts); err != nil {
					break
				}
			}
			if ctx.Err() != nil {
				break
			}
			r, ok := c.processItem(ctx, engine, i, input)
			if !ok {
				break
			}
			record(r)
		}
	} else {
		// The dispatcher applies the delay, so the upstream sees the same
		// request spacing as in sequential mode
		p := pool.New().WithMaxGoroutines(workers)
		for i, input := range inputs {
			if i > 0 {
				if err := c.wait(ctx, opts); err != nil {
					break
				}
			}
			if ctx.Err() != nil {
				break
			}
			p.Go(func() {
				if r, ok := c.processItem(ctx, engine, i, input); ok {
					record(r)
				}
			})
		}
		p.Wait()
	}

	summary.collect(results)
	return summary
}

// processItem runs one work item. ok is false when ctx was cancelled before
// the item produced an outcome.
func (c *Crawler) processItem(ctx context.Context, engine *filter.Engine, index int, input string) (res *ItemResult, ok bool) {
	started := time.Now()
	res = &ItemResult{Index: index, Input: input}
	done := func(outcome Outcome, err error) (*ItemResult, bool) {
		res.Outcome = outcome
		res.Err = err
		res.Duration = time.Since(started)
		res.At = time.Now()
		return res, true
	}

	s, err := slug.FromURL(input)
	if err != nil {
		return done(OutcomeError, &InvalidInputError{Input: input, Err: err})
	}
	res.Slug = s

	if ctx.Err() != nil {
		return nil, false
	}
	detail, groups, err := c.adapter.FetchDetail(ctx, s)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		return done(OutcomeError, err)
	}
	// The upstream slug becomes the natural key only when already canonical
	if up := detail.Movie.Slug; up == "" || slug.Slugify(up) != up {
		if up != "" {
			util.DebugLog("%s: ignoring non-canonical upstream slug %q", s, up)
		}
		detail.Movie.Slug = s
	}
	res.Slug = detail.Movie.Slug

	if engine.Apply(detail) {
		return done(OutcomeSkipped, &FilteredOutError{Slug: res.Slug, Type: detail.Movie.Type})
	}

	unlock := c.slugLocks.Lock(detail.Movie.Slug)
	defer unlock()

	outcome, err := c.persist(ctx, detail, groups, res)
	if err != nil {
		return done(OutcomeError, err)
	}
	return done(outcome, nil)
}

// persist writes one movie as a best-effort sequence: the movie row, its
// associations, then new episodes. Nothing is rolled back on failure.
func (c *Crawler) persist(ctx context.Context, detail *catalog.MovieDetail, groups []catalog.ServerGroup, res *ItemResult) (Outcome, error) {
	m := &detail.Movie

	created := false
	existing, err := c.store.FindMovieBySlug(ctx, m.Slug)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		c.applyAssets(ctx, m)
		id, err := c.store.InsertMovie(ctx, m)
		if err != nil {
			return OutcomeError, &PersistenceError{Op: "insert movie", Slug: m.Slug, Err: err}
		}
		m.ID = id
		created = true
	case err != nil:
		return OutcomeError, &PersistenceError{Op: "find movie", Slug: m.Slug, Err: err}
	default:
		// Stored informational fields are never overwritten
		m.ID = existing.ID
	}
	res.MovieID = m.ID

	links, err := c.linkAll(ctx, detail)
	res.AssociationsAdded = links
	if err != nil {
		return OutcomeError, err
	}

	rec, err := c.reconciler.Reconcile(ctx, m.ID, groups, c.adapter.Tag())
	res.EpisodesAdded = rec.Inserted
	if err != nil {
		return OutcomeError, &PersistenceError{Op: "episodes", Slug: m.Slug, Err: err}
	}

	switch {
	case created:
		return OutcomeSuccess, nil
	case links > 0 || rec.Inserted > 0:
		return OutcomeUpdated, nil
	default:
		return OutcomeUnchanged, nil
	}
}

// linkAll upserts every related entity and links it to the movie. It returns
// how many links were new.
func (c *Crawler) linkAll(ctx context.Context, detail *catalog.MovieDetail) (int, error) {
	m := &detail.Movie
	groups := []struct {
		table catalog.Table
		names []string
	}{
		{catalog.TableCategories, []string{m.Type.Label()}},
		{catalog.TableGenres, detail.Genres},
		{catalog.TableCountries, detail.Countries},
		{catalog.TableActors, detail.Actors},
		{catalog.TableDirectors, detail.Directors},
	}

	added := 0
	for _, g := range groups {
		join, err := catalog.JoinFor(g.table)
		if err != nil {
			return added, err
		}

		seen := make(map[string]struct{})
		for _, name := range g.names {
			key := slug.Slugify(name)
			if g.table == catalog.TableCategories {
				key = string(m.Type)
			}
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			id, err := c.store.UpsertBySlug(ctx, g.table, key, name)
			if err != nil {
				return added, &PersistenceError{Op: "upsert " + string(g.table), Slug: m.Slug, Err: err}
			}
			created, err := c.store.UpsertAssociation(ctx, join, m.ID, id)
			if err != nil {
				return added, &PersistenceError{Op: "link " + string(join), Slug: m.Slug, Err: err}
			}
			if created {
				added++
			}
		}
	}

	if m.Year != nil && *m.Year > 0 {
		id, err := c.store.UpsertYear(ctx, *m.Year)
		if err != nil {
			return added, &PersistenceError{Op: "upsert year", Slug: m.Slug, Err: err}
		}
		created, err := c.store.UpsertAssociation(ctx, catalog.JoinYears, m.ID, id)
		if err != nil {
			return added, &PersistenceError{Op: "link movie_years", Slug: m.Slug, Err: err}
		}
		if created {
			added++
		}
	}
	return added, nil
}

func (c *Crawler) applyAssets(ctx context.Context, m *catalog.Movie) {
	if c.assets == nil {
		return
	}
	for _, slot := range []struct {
		kind asset.Kind
		url  *string
	}{
		{asset.KindPoster, &m.PosterURL},
		{asset.KindThumb, &m.ThumbURL},
	} {
		src := *slot.url
		out, err := c.assets.Process(ctx, m.Slug, slot.kind, src)
		if err != nil {
			util.WarnLog("asset: %v (keeping upstream url)", err)
			_ = c.events.LogAsset(m.Slug, src, err)
		}
		*slot.url = out
	}
}

func (c *Crawler) finish(ctx context.Context, run *catalog.Run, summary *RunSummary, start time.Time, cause error) (*RunSummary, error) {
	summary.Duration = time.Since(start)
	run.Duration = summary.Duration
	copyCounters(run, summary)

	switch {
	case cause != nil && ctx.Err() == nil:
		run.Status = catalog.RunError
		run.Message = cause.Error()
	case ctx.Err() != nil:
		// Includes cancellation landing inside the last item's writes
		run.Status = catalog.RunCancelled
		run.Message = fmt.Sprintf("cancelled after %d of %d items", summary.Processed, summary.Total)
	default:
		run.Status = catalog.RunSuccess
		run.Message = failureMessage(summary)
	}
	summary.RunID = run.ID
	summary.Status = run.Status

	if err := c.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		return summary, fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	_ = c.events.LogRunFinish(run)

	util.DebugLog("run %s finished: %s in %v", run.ID, run.Status, run.Duration)
	if run.Status == catalog.RunError {
		return summary, cause
	}
	return summary, nil
}

func copyCounters(run *catalog.Run, s *RunSummary) {
	run.Total = s.Total
	run.MoviesAdded = s.Added
	run.MoviesUpdated = s.Updated
	run.MoviesSkipped = s.Skipped
	run.MoviesFailed = s.Failed
	run.EpisodesAdded = s.EpisodesAdded
}

const maxMessageLen = 500

func failureMessage(s *RunSummary) string {
	if s.Failed == 0 && s.Skipped == 0 {
		return ""
	}
	msg := fmt.Sprintf("%d failed, %d skipped", s.Failed, s.Skipped)
	for _, r := range s.Results {
		if r.Outcome == OutcomeError {
			msg += fmt.Sprintf("; first error: %s: %s", r.Line().Slug, r.Message())
			break
		}
	}
	return truncate(msg, maxMessageLen)
}

// truncate shortens s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func (c *Crawler) wait(ctx context.Context, opts Options) error {
	d := randomDelay(opts.WaitMin, opts.WaitMax, c.rng)
	if d <= 0 {
		return ctx.Err()
	}
	return c.sleep(ctx, d)
}

// randomDelay draws uniformly from [lo, hi]
func randomDelay(lo, hi time.Duration, rng *rand.Rand) time.Duration {
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo < 0 {
		lo = 0
	}
	span := hi - lo
	if span <= 0 {
		return lo
	}
	return lo + time.Duration(rng.Int64N(int64(span)+1))
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
