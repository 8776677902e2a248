// Package memstore is an in-process catalog.Store. It backs dry runs and the
// pipeline tests; nothing survives the process.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phimhub/ingest/internal/catalog"
)

type assocKey struct {
	join     catalog.JoinTable
	movieID  int64
	entityID int64
}

type episodeKey struct {
	movieID int64
	key     catalog.EpisodeKey
}

// Store keeps every table in maps guarded by one mutex
type Store struct {
	mu sync.Mutex

	nextID   int64
	movies   map[string]*catalog.Movie
	entities map[catalog.Table]map[string]catalog.Term
	years    map[int]int64
	assocs   map[assocKey]struct{}
	episodes map[episodeKey]catalog.Episode
	runs     map[string]*catalog.Run

	batches []int

	// FailOn makes the named operation return an error; used to exercise
	// partial failure paths
	FailOn map[string]error
}

// New returns an empty store
func New() *Store {
	return &Store{
		movies:   make(map[string]*catalog.Movie),
		entities: make(map[catalog.Table]map[string]catalog.Term),
		years:    make(map[int]int64),
		assocs:   make(map[assocKey]struct{}),
		episodes: make(map[episodeKey]catalog.Episode),
		runs:     make(map[string]*catalog.Run),
		FailOn:   make(map[string]error),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) fail(op string) error {
	if err, ok := s.FailOn[op]; ok {
		return err
	}
	return nil
}

func (s *Store) FindMovieBySlug(ctx context.Context, slug string) (*catalog.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FindMovieBySlug"); err != nil {
		return nil, err
	}
	m, ok := s.movies[slug]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) InsertMovie(ctx context.Context, m *catalog.Movie) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertMovie"); err != nil {
		return 0, err
	}
	if _, exists := s.movies[m.Slug]; exists {
		return 0, fmt.Errorf("movie %q already exists", m.Slug)
	}
	cp := *m
	cp.ID = s.id()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.movies[m.Slug] = &cp
	return cp.ID, nil
}

func (s *Store) UpsertBySlug(ctx context.Context, table catalog.Table, slug, name string) (int64, error) {
	if !table.Valid() {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertBySlug"); err != nil {
		return 0, err
	}
	rows, ok := s.entities[table]
	if !ok {
		rows = make(map[string]catalog.Term)
		s.entities[table] = rows
	}
	if t, exists := rows[slug]; exists {
		return t.ID, nil
	}
	t := catalog.Term{ID: s.id(), Slug: slug, Name: name}
	rows[slug] = t
	return t.ID, nil
}

func (s *Store) UpsertYear(ctx context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertYear"); err != nil {
		return 0, err
	}
	if id, ok := s.years[year]; ok {
		return id, nil
	}
	id := s.id()
	s.years[year] = id
	return id, nil
}

func (s *Store) UpsertAssociation(ctx context.Context, join catalog.JoinTable, movieID, entityID int64) (bool, error) {
	if !join.Valid() {
		return false, fmt.Errorf("unknown join table %q", join)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertAssociation"); err != nil {
		return false, err
	}
	k := assocKey{join, movieID, entityID}
	if _, exists := s.assocs[k]; exists {
		return false, nil
	}
	s.assocs[k] = struct{}{}
	return true, nil
}

func (s *Store) ListExistingEpisodeKeys(ctx context.Context, movieID int64) (map[catalog.EpisodeKey]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListExistingEpisodeKeys"); err != nil {
		return nil, err
	}
	keys := make(map[catalog.EpisodeKey]struct{})
	for k := range s.episodes {
		if k.movieID == movieID {
			keys[k.key] = struct{}{}
		}
	}
	return keys, nil
}

// InsertEpisodesBatch inserts chunk by chunk; a row whose key exists is
// ignored the way a unique index with ON CONFLICT DO NOTHING would
func (s *Store) InsertEpisodesBatch(ctx context.Context, rows []catalog.Episode, chunkSize int) (int, error) {
	inserted := 0
	for _, chunk := range catalog.Chunk(rows, chunkSize) {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		s.mu.Lock()
		if err := s.fail("InsertEpisodesBatch"); err != nil {
			s.mu.Unlock()
			return inserted, err
		}
		s.batches = append(s.batches, len(chunk))
		for _, ep := range chunk {
			k := episodeKey{ep.MovieID, ep.Key()}
			if _, exists := s.episodes[k]; exists {
				continue
			}
			ep.ID = s.id()
			s.episodes[k] = ep
			inserted++
		}
		s.mu.Unlock()
	}
	return inserted, nil
}

func (s *Store) StartRun(ctx context.Context, run *catalog.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = catalog.RunRunning
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *Store) UpdateRunProgress(ctx context.Context, run *catalog.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[run.ID]
	if !ok {
		return catalog.ErrNotFound
	}
	if stored.Finished() {
		return catalog.ErrRunFinished
	}
	cp := *run
	cp.Status = catalog.RunRunning
	cp.FinishedAt = nil
	s.runs[run.ID] = &cp
	return nil
}

func (s *Store) FinishRun(ctx context.Context, run *catalog.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[run.ID]
	if !ok {
		return catalog.ErrNotFound
	}
	if stored.Finished() {
		return catalog.ErrRunFinished
	}
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]*catalog.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := make([]*catalog.Run, 0, len(s.runs))
	for _, r := range s.runs {
		cp := *r
		runs = append(runs, &cp)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*catalog.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

// Inspection helpers for tests and dry-run reporting

// Movies returns the stored movies sorted by id
func (s *Store) Movies() []catalog.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Movie, 0, len(s.movies))
	for _, m := range s.movies {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Episodes returns the episodes of one movie sorted by id
func (s *Store) Episodes(movieID int64) []catalog.Episode {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Episode
	for k, ep := range s.episodes {
		if k.movieID == movieID {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Terms returns the rows of an entity table sorted by id
func (s *Store) Terms(table catalog.Table) []catalog.Term {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Term, 0, len(s.entities[table]))
	for _, t := range s.entities[table] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Associations returns the entity ids linked to movieID through join
func (s *Store) Associations(join catalog.JoinTable, movieID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for k := range s.assocs {
		if k.join == join && k.movieID == movieID {
			out = append(out, k.entityID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EpisodeBatches returns the size of every insert chunk seen so far
func (s *Store) EpisodeBatches() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.batches...)
}

var _ catalog.Store = (*Store)(nil)
