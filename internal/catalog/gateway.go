package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/phimhub/ingest/internal/util"
)

var (
	// ErrNotFound is returned by lookups that match no row
	ErrNotFound = fmt.Errorf("catalog: %w", util.ErrNotFound)

	// ErrRunFinished is returned when a finished ledger entry would be changed
	ErrRunFinished = errors.New("catalog: run already finished")
)

// Table names a slug-keyed entity table
type Table string

const (
	TableGenres     Table = "genres"
	TableCountries  Table = "countries"
	TableCategories Table = "categories"
	TableActors     Table = "actors"
	TableDirectors  Table = "directors"
)

// Valid reports whether t is a known entity table
func (t Table) Valid() bool {
	switch t {
	case TableGenres, TableCountries, TableCategories, TableActors, TableDirectors:
		return true
	}
	return false
}

// JoinTable names a movie association table
type JoinTable string

const (
	JoinGenres     JoinTable = "movie_genres"
	JoinCountries  JoinTable = "movie_countries"
	JoinCategories JoinTable = "movie_categories"
	JoinActors     JoinTable = "movie_actors"
	JoinDirectors  JoinTable = "movie_directors"
	JoinYears      JoinTable = "movie_years"
)

// JoinFor returns the association table for an entity table
func JoinFor(t Table) (JoinTable, error) {
	switch t {
	case TableGenres:
		return JoinGenres, nil
	case TableCountries:
		return JoinCountries, nil
	case TableCategories:
		return JoinCategories, nil
	case TableActors:
		return JoinActors, nil
	case TableDirectors:
		return JoinDirectors, nil
	}
	return "", fmt.Errorf("no association table for %q", t)
}

// EntityColumn returns the foreign-key column of the entity side of j
func (j JoinTable) EntityColumn() string {
	switch j {
	case JoinGenres:
		return "genre_id"
	case JoinCountries:
		return "country_id"
	case JoinCategories:
		return "category_id"
	case JoinActors:
		return "actor_id"
	case JoinDirectors:
		return "director_id"
	case JoinYears:
		return "year_id"
	}
	return ""
}

// Valid reports whether j is a known association table
func (j JoinTable) Valid() bool {
	return j.EntityColumn() != ""
}

// Gateway is the persistence contract the ingestion pipeline writes through.
//
// Writes for one movie are a best-effort sequence: a failure part way leaves
// the earlier writes in place.
type Gateway interface {
	// FindMovieBySlug returns ErrNotFound when no movie has the slug
	FindMovieBySlug(ctx context.Context, slug string) (*Movie, error)
	InsertMovie(ctx context.Context, m *Movie) (int64, error)
	// UpsertBySlug inserts the entity if absent and returns its id.
	// An existing row is returned untouched.
	UpsertBySlug(ctx context.Context, table Table, slug, name string) (int64, error)
	// UpsertYear returns the id of the year dimension row for value
	UpsertYear(ctx context.Context, year int) (int64, error)
	// UpsertAssociation links movie and entity; created is false when the pair already existed
	UpsertAssociation(ctx context.Context, join JoinTable, movieID, entityID int64) (created bool, err error)
	ListExistingEpisodeKeys(ctx context.Context, movieID int64) (map[EpisodeKey]struct{}, error)
	// InsertEpisodesBatch writes rows in chunks of chunkSize and returns how many were inserted
	InsertEpisodesBatch(ctx context.Context, rows []Episode, chunkSize int) (int, error)
}

// Store is a full backend: catalog gateway plus run ledger
type Store interface {
	Gateway
	Ledger
	Ping(ctx context.Context) error
	Close() error
}

// DefaultChunkSize bounds one episode insert request
const DefaultChunkSize = 100

// Chunk splits rows into consecutive slices of at most size elements
func Chunk[T any](rows []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]T
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}
