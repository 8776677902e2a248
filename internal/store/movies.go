package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/phimhub/ingest/internal/catalog"
)

// FindMovieBySlug returns catalog.ErrNotFound when no movie has the slug
func (s *Store) FindMovieBySlug(ctx context.Context, slug string) (*catalog.Movie, error) {
	var m catalog.Movie
	var year sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, origin_name, poster_url, thumb_url, type, status, year,
		       quality, lang, time, episode_current, episode_total, trailer_url, content, created_at
		FROM movies
		WHERE slug = ?
	`, slug).Scan(&m.ID, &m.Slug, &m.Name, &m.OriginName, &m.PosterURL, &m.ThumbURL, &m.Type, &m.Status, &year,
		&m.Quality, &m.Lang, &m.Time, &m.EpisodeCurrent, &m.EpisodeTotal, &m.TrailerURL, &m.Content, &m.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if year.Valid {
		y := int(year.Int64)
		m.Year = &y
	}
	return &m, nil
}

// InsertMovie inserts a new movie row and returns its id. It fails when the
// slug already exists; stored movies are never overwritten.
func (s *Store) InsertMovie(ctx context.Context, m *catalog.Movie) (int64, error) {
	var year sql.NullInt64
	if m.Year != nil {
		year = sql.NullInt64{Int64: int64(*m.Year), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO movies
		(slug, name, origin_name, poster_url, thumb_url, type, status, year,
		 quality, lang, time, episode_current, episode_total, trailer_url, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.Slug, m.Name, m.OriginName, m.PosterURL, m.ThumbURL, string(m.Type), string(m.Status), year,
		m.Quality, m.Lang, m.Time, m.EpisodeCurrent, m.EpisodeTotal, m.TrailerURL, m.Content)
	if err != nil {
		return 0, fmt.Errorf("insert movie %s: %w", m.Slug, err)
	}

	return res.LastInsertId()
}

// CountMovies returns the number of stored movies
func (s *Store) CountMovies(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM movies").Scan(&count)
	return count, err
}

// UpsertBySlug inserts the entity when the slug is new and returns the id of
// the stored row. The name of an existing row is left as is.
func (s *Store) UpsertBySlug(ctx context.Context, table catalog.Table, slug, name string) (int64, error) {
	if !table.Valid() {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return 0, fmt.Errorf("empty slug for %s", table)
	}

	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (slug, name) VALUES (?, ?) ON CONFLICT(slug) DO NOTHING", table),
		slug, name); err != nil {
		return 0, fmt.Errorf("upsert %s %s: %w", table, slug, err)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE slug = ?", table), slug).Scan(&id)
	return id, err
}

// UpsertYear returns the id of the year row for value
func (s *Store) UpsertYear(ctx context.Context, year int) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO years (year) VALUES (?) ON CONFLICT(year) DO NOTHING", year); err != nil {
		return 0, fmt.Errorf("upsert year %d: %w", year, err)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM years WHERE year = ?", year).Scan(&id)
	return id, err
}

// UpsertAssociation links a movie to an entity; created is false when the
// pair already existed
func (s *Store) UpsertAssociation(ctx context.Context, join catalog.JoinTable, movieID, entityID int64) (bool, error) {
	if !join.Valid() {
		return false, fmt.Errorf("unknown join table %q", join)
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (movie_id, %s) VALUES (?, ?) ON CONFLICT DO NOTHING", join, join.EntityColumn()),
		movieID, entityID)
	if err != nil {
		return false, fmt.Errorf("link %s %d-%d: %w", join, movieID, entityID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListTerms returns the rows of an entity table ordered by id
func (s *Store) ListTerms(ctx context.Context, table catalog.Table) ([]catalog.Term, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, slug, name FROM %s ORDER BY id", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terms []catalog.Term
	for rows.Next() {
		var t catalog.Term
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// CountAssociations returns how many entities movieID is linked to through join
func (s *Store) CountAssociations(ctx context.Context, join catalog.JoinTable, movieID int64) (int, error) {
	if !join.Valid() {
		return 0, fmt.Errorf("unknown join table %q", join)
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE movie_id = ?", join), movieID).Scan(&count)
	return count, err
}
