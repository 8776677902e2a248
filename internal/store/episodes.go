package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/phimhub/ingest/internal/catalog"
)

const episodeColumns = "(movie_id, server_name, name, slug, filename, link_m3u8, link_embed, link_mp4)"

// ListExistingEpisodeKeys returns the (server_name, slug) keys stored for a movie
func (s *Store) ListExistingEpisodeKeys(ctx context.Context, movieID int64) (map[catalog.EpisodeKey]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT server_name, slug FROM episodes WHERE movie_id = ?
	`, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[catalog.EpisodeKey]struct{})
	for rows.Next() {
		var k catalog.EpisodeKey
		if err := rows.Scan(&k.ServerName, &k.Slug); err != nil {
			return nil, err
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

// InsertEpisodesBatch writes rows as one multi-row INSERT per chunk, each in
// its own transaction. Rows whose key already exists are ignored. A failing
// chunk leaves earlier chunks committed.
func (s *Store) InsertEpisodesBatch(ctx context.Context, rows []catalog.Episode, chunkSize int) (int, error) {
	inserted := 0
	for i, chunk := range catalog.Chunk(rows, chunkSize) {
		err := s.Transaction(ctx, func(tx *sql.Tx) error {
			query, args := episodeInsert(chunk)
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
			return nil
		})
		if err != nil {
			return inserted, fmt.Errorf("episode chunk %d: %w", i+1, err)
		}
	}
	return inserted, nil
}

func episodeInsert(chunk []catalog.Episode) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO episodes ")
	b.WriteString(episodeColumns)
	b.WriteString(" VALUES ")

	args := make([]any, 0, len(chunk)*8)
	for i, ep := range chunk {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, ep.MovieID, ep.ServerName, ep.Name, ep.Slug, ep.Filename, ep.LinkM3U8, ep.LinkEmbed, ep.LinkMP4)
	}
	b.WriteString(" ON CONFLICT(movie_id, server_name, slug) DO NOTHING")
	return b.String(), args
}

// ListEpisodes returns the stored episodes of a movie ordered by id
func (s *Store) ListEpisodes(ctx context.Context, movieID int64) ([]catalog.Episode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, movie_id, server_name, name, slug, filename, link_m3u8, link_embed, link_mp4
		FROM episodes
		WHERE movie_id = ?
		ORDER BY id
	`, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eps []catalog.Episode
	for rows.Next() {
		var ep catalog.Episode
		if err := rows.Scan(&ep.ID, &ep.MovieID, &ep.ServerName, &ep.Name, &ep.Slug, &ep.Filename,
			&ep.LinkM3U8, &ep.LinkEmbed, &ep.LinkMP4); err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, rows.Err()
}
