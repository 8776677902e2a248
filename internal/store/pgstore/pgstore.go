// Package pgstore is the PostgreSQL backend of the catalog gateway and run
// ledger, built on gorm.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/util"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Config holds the connection settings
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool
}

// Store implements catalog.Store on PostgreSQL
type Store struct {
	db *gorm.DB
}

var _ catalog.Store = (*Store)(nil)

var termTables = []catalog.Table{
	catalog.TableGenres,
	catalog.TableCountries,
	catalog.TableCategories,
	catalog.TableActors,
	catalog.TableDirectors,
}

var joinTables = []struct {
	join   catalog.JoinTable
	entity string
}{
	{catalog.JoinGenres, "genres"},
	{catalog.JoinCountries, "countries"},
	{catalog.JoinCategories, "categories"},
	{catalog.JoinActors, "actors"},
	{catalog.JoinDirectors, "directors"},
	{catalog.JoinYears, "years"},
}

// Open connects, configures the pool and migrates the schema
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres dsn is empty", util.ErrInvalidConfig)
	}

	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.LogSQL {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(&movieRow{}, &yearRow{}, &episodeRow{}, &runRow{}); err != nil {
		return err
	}
	for _, t := range termTables {
		if err := s.db.Table(string(t)).AutoMigrate(&termRow{}); err != nil {
			return fmt.Errorf("migrate %s: %w", t, err)
		}
	}
	for _, j := range joinTables {
		col := j.join.EntityColumn()
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			movie_id BIGINT NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
			%s BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			PRIMARY KEY (movie_id, %s)
		)`, j.join, col, j.entity, col)
		if err := s.db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("migrate %s: %w", j.join, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) FindMovieBySlug(ctx context.Context, slug string) (*catalog.Movie, error) {
	var row movieRow
	err := s.db.WithContext(ctx).Where("slug = ?", slug).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toMovie(), nil
}

func (s *Store) InsertMovie(ctx context.Context, m *catalog.Movie) (int64, error) {
	row := toMovieRow(m)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, fmt.Errorf("insert movie %s: %w", m.Slug, err)
	}
	return row.ID, nil
}

// UpsertBySlug inserts the entity if the slug is new; an existing row keeps its name
func (s *Store) UpsertBySlug(ctx context.Context, table catalog.Table, slug, name string) (int64, error) {
	if !table.Valid() {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	db := s.db.WithContext(ctx)

	row := termRow{Slug: slug, Name: name}
	if err := db.Table(string(table)).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("upsert %s %s: %w", table, slug, err)
	}
	if row.ID != 0 {
		return row.ID, nil
	}

	var existing termRow
	if err := db.Table(string(table)).Select("id").Where("slug = ?", slug).Take(&existing).Error; err != nil {
		return 0, err
	}
	return existing.ID, nil
}

func (s *Store) UpsertYear(ctx context.Context, year int) (int64, error) {
	db := s.db.WithContext(ctx)

	row := yearRow{Year: year}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "year"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("upsert year %d: %w", year, err)
	}
	if row.ID != 0 {
		return row.ID, nil
	}

	var existing yearRow
	if err := db.Select("id").Where("year = ?", year).Take(&existing).Error; err != nil {
		return 0, err
	}
	return existing.ID, nil
}

func (s *Store) UpsertAssociation(ctx context.Context, join catalog.JoinTable, movieID, entityID int64) (bool, error) {
	if !join.Valid() {
		return false, fmt.Errorf("unknown join table %q", join)
	}

	res := s.db.WithContext(ctx).Table(string(join)).Clauses(clause.OnConflict{DoNothing: true}).
		Create(map[string]any{"movie_id": movieID, join.EntityColumn(): entityID})
	if res.Error != nil {
		return false, fmt.Errorf("link %s %d-%d: %w", join, movieID, entityID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) ListExistingEpisodeKeys(ctx context.Context, movieID int64) (map[catalog.EpisodeKey]struct{}, error) {
	var rows []episodeRow
	if err := s.db.WithContext(ctx).Select("server_name", "slug").
		Where("movie_id = ?", movieID).Find(&rows).Error; err != nil {
		return nil, err
	}

	keys := make(map[catalog.EpisodeKey]struct{}, len(rows))
	for _, r := range rows {
		keys[catalog.EpisodeKey{ServerName: r.ServerName, Slug: r.Slug}] = struct{}{}
	}
	return keys, nil
}

// InsertEpisodesBatch writes each chunk in its own transaction; rows whose
// key exists are ignored
func (s *Store) InsertEpisodesBatch(ctx context.Context, rows []catalog.Episode, chunkSize int) (int, error) {
	inserted := 0
	for i, chunk := range catalog.Chunk(rows, chunkSize) {
		batch := toEpisodeRows(chunk)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "movie_id"}, {Name: "server_name"}, {Name: "slug"}},
				DoNothing: true,
			}).Create(&batch)
			if res.Error != nil {
				return res.Error
			}
			inserted += int(res.RowsAffected)
			return nil
		})
		if err != nil {
			return inserted, fmt.Errorf("episode chunk %d: %w", i+1, err)
		}
	}
	return inserted, nil
}

func (s *Store) StartRun(ctx context.Context, run *catalog.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = catalog.RunRunning
	run.FinishedAt = nil
	return s.db.WithContext(ctx).Create(toRunRow(run)).Error
}

func (s *Store) UpdateRunProgress(ctx context.Context, run *catalog.Run) error {
	res := s.db.WithContext(ctx).Model(&runRow{}).
		Where("id = ? AND status = ?", run.ID, string(catalog.RunRunning)).
		Updates(map[string]any{
			"total":          run.Total,
			"movies_added":   run.MoviesAdded,
			"movies_updated": run.MoviesUpdated,
			"movies_skipped": run.MoviesSkipped,
			"movies_failed":  run.MoviesFailed,
			"episodes_added": run.EpisodesAdded,
			"duration_ms":    run.Duration.Milliseconds(),
		})
	if res.Error != nil {
		return res.Error
	}
	return s.checkRunWrite(ctx, res.RowsAffected, run.ID)
}

func (s *Store) FinishRun(ctx context.Context, run *catalog.Run) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}
	res := s.db.WithContext(ctx).Model(&runRow{}).
		Where("id = ? AND status = ?", run.ID, string(catalog.RunRunning)).
		Updates(map[string]any{
			"status":         string(run.Status),
			"total":          run.Total,
			"movies_added":   run.MoviesAdded,
			"movies_updated": run.MoviesUpdated,
			"movies_skipped": run.MoviesSkipped,
			"movies_failed":  run.MoviesFailed,
			"episodes_added": run.EpisodesAdded,
			"duration_ms":    run.Duration.Milliseconds(),
			"message":        run.Message,
			"finished_at":    *run.FinishedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	return s.checkRunWrite(ctx, res.RowsAffected, run.ID)
}

func (s *Store) checkRunWrite(ctx context.Context, affected int64, id string) error {
	if affected > 0 {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&runRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return catalog.ErrNotFound
	}
	return catalog.ErrRunFinished
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]*catalog.Run, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []runRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]*catalog.Run, len(rows))
	for i := range rows {
		runs[i] = rows[i].toRun()
	}
	return runs, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*catalog.Run, error) {
	var row runRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toRun(), nil
}
