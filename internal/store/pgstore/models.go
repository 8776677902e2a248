package pgstore

import (
	"time"

	"github.com/phimhub/ingest/internal/catalog"
)

type movieRow struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Slug           string    `gorm:"column:slug;type:varchar(255);uniqueIndex;not null"`
	Name           string    `gorm:"column:name;type:text;not null;default:''"`
	OriginName     string    `gorm:"column:origin_name;type:text;not null;default:''"`
	PosterURL      string    `gorm:"column:poster_url;type:text;not null;default:''"`
	ThumbURL       string    `gorm:"column:thumb_url;type:text;not null;default:''"`
	Type           string    `gorm:"column:type;type:varchar(16);not null;default:series;index"`
	Status         string    `gorm:"column:status;type:varchar(16);not null;default:ongoing"`
	Year           *int      `gorm:"column:year"`
	Quality        string    `gorm:"column:quality;type:varchar(64);not null;default:''"`
	Lang           string    `gorm:"column:lang;type:varchar(64);not null;default:''"`
	Time           string    `gorm:"column:time;type:varchar(64);not null;default:''"`
	EpisodeCurrent string    `gorm:"column:episode_current;type:varchar(128);not null;default:''"`
	EpisodeTotal   string    `gorm:"column:episode_total;type:varchar(128);not null;default:''"`
	TrailerURL     string    `gorm:"column:trailer_url;type:text;not null;default:''"`
	Content        string    `gorm:"column:content;type:text;not null;default:''"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;default:now()"`
}

func (movieRow) TableName() string { return "movies" }

// termRow is shared by every slug keyed table; callers pick the table with db.Table
type termRow struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Slug string `gorm:"column:slug;type:varchar(255);uniqueIndex;not null"`
	Name string `gorm:"column:name;type:text;not null"`
}

type yearRow struct {
	ID   int64 `gorm:"column:id;primaryKey;autoIncrement"`
	Year int   `gorm:"column:year;uniqueIndex;not null"`
}

func (yearRow) TableName() string { return "years" }

type episodeRow struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	MovieID    int64     `gorm:"column:movie_id;not null;uniqueIndex:uq_episode_key,priority:1;index"`
	ServerName string    `gorm:"column:server_name;type:varchar(255);not null;uniqueIndex:uq_episode_key,priority:2"`
	Name       string    `gorm:"column:name;type:varchar(255);not null;default:''"`
	Slug       string    `gorm:"column:slug;type:varchar(255);not null;uniqueIndex:uq_episode_key,priority:3"`
	Filename   string    `gorm:"column:filename;type:text;not null;default:''"`
	LinkM3U8   string    `gorm:"column:link_m3u8;type:text;not null;default:''"`
	LinkEmbed  string    `gorm:"column:link_embed;type:text;not null;default:''"`
	LinkMP4    string    `gorm:"column:link_mp4;type:text;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;default:now()"`
}

func (episodeRow) TableName() string { return "episodes" }

type runRow struct {
	ID            string     `gorm:"column:id;type:varchar(36);primaryKey"`
	Type          string     `gorm:"column:type;type:text;not null;default:''"`
	Source        string     `gorm:"column:source;type:varchar(64);not null;default:''"`
	Status        string     `gorm:"column:status;type:varchar(16);not null;index"`
	Total         int        `gorm:"column:total;not null;default:0"`
	MoviesAdded   int        `gorm:"column:movies_added;not null;default:0"`
	MoviesUpdated int        `gorm:"column:movies_updated;not null;default:0"`
	MoviesSkipped int        `gorm:"column:movies_skipped;not null;default:0"`
	MoviesFailed  int        `gorm:"column:movies_failed;not null;default:0"`
	EpisodesAdded int        `gorm:"column:episodes_added;not null;default:0"`
	DurationMs    int64      `gorm:"column:duration_ms;not null;default:0"`
	Message       string     `gorm:"column:message;type:text;not null;default:''"`
	StartedAt     time.Time  `gorm:"column:started_at;type:timestamptz;not null;index"`
	FinishedAt    *time.Time `gorm:"column:finished_at;type:timestamptz"`
}

func (runRow) TableName() string { return "runs" }

func toMovieRow(m *catalog.Movie) *movieRow {
	return &movieRow{
		Slug:           m.Slug,
		Name:           m.Name,
		OriginName:     m.OriginName,
		PosterURL:      m.PosterURL,
		ThumbURL:       m.ThumbURL,
		Type:           string(m.Type),
		Status:         string(m.Status),
		Year:           m.Year,
		Quality:        m.Quality,
		Lang:           m.Lang,
		Time:           m.Time,
		EpisodeCurrent: m.EpisodeCurrent,
		EpisodeTotal:   m.EpisodeTotal,
		TrailerURL:     m.TrailerURL,
		Content:        m.Content,
	}
}

func (r *movieRow) toMovie() *catalog.Movie {
	return &catalog.Movie{
		ID:             r.ID,
		Slug:           r.Slug,
		Name:           r.Name,
		OriginName:     r.OriginName,
		PosterURL:      r.PosterURL,
		ThumbURL:       r.ThumbURL,
		Type:           catalog.MovieType(r.Type),
		Status:         catalog.MovieStatus(r.Status),
		Year:           r.Year,
		Quality:        r.Quality,
		Lang:           r.Lang,
		Time:           r.Time,
		EpisodeCurrent: r.EpisodeCurrent,
		EpisodeTotal:   r.EpisodeTotal,
		TrailerURL:     r.TrailerURL,
		Content:        r.Content,
		CreatedAt:      r.CreatedAt,
	}
}

func toEpisodeRows(eps []catalog.Episode) []episodeRow {
	rows := make([]episodeRow, len(eps))
	for i, ep := range eps {
		rows[i] = episodeRow{
			MovieID:    ep.MovieID,
			ServerName: ep.ServerName,
			Name:       ep.Name,
			Slug:       ep.Slug,
			Filename:   ep.Filename,
			LinkM3U8:   ep.LinkM3U8,
			LinkEmbed:  ep.LinkEmbed,
			LinkMP4:    ep.LinkMP4,
		}
	}
	return rows
}

func toRunRow(r *catalog.Run) *runRow {
	return &runRow{
		ID:            r.ID,
		Type:          r.Type,
		Source:        r.Source,
		Status:        string(r.Status),
		Total:         r.Total,
		MoviesAdded:   r.MoviesAdded,
		MoviesUpdated: r.MoviesUpdated,
		MoviesSkipped: r.MoviesSkipped,
		MoviesFailed:  r.MoviesFailed,
		EpisodesAdded: r.EpisodesAdded,
		DurationMs:    r.Duration.Milliseconds(),
		Message:       r.Message,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
}

func (r *runRow) toRun() *catalog.Run {
	return &catalog.Run{
		ID:            r.ID,
		Type:          r.Type,
		Source:        r.Source,
		Status:        catalog.RunStatus(r.Status),
		Total:         r.Total,
		MoviesAdded:   r.MoviesAdded,
		MoviesUpdated: r.MoviesUpdated,
		MoviesSkipped: r.MoviesSkipped,
		MoviesFailed:  r.MoviesFailed,
		EpisodesAdded: r.EpisodesAdded,
		Duration:      time.Duration(r.DurationMs) * time.Millisecond,
		Message:       r.Message,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
}
