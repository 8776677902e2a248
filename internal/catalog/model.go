// Package catalog holds the canonical movie model shared by source adapters,
// the crawl orchestrator and the store backends.
package catalog

import "time"

// MovieType is the canonical format of a movie
type MovieType string

const (
	TypeSingle   MovieType = "single"
	TypeSeries   MovieType = "series"
	TypeHoatHinh MovieType = "hoathinh"
	TypeTVShows  MovieType = "tvshows"
)

// Valid reports whether t is one of the known formats
func (t MovieType) Valid() bool {
	switch t {
	case TypeSingle, TypeSeries, TypeHoatHinh, TypeTVShows:
		return true
	}
	return false
}

// Label is the display name of the category mirroring t
func (t MovieType) Label() string {
	switch t {
	case TypeSingle:
		return "Phim Lẻ"
	case TypeSeries:
		return "Phim Bộ"
	case TypeHoatHinh:
		return "Hoạt Hình"
	case TypeTVShows:
		return "TV Shows"
	}
	return string(t)
}

// MovieStatus is the release progress of a movie
type MovieStatus string

const (
	StatusOngoing   MovieStatus = "ongoing"
	StatusCompleted MovieStatus = "completed"
)

// Movie is the canonical movie record. Slug is the natural key.
type Movie struct {
	ID             int64
	Slug           string
	Name           string
	OriginName     string
	PosterURL      string
	ThumbURL       string
	Type           MovieType
	Status         MovieStatus
	Year           *int
	Quality        string
	Lang           string
	Time           string
	EpisodeCurrent string
	EpisodeTotal   string
	TrailerURL     string
	Content        string
	CreatedAt      time.Time
}

// MovieDetail is a normalized detail response: the movie row plus the
// free-text names of everything it relates to.
type MovieDetail struct {
	Movie     Movie
	Genres    []string
	Countries []string
	Actors    []string
	Directors []string
}

// MovieSummary is one entry of a listing page
type MovieSummary struct {
	Slug       string
	Name       string
	OriginName string
	Year       int
	PosterURL  string
	ThumbURL   string
	ModifiedAt time.Time
}

// Pagination as reported by a listing endpoint
type Pagination struct {
	TotalItems        int
	TotalItemsPerPage int
	CurrentPage       int
	TotalPages        int
}

// Episode is a single playable entry of a movie.
// ServerName is stored tagged with the originating source.
type Episode struct {
	ID         int64
	MovieID    int64
	ServerName string
	Name       string
	Slug       string
	Filename   string
	LinkM3U8   string
	LinkEmbed  string
	LinkMP4    string
}

// HasLink reports whether at least one playback link is set
func (e Episode) HasLink() bool {
	return e.LinkM3U8 != "" || e.LinkEmbed != "" || e.LinkMP4 != ""
}

// Key returns the composite identity of the episode within its movie
func (e Episode) Key() EpisodeKey {
	return EpisodeKey{ServerName: e.ServerName, Slug: e.Slug}
}

// ServerGroup is one upstream server label and its episodes, untagged
type ServerGroup struct {
	Name     string
	Episodes []Episode
}

// EpisodeKey identifies an episode inside one movie
type EpisodeKey struct {
	ServerName string
	Slug       string
}

// Term is a taxonomy entry or a person: genre, country, category, actor, director
type Term struct {
	ID   int64
	Slug string
	Name string
}
