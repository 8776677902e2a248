// Package ophim adapts the flat ophim style catalog API:
//
//	GET {base}{list_path}?page=N   -> {"items": [...], "pagination": {...}, "pathImage": "..."}
//	GET {base}{detail_path}/{slug} -> {"status": true, "movie": {...}, "episodes": [...]}
package ophim

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/source"
)

// Kind is the registry key of this adapter
const Kind = "ophim"

const (
	defaultListPath   = "/danh-sach/phim-moi-cap-nhat"
	defaultDetailPath = "/phim"
)

func init() {
	source.Register(Kind, func(cfg source.SourceConfig) (source.Adapter, error) {
		return New(cfg), nil
	})
}

// Adapter implements source.Adapter for the ophim API
type Adapter struct {
	cfg    source.SourceConfig
	client *source.Client
}

// New builds an adapter; zero paths fall back to the public API layout
func New(cfg source.SourceConfig) *Adapter {
	cfg = cfg.WithDefaults()
	if cfg.ListPath == "" {
		cfg.ListPath = defaultListPath
	}
	if cfg.DetailPath == "" {
		cfg.DetailPath = defaultDetailPath
	}
	return &Adapter{cfg: cfg, client: source.NewClient(cfg)}
}

func (a *Adapter) Key() string { return a.cfg.Key }
func (a *Adapter) Tag() string { return a.cfg.Tag }

type listResponse struct {
	Items      []listItem        `json:"items"`
	PathImage  source.FlexString `json:"pathImage"`
	Pagination struct {
		TotalItems        source.FlexInt `json:"totalItems"`
		TotalItemsPerPage source.FlexInt `json:"totalItemsPerPage"`
		CurrentPage       source.FlexInt `json:"currentPage"`
		TotalPages        source.FlexInt `json:"totalPages"`
	} `json:"pagination"`
}

type listItem struct {
	Name       source.FlexString `json:"name"`
	Slug       source.FlexString `json:"slug"`
	OriginName source.FlexString `json:"origin_name"`
	PosterURL  source.FlexString `json:"poster_url"`
	ThumbURL   source.FlexString `json:"thumb_url"`
	Year       source.FlexInt    `json:"year"`
	Modified   struct {
		Time source.FlexString `json:"time"`
	} `json:"modified"`
}

// FetchList returns one listing page
func (a *Adapter) FetchList(ctx context.Context, page int) ([]catalog.MovieSummary, catalog.Pagination, error) {
	if page < 1 {
		page = 1
	}
	endpoint := fmt.Sprintf("%s?page=%d", source.JoinURL(a.cfg.BaseURL, a.cfg.ListPath), page)

	var resp listResponse
	if err := a.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, catalog.Pagination{}, err
	}

	prefix := string(resp.PathImage)
	items := make([]catalog.MovieSummary, 0, len(resp.Items))
	for _, it := range resp.Items {
		slug := strings.TrimSpace(string(it.Slug))
		if slug == "" {
			continue
		}
		items = append(items, catalog.MovieSummary{
			Slug:       slug,
			Name:       strings.TrimSpace(string(it.Name)),
			OriginName: strings.TrimSpace(string(it.OriginName)),
			Year:       int(it.Year),
			PosterURL:  source.ResolveImage(prefix, string(it.PosterURL)),
			ThumbURL:   source.ResolveImage(prefix, string(it.ThumbURL)),
			ModifiedAt: parseTime(string(it.Modified.Time)),
		})
	}

	p := resp.Pagination
	pagination := catalog.Pagination{
		TotalItems:        int(p.TotalItems),
		TotalItemsPerPage: int(p.TotalItemsPerPage),
		CurrentPage:       int(p.CurrentPage),
		TotalPages:        int(p.TotalPages),
	}
	if pagination.CurrentPage == 0 {
		pagination.CurrentPage = page
	}
	return items, pagination, nil
}

type detailResponse struct {
	Status   bool               `json:"status"`
	Msg      source.FlexString  `json:"msg"`
	Movie    *detailMovie       `json:"movie"`
	Episodes []source.RawServer `json:"episodes"`
}

type detailMovie struct {
	Name           source.FlexString `json:"name"`
	Slug           source.FlexString `json:"slug"`
	OriginName     source.FlexString `json:"origin_name"`
	Content        source.FlexString `json:"content"`
	Type           source.FlexString `json:"type"`
	Status         source.FlexString `json:"status"`
	ThumbURL       source.FlexString `json:"thumb_url"`
	PosterURL      source.FlexString `json:"poster_url"`
	Time           source.FlexString `json:"time"`
	EpisodeCurrent source.FlexString `json:"episode_current"`
	EpisodeTotal   source.FlexString `json:"episode_total"`
	Quality        source.FlexString `json:"quality"`
	Lang           source.FlexString `json:"lang"`
	Year           source.FlexInt    `json:"year"`
	TrailerURL     source.FlexString `json:"trailer_url"`
	Actor          source.NameList   `json:"actor"`
	Director       source.NameList   `json:"director"`
	Category       []source.RawTerm  `json:"category"`
	Country        []source.RawTerm  `json:"country"`
}

// FetchDetail returns the normalized movie and its untagged server groups
func (a *Adapter) FetchDetail(ctx context.Context, slug string) (*catalog.MovieDetail, []catalog.ServerGroup, error) {
	endpoint := source.JoinURL(a.cfg.BaseURL, a.cfg.DetailPath, url.PathEscape(slug))

	var resp detailResponse
	if err := a.client.GetJSON(ctx, endpoint, &resp); err != nil {
		if source.IsNotFoundStatus(err) {
			return nil, nil, &source.NotFoundError{Source: a.cfg.Key, Slug: slug}
		}
		return nil, nil, err
	}
	if !resp.Status || resp.Movie == nil || strings.TrimSpace(string(resp.Movie.Slug)) == "" {
		return nil, nil, &source.NotFoundError{Source: a.cfg.Key, Slug: slug}
	}

	m := resp.Movie
	status := source.InferStatus(string(m.EpisodeCurrent))
	if strings.EqualFold(strings.TrimSpace(string(m.Status)), string(catalog.StatusCompleted)) {
		status = catalog.StatusCompleted
	}

	detail := &catalog.MovieDetail{
		Movie: catalog.Movie{
			Slug:           strings.TrimSpace(string(m.Slug)),
			Name:           strings.TrimSpace(string(m.Name)),
			OriginName:     strings.TrimSpace(string(m.OriginName)),
			PosterURL:      strings.TrimSpace(string(m.PosterURL)),
			ThumbURL:       strings.TrimSpace(string(m.ThumbURL)),
			Type:           source.InferType(string(m.Type)),
			Status:         status,
			Year:           m.Year.Ptr(),
			Quality:        strings.TrimSpace(string(m.Quality)),
			Lang:           strings.TrimSpace(string(m.Lang)),
			Time:           strings.TrimSpace(string(m.Time)),
			EpisodeCurrent: strings.TrimSpace(string(m.EpisodeCurrent)),
			EpisodeTotal:   strings.TrimSpace(string(m.EpisodeTotal)),
			TrailerURL:     strings.TrimSpace(string(m.TrailerURL)),
			Content:        string(m.Content),
		},
		Genres:    source.TermNames(m.Category),
		Countries: source.TermNames(m.Country),
		Actors:    []string(m.Actor),
		Directors: []string(m.Director),
	}

	return detail, source.ToServerGroups(resp.Episodes), nil
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
