// Package ophimv1 adapts the enveloped v1 catalog API, where every payload is
// wrapped in {"status": "success", "data": {...}} and image fields are bare
// file names under APP_DOMAIN_CDN_IMAGE.
package ophimv1

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/source"
)

const Kind = "ophimv1"

const (
	defaultListPath   = "/v1/api/danh-sach/phim-moi-cap-nhat"
	defaultDetailPath = "/v1/api/phim"
	imageDir          = "/uploads/movies/"
	statusSuccess     = "success"
)

func init() {
	source.Register(Kind, func(cfg source.SourceConfig) (source.Adapter, error) {
		return New(cfg), nil
	})
}

type Adapter struct {
	cfg    source.SourceConfig
	client *source.Client
}

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

type envelope[T any] struct {
	Status  source.FlexString `json:"status"`
	Message source.FlexString `json:"message"`
	Data    *T                `json:"data"`
}

type listData struct {
	Items  []listItem `json:"items"`
	Params struct {
		Pagination struct {
			TotalItems        source.FlexInt `json:"totalItems"`
			TotalItemsPerPage source.FlexInt `json:"totalItemsPerPage"`
			CurrentPage       source.FlexInt `json:"currentPage"`
		} `json:"pagination"`
	} `json:"params"`
	CDNImage source.FlexString `json:"APP_DOMAIN_CDN_IMAGE"`
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

// FetchList returns one listing page. The v1 envelope has no page count, so
// it is derived from the item totals.
func (a *Adapter) FetchList(ctx context.Context, page int) ([]catalog.MovieSummary, catalog.Pagination, error) {
	if page < 1 {
		page = 1
	}
	endpoint := fmt.Sprintf("%s?page=%d", source.JoinURL(a.cfg.BaseURL, a.cfg.ListPath), page)

	var resp envelope[listData]
	if err := a.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, catalog.Pagination{}, err
	}
	if string(resp.Status) != statusSuccess || resp.Data == nil {
		return nil, catalog.Pagination{}, &source.FetchError{
			Source: a.cfg.Key,
			URL:    endpoint,
			Decode: true,
			Err:    fmt.Errorf("unexpected status %q: %s", resp.Status, resp.Message),
		}
	}

	data := resp.Data
	prefix := imagePrefix(string(data.CDNImage))
	items := make([]catalog.MovieSummary, 0, len(data.Items))
	for _, it := range data.Items {
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

	p := data.Params.Pagination
	pagination := catalog.Pagination{
		TotalItems:        int(p.TotalItems),
		TotalItemsPerPage: int(p.TotalItemsPerPage),
		CurrentPage:       int(p.CurrentPage),
	}
	if pagination.CurrentPage == 0 {
		pagination.CurrentPage = page
	}
	if pagination.TotalItemsPerPage > 0 {
		pagination.TotalPages = (pagination.TotalItems + pagination.TotalItemsPerPage - 1) / pagination.TotalItemsPerPage
	}
	return items, pagination, nil
}

type detailData struct {
	Item     *detailItem       `json:"item"`
	CDNImage source.FlexString `json:"APP_DOMAIN_CDN_IMAGE"`
}

type detailItem struct {
	Name           source.FlexString  `json:"name"`
	Slug           source.FlexString  `json:"slug"`
	OriginName     source.FlexString  `json:"origin_name"`
	Content        source.FlexString  `json:"content"`
	Type           source.FlexString  `json:"type"`
	Status         source.FlexString  `json:"status"`
	ThumbURL       source.FlexString  `json:"thumb_url"`
	PosterURL      source.FlexString  `json:"poster_url"`
	Time           source.FlexString  `json:"time"`
	EpisodeCurrent source.FlexString  `json:"episode_current"`
	EpisodeTotal   source.FlexString  `json:"episode_total"`
	Quality        source.FlexString  `json:"quality"`
	Lang           source.FlexString  `json:"lang"`
	Year           source.FlexInt     `json:"year"`
	TrailerURL     source.FlexString  `json:"trailer_url"`
	Actor          source.NameList    `json:"actor"`
	Director       source.NameList    `json:"director"`
	Category       []source.RawTerm   `json:"category"`
	Country        []source.RawTerm   `json:"country"`
	Episodes       []source.RawServer `json:"episodes"`
	TMDB           struct {
		Type source.FlexString `json:"type"`
	} `json:"tmdb"`
}

// FetchDetail returns the normalized movie and its untagged server groups
func (a *Adapter) FetchDetail(ctx context.Context, slug string) (*catalog.MovieDetail, []catalog.ServerGroup, error) {
	endpoint := source.JoinURL(a.cfg.BaseURL, a.cfg.DetailPath, url.PathEscape(slug))

	var resp envelope[detailData]
	if err := a.client.GetJSON(ctx, endpoint, &resp); err != nil {
		if source.IsNotFoundStatus(err) {
			return nil, nil, &source.NotFoundError{Source: a.cfg.Key, Slug: slug}
		}
		return nil, nil, err
	}
	if string(resp.Status) != statusSuccess || resp.Data == nil || resp.Data.Item == nil ||
		strings.TrimSpace(string(resp.Data.Item.Slug)) == "" {
		return nil, nil, &source.NotFoundError{Source: a.cfg.Key, Slug: slug}
	}

	it := resp.Data.Item
	prefix := imagePrefix(string(resp.Data.CDNImage))

	// tmdb.type is "movie" or "tv" and only breaks ties when type is absent
	label := string(it.Type)
	if strings.TrimSpace(label) == "" {
		switch strings.ToLower(string(it.TMDB.Type)) {
		case "movie":
			label = string(catalog.TypeSingle)
		case "tv":
			label = string(catalog.TypeSeries)
		}
	}

	status := source.InferStatus(string(it.EpisodeCurrent))
	if strings.EqualFold(strings.TrimSpace(string(it.Status)), string(catalog.StatusCompleted)) {
		status = catalog.StatusCompleted
	}

	detail := &catalog.MovieDetail{
		Movie: catalog.Movie{
			Slug:           strings.TrimSpace(string(it.Slug)),
			Name:           strings.TrimSpace(string(it.Name)),
			OriginName:     strings.TrimSpace(string(it.OriginName)),
			PosterURL:      source.ResolveImage(prefix, string(it.PosterURL)),
			ThumbURL:       source.ResolveImage(prefix, string(it.ThumbURL)),
			Type:           source.InferType(label),
			Status:         status,
			Year:           it.Year.Ptr(),
			Quality:        strings.TrimSpace(string(it.Quality)),
			Lang:           strings.TrimSpace(string(it.Lang)),
			Time:           strings.TrimSpace(string(it.Time)),
			EpisodeCurrent: strings.TrimSpace(string(it.EpisodeCurrent)),
			EpisodeTotal:   strings.TrimSpace(string(it.EpisodeTotal)),
			TrailerURL:     strings.TrimSpace(string(it.TrailerURL)),
			Content:        string(it.Content),
		},
		Genres:    source.TermNames(it.Category),
		Countries: source.TermNames(it.Country),
		Actors:    []string(it.Actor),
		Directors: []string(it.Director),
	}

	return detail, source.ToServerGroups(it.Episodes), nil
}

func imagePrefix(cdn string) string {
	cdn = strings.TrimSpace(cdn)
	if cdn == "" {
		return ""
	}
	return source.JoinURL(cdn, imageDir)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
