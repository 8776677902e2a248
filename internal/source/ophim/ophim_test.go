package ophim

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/source"
	"github.com/phimhub/ingest/internal/util"
)

const listPayload = `{
  "status": true,
  "items": [
    {"name": "Cô Dâu Hào Môn", "slug": "co-dau-hao-mon", "origin_name": "Rich Bride", "poster_url": "co-dau-poster.jpg", "thumb_url": "co-dau-thumb.jpg", "year": 2023, "modified": {"time": "2024-05-01T10:00:00.000Z"}},
    {"name": "Broken", "slug": "", "year": null},
    {"name": "Người Hùng", "slug": "nguoi-hung", "origin_name": null, "year": "2021", "poster_url": "https://cdn.other/p.jpg"}
  ],
  "pathImage": "https://img.example/uploads/movies/",
  "pagination": {"totalItems": 4800, "totalItemsPerPage": 24, "currentPage": 2, "totalPages": 200}
}`

const detailPayload = `{
  "status": true,
  "msg": "",
  "movie": {
    "name": "Cô Dâu Hào Môn",
    "slug": "co-dau-hao-mon",
    "origin_name": "Rich Bride",
    "content": "<p>Story</p>",
    "type": "series",
    "status": "ongoing",
    "thumb_url": "https://img.example/thumb.jpg",
    "poster_url": "https://img.example/poster.jpg",
    "time": "45 phút/tập",
    "episode_current": "Hoàn Tất (16/16)",
    "episode_total": "16 Tập",
    "quality": "FHD",
    "lang": "Vietsub",
    "year": 2023,
    "trailer_url": null,
    "actor": ["Lee Min Ho", " Kim Go Eun ", ""],
    "director": "Kim Eun Sook, ",
    "category": [{"id": "1", "name": "Tình Cảm", "slug": "tinh-cam"}, {"id": "2", "name": "Hài Hước", "slug": "hai-huoc"}],
    "country": [{"id": "3", "name": "Hàn Quốc", "slug": "han-quoc"}]
  },
  "episodes": [
    {"server_name": "Vietsub #1", "server_data": [
      {"name": "1", "slug": "1", "filename": "ep1", "link_embed": "https://embed/1", "link_m3u8": "https://cdn/1.m3u8"},
      {"name": "2", "slug": "2", "filename": "ep2", "link_embed": "", "link_m3u8": ""}
    ]},
    {"server_name": "Thuyết Minh #1", "server_data": []}
  ]
}`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(source.SourceConfig{Key: "ophim", Kind: Kind, BaseURL: srv.URL, Tag: "OPHIM"})
}

func TestFetchList(t *testing.T) {
	var gotPath, gotPage string
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPage = r.URL.Query().Get("page")
		_, _ = w.Write([]byte(listPayload))
	})

	items, pagination, err := a.FetchList(context.Background(), 2)
	if err != nil {
		t.Fatalf("FetchList() error = %v", err)
	}
	if gotPath != defaultListPath || gotPage != "2" {
		t.Errorf("request = %s?page=%s", gotPath, gotPage)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (empty slug dropped)", len(items))
	}

	first := items[0]
	if first.Slug != "co-dau-hao-mon" || first.Year != 2023 {
		t.Errorf("first = %+v", first)
	}
	if first.PosterURL != "https://img.example/uploads/movies/co-dau-poster.jpg" {
		t.Errorf("PosterURL = %q", first.PosterURL)
	}
	if first.ModifiedAt.IsZero() {
		t.Error("ModifiedAt not parsed")
	}

	second := items[1]
	if second.OriginName != "" || second.Year != 2021 {
		t.Errorf("second = %+v", second)
	}
	if second.PosterURL != "https://cdn.other/p.jpg" {
		t.Errorf("absolute PosterURL rewritten: %q", second.PosterURL)
	}

	want := catalog.Pagination{TotalItems: 4800, TotalItemsPerPage: 24, CurrentPage: 2, TotalPages: 200}
	if pagination != want {
		t.Errorf("pagination = %+v, want %+v", pagination, want)
	}
}

func TestFetchDetail(t *testing.T) {
	var gotPath string
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(detailPayload))
	})

	detail, servers, err := a.FetchDetail(context.Background(), "co-dau-hao-mon")
	if err != nil {
		t.Fatalf("FetchDetail() error = %v", err)
	}
	if gotPath != "/phim/co-dau-hao-mon" {
		t.Errorf("path = %q", gotPath)
	}

	m := detail.Movie
	if m.Type != catalog.TypeSeries {
		t.Errorf("Type = %q", m.Type)
	}
	if m.Status != catalog.StatusCompleted {
		t.Errorf("Status = %q, want completed from episode_current", m.Status)
	}
	if m.Year == nil || *m.Year != 2023 {
		t.Errorf("Year = %v", m.Year)
	}
	if m.TrailerURL != "" {
		t.Errorf("null trailer should be empty, got %q", m.TrailerURL)
	}
	if len(detail.Actors) != 2 || detail.Actors[1] != "Kim Go Eun" {
		t.Errorf("Actors = %q", detail.Actors)
	}
	if len(detail.Directors) != 1 || detail.Directors[0] != "Kim Eun Sook" {
		t.Errorf("Directors = %q", detail.Directors)
	}
	if len(detail.Genres) != 2 || detail.Genres[0] != "Tình Cảm" {
		t.Errorf("Genres = %q", detail.Genres)
	}
	if len(detail.Countries) != 1 {
		t.Errorf("Countries = %q", detail.Countries)
	}

	if len(servers) != 2 {
		t.Fatalf("got %d servers, want 2", len(servers))
	}
	if servers[0].Name != "Vietsub #1" {
		t.Errorf("server name = %q, should stay untagged", servers[0].Name)
	}
	if len(servers[0].Episodes) != 1 {
		t.Errorf("episodes = %+v, linkless episode should be dropped", servers[0].Episodes)
	}
	if len(servers[1].Episodes) != 0 {
		t.Error("empty server should carry no episodes")
	}
}

func TestFetchDetailNotFound(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"status false", http.StatusOK, `{"status": false, "msg": "Movie not found", "movie": null}`},
		{"empty slug", http.StatusOK, `{"status": true, "movie": {"slug": ""}}`},
		{"http 404", http.StatusNotFound, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			})

			_, _, err := a.FetchDetail(context.Background(), "missing")
			var nf *source.NotFoundError
			if !errors.As(err, &nf) {
				t.Fatalf("error = %v, want *NotFoundError", err)
			}
			if !errors.Is(err, util.ErrNotFound) {
				t.Error("should match util.ErrNotFound")
			}
		})
	}
}

func TestFetchDetailMalformed(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	_, _, err := a.FetchDetail(context.Background(), "x")
	var fe *source.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
}

func TestRegistered(t *testing.T) {
	a, err := source.New(source.SourceConfig{Key: "primary", Kind: Kind, BaseURL: "http://x", DetailPath: "/phim"})
	if err != nil {
		t.Fatalf("source.New() error = %v", err)
	}
	if a.Tag() != "primary" {
		t.Errorf("Tag() = %q", a.Tag())
	}
}
