package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/crawl"
	"github.com/phimhub/ingest/internal/source"
	"github.com/phimhub/ingest/internal/store/memstore"
)

type stubAdapter struct {
	pages   map[int][]string
	listErr error
}

func (a *stubAdapter) Key() string { return "primary" }
func (a *stubAdapter) Tag() string { return "primary" }

func (a *stubAdapter) FetchList(ctx context.Context, page int) ([]catalog.MovieSummary, catalog.Pagination, error) {
	if a.listErr != nil {
		return nil, catalog.Pagination{}, a.listErr
	}
	var items []catalog.MovieSummary
	for _, s := range a.pages[page] {
		items = append(items, catalog.MovieSummary{Slug: s})
	}
	return items, catalog.Pagination{CurrentPage: page, TotalPages: len(a.pages)}, nil
}

func (a *stubAdapter) FetchDetail(ctx context.Context, slug string) (*catalog.MovieDetail, []catalog.ServerGroup, error) {
	if slug == "missing" {
		return nil, nil, &source.NotFoundError{Source: "primary", Slug: slug}
	}
	d := &catalog.MovieDetail{Movie: catalog.Movie{Slug: slug, Name: slug, Type: catalog.TypeSeries}}
	g := []catalog.ServerGroup{{Name: "Vietsub #1", Episodes: []catalog.Episode{
		{Name: "1", Slug: "1", LinkEmbed: "https://embed.example/" + slug + "/1"},
	}}}
	return d, g, nil
}

type fixture struct {
	svc    *Service
	store  *memstore.Store
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	adapter := &stubAdapter{pages: map[int][]string{1: {"a", "b"}, 2: {"c"}}}
	st := memstore.New()
	c := crawl.New(adapter, st)
	svc := NewService(context.Background(), c, adapter, crawl.Options{}, 2)
	t.Cleanup(svc.Wait)
	return &fixture{
		svc:    svc,
		store:  st,
		router: NewRouter(NewHandler(svc, st), gin.TestMode),
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestStartRunAndFetchIt(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/runs", `{"slugs":["a","missing"]}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	id := decode[map[string]string](t, w)["run_id"]
	if id == "" {
		t.Fatal("empty run_id")
	}
	f.svc.Wait()

	w = f.do(http.MethodGet, "/api/runs/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET run status = %d", w.Code)
	}
	run := decode[RunView](t, w)
	if run.Status != string(catalog.RunSuccess) || run.MoviesAdded != 1 || run.MoviesFailed != 1 || run.EpisodesAdded != 1 {
		t.Errorf("run = %+v", run)
	}

	w = f.do(http.MethodGet, "/api/runs?limit=5", "")
	list := decode[struct {
		Runs []RunView `json:"runs"`
		Busy bool      `json:"busy"`
	}](t, w)
	if len(list.Runs) != 1 || list.Runs[0].ID != id || list.Busy {
		t.Errorf("list = %+v", list)
	}
}

func TestStartRunPages(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/runs", `{"from":1,"to":2,"workers":8}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	f.svc.Wait()

	if got := len(f.store.Movies()); got != 3 {
		t.Errorf("movies = %d, want 3", got)
	}
}

func TestStartRunRejectsBadRequests(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`{}`, `{"slugs":["a"],"from":1,"to":2}`, `{"from":3,"to":1}`, `{"from":1,"to":1,"skip_formats":["singel"]}`, `not json`} {
		if w := f.do(http.MethodPost, "/api/runs", body); w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestStartRunWhileBusy(t *testing.T) {
	f := newFixture(t)
	if !f.svc.acquire() {
		t.Fatal("acquire failed")
	}
	defer f.svc.release()

	if w := f.do(http.MethodPost, "/api/runs", `{"slugs":["a"]}`); w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestGetRunNotFound(t *testing.T) {
	f := newFixture(t)
	if w := f.do(http.MethodGet, "/api/runs/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListRunsBadLimit(t *testing.T) {
	f := newFixture(t)
	if w := f.do(http.MethodGet, "/api/runs?limit=zero", ""); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestResolve(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/resolve", `{"from":1,"to":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	got := decode[struct {
		Slugs []string `json:"slugs"`
		Count int      `json:"count"`
	}](t, w)
	if got.Count != 3 || strings.Join(got.Slugs, ",") != "a,b,c" {
		t.Errorf("resolve = %+v", got)
	}

	if w := f.do(http.MethodPost, "/api/resolve", `{"from":3,"to":1}`); w.Code != http.StatusBadRequest {
		t.Errorf("reversed range status = %d, want 400", w.Code)
	}
}

func TestExecuteIsExclusive(t *testing.T) {
	f := newFixture(t)
	f.svc.acquire()
	_, err := f.svc.Execute(context.Background(), RunRequest{Slugs: []string{"a"}})
	f.svc.release()
	if err != ErrBusy {
		t.Errorf("err = %v, want ErrBusy", err)
	}

	summary, err := f.svc.Execute(context.Background(), RunRequest{Slugs: []string{"a", "b"}, Shuffle: true})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Added != 2 {
		t.Errorf("Added = %d, want 2", summary.Added)
	}
}

func TestExecutePagesResolveFailureIsRecorded(t *testing.T) {
	for _, shuffle := range []bool{false, true} {
		t.Run(fmt.Sprintf("shuffle=%v", shuffle), func(t *testing.T) {
			adapter := &stubAdapter{listErr: errors.New("listing down")}
			st := memstore.New()
			svc := NewService(context.Background(), crawl.New(adapter, st), adapter, crawl.Options{}, 1)

			_, err := svc.Execute(context.Background(), RunRequest{From: 1, To: 2, Shuffle: shuffle})
			if err == nil {
				t.Fatal("Execute() error = nil")
			}
			runs, _ := st.ListRuns(context.Background(), 10)
			if len(runs) != 1 {
				t.Fatalf("ledger has %d runs, want 1", len(runs))
			}
			if runs[0].Status != catalog.RunError || !strings.Contains(runs[0].Message, "listing down") {
				t.Errorf("run = %+v", runs[0])
			}
		})
	}
}
