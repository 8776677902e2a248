package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phimhub/ingest/internal/util"
)

func testClient(retries int) *Client {
	c := NewClient(SourceConfig{Key: "test", BaseURL: "http://unused", Timeout: 2 * time.Second, RetryCount: retries})
	c.retry.InitialWait = time.Millisecond
	c.retry.MaxWait = 5 * time.Millisecond
	return c
}

func TestGetJSON(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	if err := testClient(0).GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.Name != "ok" {
		t.Errorf("Name = %q", out.Name)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var out map[string]any
	if err := testClient(2).GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient(3).GetJSON(context.Background(), srv.URL, &out)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d", fe.StatusCode)
	}
	if !IsNotFoundStatus(err) {
		t.Error("IsNotFoundStatus() = false")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestGetJSONMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":`))
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient(0).GetJSON(context.Background(), srv.URL, &out)

	var fe *FetchError
	if !errors.As(err, &fe) || !fe.Decode {
		t.Fatalf("error = %v, want decode FetchError", err)
	}
}

func TestGetJSONCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out map[string]any
	err := testClient(2).GetJSON(ctx, srv.URL, &out)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestFetchErrorTemporary(t *testing.T) {
	tests := []struct {
		err  *FetchError
		want bool
	}{
		{&FetchError{StatusCode: 500}, true},
		{&FetchError{StatusCode: 429}, true},
		{&FetchError{StatusCode: 404}, false},
		{&FetchError{Decode: true, Err: errors.New("bad json")}, false},
		{&FetchError{Err: errors.New("connection refused")}, true},
	}
	for _, tt := range tests {
		if got := tt.err.Temporary(); got != tt.want {
			t.Errorf("%v Temporary() = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestNotFoundErrorIs(t *testing.T) {
	err := error(&NotFoundError{Source: "test", Slug: "x"})
	if !errors.Is(err, util.ErrNotFound) {
		t.Error("NotFoundError should match util.ErrNotFound")
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base  string
		parts []string
		want  string
	}{
		{"https://a.example", []string{"/phim/", "slug"}, "https://a.example/phim/slug"},
		{"https://a.example/", []string{"/v1/api"}, "https://a.example/v1/api"},
		{"https://a.example", []string{"v1", ""}, "https://a.example/v1"},
	}
	for _, tt := range tests {
		if got := JoinURL(tt.base, tt.parts...); got != tt.want {
			t.Errorf("JoinURL(%q, %q) = %q, want %q", tt.base, tt.parts, got, tt.want)
		}
	}
}
