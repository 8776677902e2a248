package source

import (
	"context"
	"errors"
	"testing"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/util"
)

type stubAdapter struct{ cfg SourceConfig }

func (s *stubAdapter) Key() string { return s.cfg.Key }
func (s *stubAdapter) Tag() string { return s.cfg.Tag }
func (s *stubAdapter) FetchList(ctx context.Context, page int) ([]catalog.MovieSummary, catalog.Pagination, error) {
	return nil, catalog.Pagination{}, nil
}
func (s *stubAdapter) FetchDetail(ctx context.Context, slug string) (*catalog.MovieDetail, []catalog.ServerGroup, error) {
	return nil, nil, &NotFoundError{Source: s.cfg.Key, Slug: slug}
}

func TestRegistry(t *testing.T) {
	Register("stub", func(cfg SourceConfig) (Adapter, error) {
		return &stubAdapter{cfg: cfg}, nil
	})

	a, err := New(SourceConfig{Key: "primary", Kind: "stub", BaseURL: "http://x", DetailPath: "/phim"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Key() != "primary" {
		t.Errorf("Key() = %q", a.Key())
	}
	if a.Tag() != "primary" {
		t.Errorf("Tag() = %q, want key as default tag", a.Tag())
	}

	found := false
	for _, k := range Kinds() {
		if k == "stub" {
			found = true
		}
	}
	if !found {
		t.Errorf("Kinds() = %v, missing stub", Kinds())
	}
}

func TestRegistryUnknownKind(t *testing.T) {
	_, err := New(SourceConfig{Key: "x", Kind: "nope", BaseURL: "http://x", DetailPath: "/phim"})
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestRegistryInvalidConfig(t *testing.T) {
	_, err := New(SourceConfig{Key: "x", Kind: "stub"})
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}
