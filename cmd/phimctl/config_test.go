package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/source"
	"github.com/phimhub/ingest/internal/util"
	"github.com/spf13/viper"
)

// setConfig overrides viper keys for one test
func setConfig(t *testing.T, values map[string]any) {
	t.Helper()
	for k, v := range values {
		prev, had := viper.Get(k), viper.IsSet(k)
		viper.Set(k, v)
		t.Cleanup(func() {
			if had {
				viper.Set(k, prev)
			} else {
				viper.Set(k, nil)
			}
		})
	}
}

func TestSourceConfigDefaults(t *testing.T) {
	cfg, err := sourceConfig("primary")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Kind != "ophim" || cfg.Tag != "primary" || cfg.Timeout != 20*time.Second || cfg.RetryCount != 2 {
		t.Errorf("primary = %+v", cfg)
	}

	cfg, err = sourceConfig("secondary")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Kind != "ophimv1" || cfg.Tag != "v1" {
		t.Errorf("secondary = %+v", cfg)
	}
}

func TestSourceConfigOverrides(t *testing.T) {
	setConfig(t, map[string]any{
		"sources.mirror.kind":            "ophim",
		"sources.mirror.base_url":        "https://mirror.example",
		"sources.mirror.timeout":         5,
		"sources.mirror.retry_count":     0,
		"sources.mirror.max_concurrency": 4,
	})

	cfg, err := sourceConfig("mirror")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timeout != 5*time.Second || cfg.RetryCount != 0 || cfg.MaxConcurrency != 4 || cfg.Tag != "mirror" {
		t.Errorf("mirror = %+v", cfg)
	}
}

func TestSourceConfigUnknown(t *testing.T) {
	if _, err := sourceConfig("nope"); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestCrawlOptions(t *testing.T) {
	setConfig(t, map[string]any{
		"crawl.skip_formats": []string{"Single,hoathinh"},
		"crawl.skip_genres":  []string{"Hài Hước"},
		"crawl.wait_min_ms":  100,
		"crawl.wait_max_ms":  300,
		"crawl.workers":      8,
	})

	cfg, err := sourceConfig("primary")
	if err != nil {
		t.Fatal(err)
	}
	cfg.MaxConcurrency = 3
	opts, err := crawlOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if want := []catalog.MovieType{catalog.TypeSingle, catalog.TypeHoatHinh}; !reflect.DeepEqual(opts.Filter.SkipFormats, want) {
		t.Errorf("SkipFormats = %v, want %v", opts.Filter.SkipFormats, want)
	}
	if opts.WaitMin != 100*time.Millisecond || opts.WaitMax != 300*time.Millisecond {
		t.Errorf("wait = %v-%v", opts.WaitMin, opts.WaitMax)
	}
	if opts.Workers != 3 {
		t.Errorf("Workers = %d, want capped at 3", opts.Workers)
	}
}

func TestCrawlOptionsRejectsUnknownFormat(t *testing.T) {
	setConfig(t, map[string]any{"crawl.skip_formats": []string{"singel"}})

	_, err := crawlOptions(source.SourceConfig{})
	if !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("crawlOptions() error = %v, want ErrInvalidInput", err)
	}
}

func TestCapWorkers(t *testing.T) {
	cases := []struct{ workers, max, want int }{
		{0, 4, 1},
		{2, 4, 2},
		{9, 4, 4},
		{9, 0, 9},
	}
	for _, c := range cases {
		if got := capWorkers(c.workers, c.max); got != c.want {
			t.Errorf("capWorkers(%d, %d) = %d, want %d", c.workers, c.max, got, c.want)
		}
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	setConfig(t, map[string]any{"store.driver": "oracle"})
	if _, err := openStore(); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestOpenStoreSQLite(t *testing.T) {
	setConfig(t, map[string]any{"store.driver": "sqlite", "db": filepath.Join(t.TempDir(), "t.db")})
	st, err := openStore()
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.Ping(t.Context()); err != nil {
		t.Errorf("Ping() = %v", err)
	}
}

func TestAssetPolicyModes(t *testing.T) {
	setConfig(t, map[string]any{"assets.mode": "resize", "assets.dir": filepath.Join(t.TempDir(), "media")})
	if _, err := assetPolicy(); err != nil {
		t.Errorf("resize: %v", err)
	}

	setConfig(t, map[string]any{"assets.mode": "thumbnailer"})
	if _, err := assetPolicy(); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("unknown mode err = %v", err)
	}
}

func TestWriteAndReadList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	if err := writeList(path, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "a\nb\n" {
		t.Errorf("file = %q", data)
	}

	got, err := readList(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("readList() = %v", got)
	}
}

func TestPrintRunTable(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	runs := []*catalog.Run{{
		ID:            "abc",
		Type:          "pages 1-3",
		Source:        "primary",
		Status:        catalog.RunSuccess,
		Total:         48,
		MoviesAdded:   10,
		EpisodesAdded: 1200,
		Duration:      90 * time.Second,
		StartedAt:     now.Add(-2 * time.Hour),
	}}

	var buf bytes.Buffer
	if err := printRunTable(&buf, runs, now); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "abc", "2 hours ago", "pages 1-3", "success", "1,200", "1m30s"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
