package slug

import (
	"errors"
	"testing"

	"github.com/phimhub/ingest/internal/util"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Đà Nẵng", "da-nang"},
		{"Hài Hước", "hai-huoc"},
		{"Hành Động", "hanh-dong"},
		{"Phim Bộ", "phim-bo"},
		{"Trấn Thành", "tran-thanh"},
		{"Đà\u00a0Nẵng", "da-nang"},
		{"Trấn\u3000Thành", "tran-thanh"},
		{"Hành\u2003Động\u202f2", "hanh-dong-2"},
		{"\ufeffPhim Bộ", "phim-bo"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"Multiple   spaces\tand\nlines", "multiple-spaces-and-lines"},
		{"Hyphen -- runs", "hyphen-runs"},
		{"--edge--", "edge"},
		{"Spider-Man: No Way Home (2021)", "spider-man-no-way-home-2021"},
		{"Björk", "bjork"},
		{"Café Crème", "cafe-creme"},
		{"ĐẶNG", "dang"},
		{"日本", ""},
		{"", ""},
	}

	for _, tt := range tests {
		result := Slugify(tt.input)
		if result != tt.expected {
			t.Errorf("Slugify(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestSlugifyDecomposedInput(t *testing.T) {
	// "Đà Nẵng" with combining marks (NFD) must fold to the same identity
	decomposed := "\u0110a\u0300 Na\u0306\u0303ng"
	if got := Slugify(decomposed); got != "da-nang" {
		t.Errorf("Slugify(NFD) = %q, expected %q", got, "da-nang")
	}
}

func TestSlugifyIdempotent(t *testing.T) {
	inputs := []string{
		"Đà Nẵng",
		"  --Hello__World--  ",
		"Tên Phim: Phần 2 — Hồi Kết",
		"a - b - c",
		"Ưu Đãi Đặc Biệt!!!",
		"MiXeD CaSe 123",
		"tab\tseparated\tvalues",
		"ǅemal",
		"",
	}

	for _, in := range inputs {
		once := Slugify(in)
		twice := Slugify(once)
		if once != twice {
			t.Errorf("Slugify not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestSlugifyConvergesAcrossSpellings(t *testing.T) {
	a := Slugify("Hàn Quốc")
	b := Slugify("han quoc")
	c := Slugify("HÀN  QUỐC")
	if a != b || b != c {
		t.Errorf("expected same identity, got %q %q %q", a, b, c)
	}
}

func TestFromURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://ophim17.cc/phim/movie-a", "movie-a"},
		{"https://example.com/film/movie-b/tap-1?x=1", "movie-b"},
		{"https://example.com/phim/movie-c?utm=feed#top", "movie-c"},
		{"/phim/movie-d", "movie-d"},
		{"movie-e", "movie-e"},
		{"  movie-f  ", "movie-f"},
	}

	for _, tt := range tests {
		got, err := FromURL(tt.input)
		if err != nil {
			t.Errorf("FromURL(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("FromURL(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestFromURLInvalid(t *testing.T) {
	inputs := []string{
		"",
		"https://example.com/tv/movie-a",
		"Not A Slug",
		"https://example.com/",
	}

	for _, in := range inputs {
		_, err := FromURL(in)
		if err == nil {
			t.Errorf("FromURL(%q) expected error", in)
			continue
		}
		if !errors.Is(err, util.ErrInvalidInput) {
			t.Errorf("FromURL(%q) error %v does not wrap ErrInvalidInput", in, err)
		}
	}
}
