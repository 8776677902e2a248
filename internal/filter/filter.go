// Package filter holds the per-run exclusion rules checked before any write.
//
// A type exclusion blocks the whole movie. Genre and country exclusions only
// trim the association lists; the movie itself is still ingested.
package filter

import (
	"fmt"
	"strings"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/slug"
	"github.com/phimhub/ingest/internal/util"
)

// Rules are the exclusions of one run. Names are compared by slug, so
// "Hài Hước", "hai huoc" and "hai-huoc" are the same genre.
type Rules struct {
	SkipFormats   []catalog.MovieType
	SkipGenres    []string
	SkipCountries []string
}

// Engine is a compiled Rules set
type Engine struct {
	formats   map[catalog.MovieType]struct{}
	genres    map[string]struct{}
	countries map[string]struct{}
}

// New compiles rules. Format names are expected to come from ParseFormats.
func New(rules Rules) *Engine {
	e := &Engine{
		formats:   make(map[catalog.MovieType]struct{}, len(rules.SkipFormats)),
		genres:    slugSet(rules.SkipGenres),
		countries: slugSet(rules.SkipCountries),
	}
	for _, f := range rules.SkipFormats {
		f = catalog.MovieType(strings.ToLower(strings.TrimSpace(string(f))))
		if f != "" {
			e.formats[f] = struct{}{}
		}
	}
	return e
}

func slugSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if s := slug.Slugify(n); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

// SkipsType reports whether a movie of type t must be skipped entirely
func (e *Engine) SkipsType(t catalog.MovieType) bool {
	_, skip := e.formats[t]
	return skip
}

// Genres returns names with excluded genres removed
func (e *Engine) Genres(names []string) []string {
	return trim(names, e.genres)
}

// Countries returns names with excluded countries removed
func (e *Engine) Countries(names []string) []string {
	return trim(names, e.countries)
}

// Apply trims the association lists of detail in place and reports whether
// the movie must be skipped because of its type. A skipped detail is left
// untouched.
func (e *Engine) Apply(detail *catalog.MovieDetail) (skip bool) {
	if e.SkipsType(detail.Movie.Type) {
		return true
	}
	detail.Genres = e.Genres(detail.Genres)
	detail.Countries = e.Countries(detail.Countries)
	return false
}

func trim(names []string, excluded map[string]struct{}) []string {
	if len(excluded) == 0 {
		return names
	}
	kept := make([]string, 0, len(names))
	for _, n := range names {
		if _, drop := excluded[slug.Slugify(n)]; drop {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}

// ParseFormats converts user supplied format names, ignoring blanks. An
// unknown name is rejected rather than silently matching nothing.
func ParseFormats(values []string) ([]catalog.MovieType, error) {
	var out []catalog.MovieType
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			t := catalog.MovieType(part)
			if !t.Valid() {
				return nil, fmt.Errorf("%w: unknown format %q (want single, series, hoathinh or tvshows)", util.ErrInvalidInput, part)
			}
			out = append(out, t)
		}
	}
	return out, nil
}
