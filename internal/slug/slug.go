// Package slug derives URL-safe identities from free-text names.
//
// Two names that fold to the same slug are the same identity; this is how
// people and taxonomy terms coming from different sources converge.
package slug

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/phimhub/ingest/internal/util"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	disallowed     = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	hyphenRuns     = regexp.MustCompile(`-+`)

	// /phim/<slug> or /film/<slug>, anything after the slug segment is ignored
	moviePath = regexp.MustCompile(`/(?:phim|film)/([^/?#]+)`)
)

// Slugify folds text into a lowercase, diacritic-free, hyphenated slug.
// Slugify(Slugify(s)) == Slugify(s) for every s.
func Slugify(text string) string {
	s := strings.Map(spaceToASCII, strings.ToLower(text))
	s = foldDiacritics(s)
	s = disallowed.ReplaceAllString(s, "")
	s = whitespaceRuns.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "- \t\n\r\f\v")
}

// spaceToASCII maps Unicode spaces (NBSP, ideographic space, BOM) to ' ' so
// they separate words instead of being dropped
func spaceToASCII(r rune) rune {
	if unicode.IsSpace(r) || r == '\uFEFF' {
		return ' '
	}
	return r
}

// foldDiacritics strips combining marks. đ is a distinct letter rather than
// d plus a mark, so it is mapped explicitly.
func foldDiacritics(s string) string {
	s = strings.NewReplacer("đ", "d", "Đ", "D").Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// FromURL extracts the movie slug from a full URL containing a /phim/ or
// /film/ segment. A bare token is accepted when it is already a valid slug.
func FromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty entry", util.ErrInvalidInput)
	}

	if m := moviePath.FindStringSubmatch(raw); m != nil {
		seg, err := url.PathUnescape(m[1])
		if err != nil {
			seg = m[1]
		}
		if s := Slugify(seg); s != "" {
			return s, nil
		}
		return "", fmt.Errorf("%w: empty slug in %q", util.ErrInvalidInput, raw)
	}

	if !strings.ContainsAny(raw, "/:?#") && Slugify(raw) == raw {
		return raw, nil
	}

	return "", fmt.Errorf("%w: cannot extract slug from %q", util.ErrInvalidInput, raw)
}
