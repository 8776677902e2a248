package crawl

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/phimhub/ingest/internal/report"
	"github.com/phimhub/ingest/internal/source"
	"github.com/phimhub/ingest/internal/util"
)

// ParseList splits a newline separated list of slugs or URLs. Blank lines and
// lines starting with '#' are ignored.
func ParseList(text string) []string {
	var items []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, line)
	}
	return items
}

// Shuffle returns a Fisher-Yates shuffled copy of list. A nil rng uses the
// global source.
func Shuffle(list []string, rng *rand.Rand) []string {
	out := append([]string(nil), list...)
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	for i := len(out) - 1; i > 0; i-- {
		j := intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ResolveList fetches listing pages from..to and returns their slugs in page
// order without duplicates. It stops early past the last reported page.
func ResolveList(ctx context.Context, adapter source.Adapter, from, to int, events *report.EventLogger) ([]string, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("%w: page range %d-%d", util.ErrInvalidInput, from, to)
	}

	var slugs []string
	seen := make(map[string]struct{})
	for page := from; page <= to; page++ {
		if err := ctx.Err(); err != nil {
			return slugs, err
		}

		items, pagination, err := adapter.FetchList(ctx, page)
		_ = events.LogResolve(adapter.Key(), page, len(items), err)
		if err != nil {
			return slugs, fmt.Errorf("list page %d: %w", page, err)
		}

		for _, it := range items {
			if _, dup := seen[it.Slug]; dup {
				continue
			}
			seen[it.Slug] = struct{}{}
			slugs = append(slugs, it.Slug)
		}
		util.DebugLog("resolve: %s page %d/%d: %d items", adapter.Key(), page, pagination.TotalPages, len(items))

		if pagination.TotalPages > 0 && page >= pagination.TotalPages {
			break
		}
	}
	return slugs, nil
}
