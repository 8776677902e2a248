package crawl

import (
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"sort"
	"testing"

	"github.com/phimhub/ingest/internal/util"
)

func TestParseList(t *testing.T) {
	text := "movie-a\n\n  # comment\nhttps://ophim1.com/phim/movie-b  \r\n\t\nmovie-c"
	want := []string{"movie-a", "https://ophim1.com/phim/movie-b", "movie-c"}
	if got := ParseList(text); !reflect.DeepEqual(got, want) {
		t.Errorf("ParseList() = %q, want %q", got, want)
	}
	if got := ParseList(""); len(got) != 0 {
		t.Errorf("ParseList(\"\") = %q", got)
	}
}

func TestShuffle(t *testing.T) {
	list := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	orig := append([]string(nil), list...)

	got := Shuffle(list, rand.New(rand.NewPCG(42, 7)))
	if !reflect.DeepEqual(list, orig) {
		t.Errorf("input was modified: %v", list)
	}
	sorted := append([]string(nil), got...)
	sort.Strings(sorted)
	if !reflect.DeepEqual(sorted, orig) {
		t.Errorf("Shuffle() lost or duplicated items: %v", got)
	}

	again := Shuffle(list, rand.New(rand.NewPCG(42, 7)))
	if !reflect.DeepEqual(got, again) {
		t.Errorf("same seed gave %v and %v", got, again)
	}
	if got := Shuffle(nil, nil); len(got) != 0 {
		t.Errorf("Shuffle(nil) = %v", got)
	}
}

func TestResolveList(t *testing.T) {
	a := newFakeAdapter()
	a.pages[2] = []string{"x", "y"}
	a.pages[3] = []string{"y", "z"}
	a.pages[4] = []string{"never"}
	a.total = 3

	got, err := ResolveList(context.Background(), a, 2, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"x", "y", "z"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveList() = %v, want %v", got, want)
	}
}

func TestResolveListBadRange(t *testing.T) {
	for _, r := range [][2]int{{0, 1}, {3, 2}} {
		if _, err := ResolveList(context.Background(), newFakeAdapter(), r[0], r[1], nil); !errors.Is(err, util.ErrInvalidInput) {
			t.Errorf("range %v: err = %v, want ErrInvalidInput", r, err)
		}
	}
}

func TestResolveListCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ResolveList(ctx, newFakeAdapter(), 1, 2, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
