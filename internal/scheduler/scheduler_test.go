package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phimhub/ingest/internal/util"
)

func TestNewRejectsEmptyDefinition(t *testing.T) {
	_, err := New("crawl", Definition{}, func(context.Context) error { return nil })
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestNewRejectsBadCron(t *testing.T) {
	_, err := New("crawl", Definition{Cron: "every tuesday"}, func(context.Context) error { return nil })
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestNextRunFollowsCron(t *testing.T) {
	s, err := New("crawl", Definition{Cron: "0 3 * * *"}, func(context.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop()

	next, err := s.NextRun()
	if err != nil {
		t.Fatal(err)
	}
	if next.Minute() != 0 || next.Hour() != 3 {
		t.Errorf("NextRun() = %v, want 03:00", next)
	}
}

func TestJobRunsWithStartContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "server")

	got := make(chan any, 1)
	s, err := New("crawl", Definition{Interval: 20 * time.Millisecond}, func(ctx context.Context) error {
		select {
		case got <- ctx.Value(key{}):
		default:
		}
		return errors.New("logged, not fatal")
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Start(ctx)
	defer s.Stop()

	select {
	case v := <-got:
		if v != "server" {
			t.Errorf("job ctx value = %v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}
