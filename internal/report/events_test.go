package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/phimhub/ingest/internal/catalog"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded Event
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("Failed to decode line %d: %v", len(events)+1, err)
		}
		events = append(events, decoded)
	}
	return events
}

func TestNewEventLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	if logger.Path() == "" {
		t.Error("EventLogger path is empty")
	}

	if _, err := os.Stat(logger.Path()); os.IsNotExist(err) {
		t.Errorf("Event log file was not created at %s", logger.Path())
	}

	filename := filepath.Base(logger.Path())
	if len(filename) < len("events-20060102-150405.jsonl") {
		t.Errorf("Event log filename format incorrect: %s", filename)
	}
}

func TestEventLogger_LogItem(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	items := []ItemLine{
		{Slug: "a", Outcome: "success", MovieID: 1, EpisodesAdded: 12},
		{Slug: "b", Outcome: "error", Message: "detail fetch failed"},
		{Slug: "c", Outcome: "skipped", Message: "type single excluded"},
	}
	for _, it := range items {
		if err := logger.LogItem("run-1", it); err != nil {
			t.Fatalf("LogItem failed: %v", err)
		}
	}
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].EpisodesAdded != 12 || events[0].RunID != "run-1" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Level != LevelError || events[1].Error != "detail fetch failed" {
		t.Errorf("error event = %+v", events[1])
	}
	if events[2].Level != LevelWarning || events[2].Reason != "type single excluded" {
		t.Errorf("skipped event = %+v", events[2])
	}
	for i, e := range events {
		if e.Timestamp.IsZero() {
			t.Errorf("event %d: timestamp not set", i)
		}
	}
}

func TestEventLogger_MinLevel(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelInfo)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	_ = logger.LogItem("r", ItemLine{Slug: "x", Outcome: "unchanged"})
	_ = logger.LogResolve("primary", 1, 24, nil)
	_ = logger.LogResolve("primary", 2, 0, errors.New("status 502"))
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 1 {
		t.Fatalf("Expected 1 event above debug, got %d", len(events))
	}
	if events[0].Event != EventResolve || events[0].Extra["page"] != "2" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestEventLogger_RunLifecycle(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	run := &catalog.Run{ID: "r1", Source: "primary", Type: "pages 1-1", Total: 2}
	_ = logger.LogRunStart(run)
	run.Status = catalog.RunCancelled
	run.Duration = 3 * time.Second
	_ = logger.LogRunFinish(run)
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[1].Outcome != "cancelled" || events[1].Level != LevelWarning || events[1].Duration != 3000 {
		t.Errorf("finish event = %+v", events[1])
	}
}

func TestEventLogger_ConcurrentWrites(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				if err := logger.LogItem("r", ItemLine{Slug: "concurrent", Outcome: "success"}); err != nil {
					t.Errorf("Concurrent log failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	logger.Close()

	if got := len(readEvents(t, logger.Path())); got != numGoroutines*eventsPerGoroutine {
		t.Errorf("Expected %d events, got %d", numGoroutines*eventsPerGoroutine, got)
	}
}

func TestNullLogger(t *testing.T) {
	logger := NullLogger()
	if err := logger.LogItem("r", ItemLine{Slug: "x"}); err != nil {
		t.Errorf("NullLogger.LogItem() error = %v", err)
	}
	if logger.Path() != "" {
		t.Error("NullLogger should have no path")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NullLogger.Close() error = %v", err)
	}
}
