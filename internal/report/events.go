package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/phimhub/ingest/internal/catalog"
)

// EventType represents the type of event
type EventType string

const (
	EventRunStart  EventType = "run_start"
	EventRunFinish EventType = "run_finish"
	EventResolve   EventType = "resolve"
	EventItem      EventType = "item"
	EventAsset     EventType = "asset"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event of a crawl
type Event struct {
	Timestamp     time.Time         `json:"ts"`
	Level         EventLevel        `json:"level"`
	Event         EventType         `json:"event"`
	RunID         string            `json:"run_id,omitempty"`
	Source        string            `json:"source,omitempty"`
	Slug          string            `json:"slug,omitempty"`
	Outcome       string            `json:"outcome,omitempty"`
	MovieID       int64             `json:"movie_id,omitempty"`
	EpisodesAdded int               `json:"episodes_added,omitempty"`
	Duration      int64             `json:"duration_ms,omitempty"` // in milliseconds
	Reason        string            `json:"reason,omitempty"`
	Error         string            `json:"error,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogRunStart logs the opening of a ledger entry
func (l *EventLogger) LogRunStart(run *catalog.Run) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventRunStart,
		RunID:  run.ID,
		Source: run.Source,
		Reason: run.Type,
		Extra: map[string]string{
			"total": fmt.Sprintf("%d", run.Total),
		},
	})
}

// LogRunFinish logs the final state of a ledger entry
func (l *EventLogger) LogRunFinish(run *catalog.Run) error {
	level := LevelInfo
	if run.Status == catalog.RunError {
		level = LevelError
	} else if run.Status == catalog.RunCancelled {
		level = LevelWarning
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventRunFinish,
		RunID:    run.ID,
		Source:   run.Source,
		Outcome:  string(run.Status),
		Duration: run.Duration.Milliseconds(),
		Reason:   run.Message,
		Extra: map[string]string{
			"added":    fmt.Sprintf("%d", run.MoviesAdded),
			"updated":  fmt.Sprintf("%d", run.MoviesUpdated),
			"skipped":  fmt.Sprintf("%d", run.MoviesSkipped),
			"failed":   fmt.Sprintf("%d", run.MoviesFailed),
			"episodes": fmt.Sprintf("%d", run.EpisodesAdded),
		},
	})
}

// LogResolve logs one resolved listing page
func (l *EventLogger) LogResolve(source string, page, slugs int, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:  level,
		Event:  EventResolve,
		Source: source,
		Error:  errMsg,
		Extra: map[string]string{
			"page":  fmt.Sprintf("%d", page),
			"slugs": fmt.Sprintf("%d", slugs),
		},
	})
}

// LogItem logs the outcome of one work item
func (l *EventLogger) LogItem(runID string, item ItemLine) error {
	level := LevelInfo
	switch item.Outcome {
	case "error":
		level = LevelError
	case "skipped":
		level = LevelWarning
	case "unchanged":
		level = LevelDebug
	}

	e := &Event{
		Timestamp:     item.At,
		Level:         level,
		Event:         EventItem,
		RunID:         runID,
		Slug:          item.Slug,
		Outcome:       item.Outcome,
		MovieID:       item.MovieID,
		EpisodesAdded: item.EpisodesAdded,
		Duration:      item.Duration.Milliseconds(),
	}
	if level == LevelError {
		e.Error = item.Message
	} else {
		e.Reason = item.Message
	}
	return l.Log(e)
}

// LogAsset logs an image that fell back to its upstream URL
func (l *EventLogger) LogAsset(slug, src string, err error) error {
	return l.Log(&Event{
		Level: LevelWarning,
		Event: EventAsset,
		Slug:  slug,
		Error: err.Error(),
		Extra: map[string]string{"src": src},
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
