package crawl

import (
	"time"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/report"
)

// Outcome classifies one processed work item
type Outcome string

const (
	// OutcomeSuccess means the movie was new and got inserted
	OutcomeSuccess Outcome = "success"
	// OutcomeUpdated means an existing movie gained episodes or associations
	OutcomeUpdated Outcome = "updated"
	// OutcomeUnchanged means an existing movie had nothing new
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeError     Outcome = "error"
)

// ItemResult is the outcome of one work item
type ItemResult struct {
	Index             int
	Input             string
	Slug              string
	Outcome           Outcome
	MovieID           int64
	EpisodesAdded     int
	AssociationsAdded int
	Err               error
	Duration          time.Duration
	At                time.Time
}

// Message is the human-readable reason attached to skips and errors
func (r ItemResult) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Line converts the result for reports and the event log
func (r ItemResult) Line() report.ItemLine {
	slug := r.Slug
	if slug == "" {
		slug = r.Input
	}
	return report.ItemLine{
		Index:         r.Index,
		Slug:          slug,
		Outcome:       string(r.Outcome),
		MovieID:       r.MovieID,
		EpisodesAdded: r.EpisodesAdded,
		Message:       r.Message(),
		Duration:      r.Duration,
		At:            r.At,
	}
}

// ItemError is one entry of the run's error list
type ItemError struct {
	Index   int
	Slug    string
	Message string
	At      time.Time
}

// RunSummary is what a caller gets back from a run
type RunSummary struct {
	RunID         string
	Status        catalog.RunStatus
	Total         int
	Processed     int
	Added         int
	Updated       int
	Unchanged     int
	Skipped       int
	Failed        int
	EpisodesAdded int
	// Errors lists failed items and, prefixed with "skipped:", skipped ones,
	// in work-list order
	Errors   []ItemError
	Results  []ItemResult
	Duration time.Duration
}

// Lines returns the processed results as report lines
func (s *RunSummary) Lines() []report.ItemLine {
	lines := make([]report.ItemLine, 0, len(s.Results))
	for _, r := range s.Results {
		lines = append(lines, r.Line())
	}
	return lines
}

func (s *RunSummary) add(r ItemResult) {
	s.Processed++
	s.EpisodesAdded += r.EpisodesAdded
	switch r.Outcome {
	case OutcomeSuccess:
		s.Added++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeError:
		s.Failed++
	}
}

// collect fills Results and Errors in work-list order
func (s *RunSummary) collect(results []*ItemResult) {
	for _, r := range results {
		if r == nil {
			continue
		}
		s.Results = append(s.Results, *r)
		switch r.Outcome {
		case OutcomeError:
			s.Errors = append(s.Errors, ItemError{Index: r.Index, Slug: r.Line().Slug, Message: r.Message(), At: r.At})
		case OutcomeSkipped:
			s.Errors = append(s.Errors, ItemError{Index: r.Index, Slug: r.Line().Slug, Message: "skipped: " + r.Message(), At: r.At})
		}
	}
}

// Progress is emitted after every processed item
type Progress struct {
	Processed   int
	Total       int
	CurrentSlug string
	Last        ItemResult
}

// ProgressFunc receives progress events. Calls never overlap.
type ProgressFunc func(Progress)
