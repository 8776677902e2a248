package crawl

import (
	"fmt"

	"github.com/phimhub/ingest/internal/catalog"
)

// InvalidInputError is a work item no slug could be extracted from
type InvalidInputError struct {
	Input string
	Err   error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %v", e.Input, e.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// FilteredOutError is an item excluded by a type rule. It is reported as a
// skip, not a failure.
type FilteredOutError struct {
	Slug string
	Type catalog.MovieType
}

func (e *FilteredOutError) Error() string {
	return fmt.Sprintf("skipped %s: type %s is excluded", e.Slug, e.Type)
}

// PersistenceError is a failed gateway write. Writes done before it stay.
type PersistenceError struct {
	Op   string
	Slug string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %s: %v", e.Slug, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
