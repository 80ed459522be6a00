package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors returned across the pipeline.
var (
	ErrInvalidPageCount  = errors.New("page count must be >= 0")
	ErrMissingPrimaryKey = errors.New("record has no primary_key")
	ErrTotalFailure      = errors.New("no work completed")
)

// FetchError reports a page whose fetch failed. The page contributes no records.
type FetchError struct {
	Task PageTask
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d of %q in %q: %v", e.Task.Page, e.Task.SearchTerm, e.Task.Location, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RecordShapeError reports an item that is not a mapping and so cannot be keyed.
type RecordShapeError struct {
	Item any
}

func (e *RecordShapeError) Error() string {
	return fmt.Sprintf("record is %T, not a mapping", e.Item)
}

// DriverError reports a failure that aborted the remaining extraction pairs.
type DriverError struct {
	Position string
	Location string
	Err      error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("extraction aborted at %q in %q: %v", e.Position, e.Location, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }
