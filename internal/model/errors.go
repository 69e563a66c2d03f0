package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable marks a source that had no usable data for the request.
	ErrUnavailable = errors.New("unavailable")
	// ErrMissingCoreData means no index data was fetched or the snapshot
	// carries an aggregate fetch error. Analysis must not proceed.
	ErrMissingCoreData = errors.New("missing core data")
	// ErrMalformedInput means a date, cache file or snapshot could not be read.
	ErrMalformedInput = errors.New("malformed input")
)

// PartialDataError lists instruments whose source chains were exhausted while
// others succeeded. It is informational: the snapshot is still usable.
type PartialDataError struct {
	Date    string
	Missing []string
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("partial data for %s: no source answered for %s", e.Date, strings.Join(e.Missing, ", "))
}
