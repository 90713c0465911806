// Package apperr defines the error kinds shared by the store, the search
// index and the traversal engine. Every error returned by those packages
// wraps exactly one of the sentinels below, so callers branch with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers absent records and records outside the requested
	// project scope. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrConflict is a constraint violation the upsert path could not absorb.
	ErrConflict = errors.New("conflict")

	// ErrInvalidArgument is malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStorageUnavailable means the datastore could not serve the request.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Wrap annotates kind with a formatted message. The result satisfies
// errors.Is(err, kind).
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind reports which sentinel err wraps, or nil when it wraps none.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrInvalidArgument, ErrStorageUnavailable} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
