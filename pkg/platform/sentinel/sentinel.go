// Package sentinel holds the storage facts shared by the rule document store
// and the credit report cache. Callers match them with errors.Is.
package sentinel

import "errors"

var (
	// ErrNotFound: no active rule document, no such version, or a report
	// cache miss (including an expired entry).
	ErrNotFound = errors.New("not found")
	// ErrUnavailable: the backing store could not be reached.
	ErrUnavailable = errors.New("store unavailable")
)
