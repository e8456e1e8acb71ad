package tagcache

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by package-level calls before Configure.
var ErrNotConfigured = errors.New("tagcache: not configured")

// ErrDynamicInvalidate is returned when a request-computed tag is passed to
// InvalidateTag; such tags have no fixed name to purge.
var ErrDynamicInvalidate = errors.New("tagcache: dynamic tags cannot be invalidated directly")

// ResolutionError wraps a failure while turning Tags into surrogate keys,
// either a panicking tag callable or a version read failure.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("tagcache: tag resolution failed: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// UnknownBackendError reports a lookup of a backend name the registry does
// not hold.
type UnknownBackendError struct {
	Name string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("tagcache: unknown backend %q", e.Name)
}
