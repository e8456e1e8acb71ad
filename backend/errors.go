package backend

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks a backend whose store or remote API is unreachable or
// erroring. Match with errors.Is.
var ErrUnavailable = errors.New("tagcache: backend unavailable")

// ErrVersioningUnsupported is returned by backends with no version store
// (CDN purge backends). Composite backends skip such members when resolving
// or bumping versions.
var ErrVersioningUnsupported = errors.New("tagcache: backend does not support versioned tags")

// UnavailableError carries the failing operation and cause while matching
// ErrUnavailable through errors.Is.
type UnavailableError struct {
	Op  string
	Err error
}

func Unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("tagcache: backend unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// MemberError ties a composite member's failure to its position so callers
// can tell which target missed the fan-out.
type MemberError struct {
	Index int
	Err   error
}

func (e *MemberError) Error() string {
	return fmt.Sprintf("member %d: %v", e.Index, e.Err)
}

func (e *MemberError) Unwrap() error { return e.Err }

// CompositeError aggregates per-member failures from a fan-out operation.
// Every member is attempted before this is returned; it is never fail-fast.
type CompositeError struct {
	Op   string
	Errs []error
}

func (e *CompositeError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("tagcache: composite %s: %s", e.Op, strings.Join(msgs, "; "))
}

func (e *CompositeError) Unwrap() []error { return e.Errs }

// compositeErr returns nil when no member failed.
func compositeErr(op string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &CompositeError{Op: op, Errs: errs}
}
