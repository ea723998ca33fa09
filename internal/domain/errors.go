package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning rejects a trigger while another run is in flight.
	ErrAlreadyRunning = errors.New("AlreadyRunning")
	// ErrStoreUnavailable aborts a whole run; nothing of it is committed.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConstraintViolation marks a uniqueness race on a write.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrNotFound is returned for unknown alert or recall ids.
	ErrNotFound = errors.New("not found")
)

// NetworkError fails one authority's contribution to a run.
type NetworkError struct {
	Authority Authority
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Authority, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError drops a single raw record.
type ParseError struct {
	Authority Authority
	Ref       string
	Reason    string
}

func (e *ParseError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("%s record dropped: %s", e.Authority, e.Reason)
	}
	return fmt.Sprintf("%s record %s dropped: %s", e.Authority, e.Ref, e.Reason)
}
