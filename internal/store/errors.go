package store

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a commit failed.
type FailureKind int

const (
	// Unavailable means the store could not be reached. Safe to retry later.
	Unavailable FailureKind = iota + 1
	// Rejected means the store was reached and refused the write.
	Rejected
)

func (k FailureKind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

var (
	// ErrPreconditionFailed is wrapped by Rejected errors when a where filter did not hold.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrNotFound is returned by reads for missing documents.
	ErrNotFound = errors.New("document not found")

	// ErrLinkDown is wrapped by Unavailable errors when the local link is known to be down.
	ErrLinkDown = errors.New("network link is down")

	// ErrAlreadyApplied is wrapped by Rejected errors when a claimed operation
	// was committed before.
	ErrAlreadyApplied = errors.New("operation already applied")

	// ErrEmptyBatch is returned when committing a batch without intents.
	ErrEmptyBatch = errors.New("batch has no intents")
)

// CommitError is returned by Committer implementations.
type CommitError struct {
	Kind FailureKind
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s: %v", e.Kind, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// NewUnavailable wraps err as an Unavailable commit failure.
func NewUnavailable(err error) error {
	return &CommitError{Kind: Unavailable, Err: err}
}

// NewRejected wraps err as a Rejected commit failure.
func NewRejected(err error) error {
	return &CommitError{Kind: Rejected, Err: err}
}

// IsUnavailable reports whether err is an Unavailable commit failure.
func IsUnavailable(err error) bool {
	var ce *CommitError
	return errors.As(err, &ce) && ce.Kind == Unavailable
}

// IsRejected reports whether err is a Rejected commit failure.
func IsRejected(err error) bool {
	var ce *CommitError
	return errors.As(err, &ce) && ce.Kind == Rejected
}
