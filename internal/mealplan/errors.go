package mealplan

import (
	"errors"
	"fmt"
)

var (
	// ErrRemote marks transport or backend failures.
	ErrRemote = errors.New("remote backend failure")
	// ErrNotFound marks mutations that target an entry or recipe that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument marks malformed values supplied by the caller.
	ErrInvalidArgument = errors.New("invalid argument")
)

// RemoteError describes a failed backend call. It matches ErrRemote with errors.Is.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }
