package users

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("user not found")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrStorageFailure        = errors.New("storage failure")
)

// Error ties a failed coordinator operation to its kind and cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalid(op string, err error) error {
	return &Error{Op: op, Kind: ErrInvalidInput, Err: err}
}

func notFound(op, id string) error {
	return &Error{Op: op, Kind: ErrNotFound, Err: fmt.Errorf("id %q", id)}
}

func storageFailure(op string, err error) error {
	return &Error{Op: op, Kind: ErrStorageFailure, Err: err}
}
