package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCatalog signals a catalog with nothing to index.
	ErrEmptyCatalog = errors.New("empty catalog")
	// ErrInvalidQuery signals a malformed matcher query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmptyInput signals a chat turn without user text.
	ErrEmptyInput = errors.New("empty input")
	// ErrChatProvider signals a chat model failure.
	ErrChatProvider = errors.New("chat provider error")
)

// EmptyCatalogError explains why a catalog cannot serve queries.
type EmptyCatalogError struct {
	Reason string
	Err    error
}

func (e *EmptyCatalogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrEmptyCatalog.Error(), e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrEmptyCatalog.Error(), e.Reason)
}

// Is lets errors.Is match both ErrEmptyCatalog and the wrapped cause.
func (e *EmptyCatalogError) Is(target error) bool { return target == ErrEmptyCatalog }

func (e *EmptyCatalogError) Unwrap() error { return e.Err }

// NewEmptyCatalog creates an empty catalog error.
func NewEmptyCatalog(reason string, cause error) error {
	return &EmptyCatalogError{Reason: reason, Err: cause}
}

// InvalidQueryError reports a rejected matcher query.
type InvalidQueryError struct {
	K int
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("%s: k must be at least 1, got %d", ErrInvalidQuery.Error(), e.K)
}

func (e *InvalidQueryError) Unwrap() error { return ErrInvalidQuery }
