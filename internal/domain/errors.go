package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict reports a concurrent write on the same row. The whole
	// operation can be retried from the start.
	ErrConflict = errors.New("conflicting concurrent update")

	ErrDeckNotFound   = fmt.Errorf("deck %w", ErrNotFound)
	ErrCardNotFound   = fmt.Errorf("card %w", ErrNotFound)
	ErrSourceNotFound = fmt.Errorf("source %w", ErrNotFound)
)
