package app

import (
	"errors"

	"github.com/hylla/tavla/internal/domain"
)

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidPolicy    = errors.New("invalid delete policy")
	ErrInvalidSnapshot  = errors.New("invalid snapshot")
	ErrDragInProgress   = errors.New("drag already in progress")
	ErrNoDragInProgress = errors.New("no drag in progress")
)

// IsNoop reports whether err is an input-validation failure callers should swallow silently.
func IsNoop(err error) bool {
	return errors.Is(err, domain.ErrInvalidName) || errors.Is(err, domain.ErrEmptyText)
}
