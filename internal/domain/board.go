package domain

import (
	"strings"
	"time"
)

// Board represents a named column tasks live in.
type Board struct {
	Name      string
	CreatedAt time.Time
}

// NormalizeBoardName trims and upper-cases a board name; the result is the board identity.
func NormalizeBoardName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// NewBoard constructs a new value for this package.
func NewBoard(name string, now time.Time) (Board, error) {
	name = NormalizeBoardName(name)
	if name == "" {
		return Board{}, ErrInvalidName
	}
	return Board{
		Name:      name,
		CreatedAt: now.UTC(),
	}, nil
}
