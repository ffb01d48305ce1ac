package domain

import "errors"

var (
	ErrInvalidID   = errors.New("invalid id")
	ErrInvalidName = errors.New("invalid name")
	ErrEmptyText   = errors.New("empty text")
	ErrNoHistory   = errors.New("task history is empty")
)
