package tui

import "github.com/atotto/clipboard"

// Option configures a Model.
type Option func(*Model)

// ClipboardFunc writes text to the system clipboard.
type ClipboardFunc func(string) error

// defaultClipboard writes through the OS clipboard.
func defaultClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// WithTimeFormat sets the layout used for history timestamps.
func WithTimeFormat(layout string) Option {
	return func(m *Model) {
		if layout != "" {
			m.timeFormat = layout
		}
	}
}

// WithShowCounts toggles task counts in board headers.
func WithShowCounts(show bool) Option {
	return func(m *Model) {
		m.showCounts = show
	}
}

// WithClipboard overrides the clipboard writer.
func WithClipboard(fn ClipboardFunc) Option {
	return func(m *Model) {
		if fn != nil {
			m.copyText = fn
		}
	}
}

// WithKeyConfig applies key overrides.
func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}
