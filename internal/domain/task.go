package domain

import (
	"strings"
	"time"
)

// HistoryEntry records that a task entered a board at a point in time.
type HistoryEntry struct {
	Board string
	At    time.Time
}

// Task represents a text card and the boards it has visited.
type Task struct {
	ID      string
	Text    string
	History []HistoryEntry
}

// NewTask constructs a task placed on board with a single history entry.
func NewTask(id, board, text string, now time.Time) (Task, error) {
	id = strings.TrimSpace(id)
	board = NormalizeBoardName(board)
	text = strings.TrimSpace(text)
	if id == "" {
		return Task{}, ErrInvalidID
	}
	if board == "" {
		return Task{}, ErrInvalidName
	}
	if text == "" {
		return Task{}, ErrEmptyText
	}
	return Task{
		ID:   id,
		Text: text,
		History: []HistoryEntry{
			{Board: board, At: now.UTC()},
		},
	}, nil
}

// CurrentBoard returns the board of the last history entry.
func (t Task) CurrentBoard() string {
	if len(t.History) == 0 {
		return ""
	}
	return t.History[len(t.History)-1].Board
}

// Since returns when the task entered its current board.
func (t Task) Since() time.Time {
	if len(t.History) == 0 {
		return time.Time{}
	}
	return t.History[len(t.History)-1].At
}

// Edit replaces the task text. History is left untouched.
func (t *Task) Edit(text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, ErrEmptyText
	}
	if text == t.Text {
		return false, nil
	}
	t.Text = text
	return true, nil
}

// MoveTo appends a history entry when board differs from the current board.
func (t *Task) MoveTo(board string, now time.Time) (bool, error) {
	board = NormalizeBoardName(board)
	if board == "" {
		return false, ErrInvalidName
	}
	if board == t.CurrentBoard() {
		return false, nil
	}
	t.History = append(t.History, HistoryEntry{Board: board, At: now.UTC()})
	return true, nil
}

// HistoryCopy returns a copy of the history safe for callers to mutate.
func (t Task) HistoryCopy() []HistoryEntry {
	out := make([]HistoryEntry, len(t.History))
	copy(out, t.History)
	return out
}

// Validate reports whether the task satisfies its structural invariants.
func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrInvalidID
	}
	if strings.TrimSpace(t.Text) == "" {
		return ErrEmptyText
	}
	if len(t.History) == 0 {
		return ErrNoHistory
	}
	for _, entry := range t.History {
		if NormalizeBoardName(entry.Board) == "" {
			return ErrInvalidName
		}
	}
	return nil
}
