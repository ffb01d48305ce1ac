package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// TasksKey and BoardsKey name the storage keys holding persisted state.
const (
	TasksKey  = "tasks"
	BoardsKey = "boards"
)

// storedHistory is the persisted form of one history entry.
type storedHistory struct {
	Board string `json:"board"`
	Time  string `json:"time"`
}

// storedTask is the persisted form of one task.
type storedTask struct {
	ID      string          `json:"id"`
	Text    string          `json:"text"`
	History []storedHistory `json:"history"`
}

// storedBoard is the persisted form of one board registry entry.
type storedBoard struct {
	CreatedAt string `json:"createdAt"`
}

// state holds the decoded tasks and board registry.
type state struct {
	tasks  []domain.Task
	boards map[string]time.Time
}

// ts formats a timestamp for storage.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses a stored timestamp; unparseable values map to the zero time.
func parseTS(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// encodeTasks serializes tasks in display order.
func encodeTasks(tasks []domain.Task) (string, error) {
	out := make([]storedTask, 0, len(tasks))
	for _, task := range tasks {
		history := make([]storedHistory, 0, len(task.History))
		for _, entry := range task.History {
			history = append(history, storedHistory{Board: entry.Board, Time: ts(entry.At)})
		}
		out = append(out, storedTask{ID: task.ID, Text: task.Text, History: history})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode tasks: %w", err)
	}
	return string(data), nil
}

// decodeTasks parses the tasks value. Duplicate ids keep the first occurrence and
// structurally invalid entries are skipped.
func decodeTasks(raw string) ([]domain.Task, int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, 0, nil
	}
	var stored []storedTask
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, 0, fmt.Errorf("decode tasks: %w", err)
	}
	seen := make(map[string]struct{}, len(stored))
	out := make([]domain.Task, 0, len(stored))
	dropped := 0
	for _, item := range stored {
		task := domain.Task{
			ID:      strings.TrimSpace(item.ID),
			Text:    item.Text,
			History: make([]domain.HistoryEntry, 0, len(item.History)),
		}
		for _, entry := range item.History {
			task.History = append(task.History, domain.HistoryEntry{
				Board: domain.NormalizeBoardName(entry.Board),
				At:    parseTS(entry.Time),
			})
		}
		if err := task.Validate(); err != nil {
			dropped++
			continue
		}
		if _, ok := seen[task.ID]; ok {
			dropped++
			continue
		}
		seen[task.ID] = struct{}{}
		out = append(out, task)
	}
	return out, dropped, nil
}

// encodeBoards serializes the board registry.
func encodeBoards(boards map[string]time.Time) (string, error) {
	out := make(map[string]storedBoard, len(boards))
	for name, createdAt := range boards {
		out[name] = storedBoard{CreatedAt: ts(createdAt)}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode boards: %w", err)
	}
	return string(data), nil
}

// decodeBoards parses the board registry value.
func decodeBoards(raw string) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return out, nil
	}
	var stored map[string]storedBoard
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return out, fmt.Errorf("decode boards: %w", err)
	}
	for name, board := range stored {
		name = domain.NormalizeBoardName(name)
		if name == "" {
			continue
		}
		out[name] = parseTS(board.CreatedAt)
	}
	return out, nil
}
