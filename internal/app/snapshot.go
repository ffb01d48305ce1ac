package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "tavla.snapshot.v1"

// Snapshot represents snapshot data used by this package.
type Snapshot struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Boards     []SnapshotBoard `json:"boards"`
	Tasks      []SnapshotTask  `json:"tasks"`
}

// SnapshotBoard represents snapshot board data used by this package.
type SnapshotBoard struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotTask represents snapshot task data used by this package.
// Tasks appear in display order.
type SnapshotTask struct {
	ID      string            `json:"id"`
	Text    string            `json:"text"`
	History []SnapshotHistory `json:"history"`
}

// SnapshotHistory represents one history entry in a snapshot.
type SnapshotHistory struct {
	Board string    `json:"board"`
	At    time.Time `json:"at"`
}

// ExportSnapshot returns the full persisted state.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Boards:     make([]SnapshotBoard, 0, len(st.boards)),
		Tasks:      make([]SnapshotTask, 0, len(st.tasks)),
	}
	for _, view := range st.views() {
		if view.Derived {
			continue
		}
		snap.Boards = append(snap.Boards, SnapshotBoard{Name: view.Board.Name, CreatedAt: view.Board.CreatedAt})
	}
	for _, task := range st.tasks {
		snap.Tasks = append(snap.Tasks, snapshotTaskFromDomain(task))
	}
	return snap, nil
}

// ImportSnapshot replaces the persisted state with snap.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	boards := make(map[string]time.Time, len(snap.Boards))
	for _, board := range snap.Boards {
		boards[domain.NormalizeBoardName(board.Name)] = board.CreatedAt.UTC()
	}
	tasks := make([]domain.Task, 0, len(snap.Tasks))
	for _, task := range snap.Tasks {
		tasks = append(tasks, task.toDomain())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveState(ctx, tasks, boards)
}

// Validate validates the requested operation.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}

	boardNames := map[string]struct{}{}
	for i, b := range s.Boards {
		name := domain.NormalizeBoardName(b.Name)
		if name == "" {
			return fmt.Errorf("%w: boards[%d].name is required", ErrInvalidSnapshot, i)
		}
		if _, exists := boardNames[name]; exists {
			return fmt.Errorf("%w: duplicate board name %q", ErrInvalidSnapshot, name)
		}
		boardNames[name] = struct{}{}
	}

	taskIDs := map[string]struct{}{}
	for i, t := range s.Tasks {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return fmt.Errorf("%w: tasks[%d].id is required", ErrInvalidSnapshot, i)
		}
		if strings.TrimSpace(t.Text) == "" {
			return fmt.Errorf("%w: tasks[%d].text is required", ErrInvalidSnapshot, i)
		}
		if len(t.History) == 0 {
			return fmt.Errorf("%w: tasks[%d].history is required", ErrInvalidSnapshot, i)
		}
		for j, entry := range t.History {
			if domain.NormalizeBoardName(entry.Board) == "" {
				return fmt.Errorf("%w: tasks[%d].history[%d].board is required", ErrInvalidSnapshot, i, j)
			}
		}
		if _, exists := taskIDs[id]; exists {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidSnapshot, id)
		}
		taskIDs[id] = struct{}{}
	}
	return nil
}

// snapshotTaskFromDomain converts a task into its snapshot form.
func snapshotTaskFromDomain(task domain.Task) SnapshotTask {
	history := make([]SnapshotHistory, 0, len(task.History))
	for _, entry := range task.History {
		history = append(history, SnapshotHistory{Board: entry.Board, At: entry.At.UTC()})
	}
	return SnapshotTask{ID: task.ID, Text: task.Text, History: history}
}

// toDomain converts a snapshot task into a domain task.
func (t SnapshotTask) toDomain() domain.Task {
	history := make([]domain.HistoryEntry, 0, len(t.History))
	for _, entry := range t.History {
		history = append(history, domain.HistoryEntry{
			Board: domain.NormalizeBoardName(entry.Board),
			At:    entry.At.UTC(),
		})
	}
	return domain.Task{
		ID:      strings.TrimSpace(t.ID),
		Text:    strings.TrimSpace(t.Text),
		History: history,
	}
}
