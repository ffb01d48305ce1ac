// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/hylla/tavla/internal/app"
)

// ErrInvalidRequest reports malformed or rejected transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// Board describes one board and its ordered task ids.
type Board struct {
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Derived   bool       `json:"derived,omitempty"`
	TaskIDs   []string   `json:"task_ids"`
	Count     int        `json:"count"`
}

// Task describes one task at its current board.
type Task struct {
	ID    string    `json:"id"`
	Text  string    `json:"text"`
	Board string    `json:"board"`
	Since time.Time `json:"since"`
}

// HistoryEntry records one board the task has been on.
type HistoryEntry struct {
	Board string    `json:"board"`
	At    time.Time `json:"at"`
}

// CreateBoardRequest creates one board.
type CreateBoardRequest struct {
	Name string `json:"name"`
}

// DeleteBoardResult reports a board deletion.
type DeleteBoardResult struct {
	Board    string `json:"board"`
	Affected int    `json:"affected"`
}

// CreateTaskRequest creates one task on a board.
type CreateTaskRequest struct {
	Board string `json:"board"`
	Text  string `json:"text"`
}

// EditTaskRequest replaces the text of one task.
type EditTaskRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// MoveTaskRequest moves one task. A nil Position appends after the last task on the board.
type MoveTaskRequest struct {
	ID       string `json:"id"`
	Board    string `json:"board"`
	Position *int   `json:"position,omitempty"`
}

// BoardService is the board and task surface shared by the HTTP and MCP transports.
type BoardService interface {
	ListBoards(context.Context) ([]Board, error)
	CreateBoard(context.Context, CreateBoardRequest) (Board, error)
	DeleteBoard(context.Context, string) (DeleteBoardResult, error)
	ListTasks(context.Context, string) ([]Task, error)
	CreateTask(context.Context, CreateTaskRequest) (Task, error)
	EditTask(context.Context, EditTaskRequest) (Task, error)
	DeleteTask(context.Context, string) error
	MoveTask(context.Context, MoveTaskRequest) (Task, error)
	TaskHistory(context.Context, string) ([]HistoryEntry, error)
	BoardCounts(context.Context) (map[string]int, error)
}

// SnapshotService exports and restores full collection snapshots.
type SnapshotService interface {
	ExportSnapshot(context.Context) (app.Snapshot, error)
	ImportSnapshot(context.Context, app.Snapshot) error
}
