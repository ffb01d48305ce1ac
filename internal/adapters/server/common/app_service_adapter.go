package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service board and task APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListBoards lists every board in display order with its task ids.
func (a *AppServiceAdapter) ListBoards(ctx context.Context) ([]Board, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	views, err := a.service.ListBoards(ctx)
	if err != nil {
		return nil, mapAppError("list boards", err)
	}
	out := make([]Board, 0, len(views))
	for _, view := range views {
		out = append(out, mapBoardView(view))
	}
	return out, nil
}

// CreateBoard creates or returns one board.
func (a *AppServiceAdapter) CreateBoard(ctx context.Context, in CreateBoardRequest) (Board, error) {
	if err := a.ready(); err != nil {
		return Board{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return Board{}, fmt.Errorf("name is required: %w", ErrInvalidRequest)
	}
	board, err := a.service.CreateBoard(ctx, in.Name)
	if err != nil {
		return Board{}, mapAppError("create board", err)
	}
	views, err := a.service.ListBoards(ctx)
	if err != nil {
		return Board{}, mapAppError("list boards", err)
	}
	for _, view := range views {
		if view.Board.Name == board.Name {
			return mapBoardView(view), nil
		}
	}
	createdAt := board.CreatedAt
	return Board{Name: board.Name, CreatedAt: &createdAt, TaskIDs: []string{}}, nil
}

// DeleteBoard removes one board and applies the configured delete policy.
func (a *AppServiceAdapter) DeleteBoard(ctx context.Context, name string) (DeleteBoardResult, error) {
	if err := a.ready(); err != nil {
		return DeleteBoardResult{}, err
	}
	name = domain.NormalizeBoardName(name)
	if name == "" {
		return DeleteBoardResult{}, fmt.Errorf("board name is required: %w", ErrInvalidRequest)
	}
	affected, err := a.service.DeleteBoard(ctx, name)
	if err != nil {
		return DeleteBoardResult{}, mapAppError("delete board", err)
	}
	return DeleteBoardResult{Board: name, Affected: affected}, nil
}

// ListTasks lists tasks in board order, optionally restricted to one board.
func (a *AppServiceAdapter) ListTasks(ctx context.Context, board string) ([]Task, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	board = domain.NormalizeBoardName(board)
	if board != "" {
		views, err := a.service.ListBoards(ctx)
		if err != nil {
			return nil, mapAppError("list boards", err)
		}
		found := false
		for _, view := range views {
			if view.Board.Name == board {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("board %q: %w", board, ErrNotFound)
		}
	}
	views, err := a.service.LoadAll(ctx)
	if err != nil {
		return nil, mapAppError("list tasks", err)
	}
	out := make([]Task, 0, len(views))
	for _, view := range views {
		if board != "" && view.Board != board {
			continue
		}
		out = append(out, mapTaskView(view))
	}
	return out, nil
}

// CreateTask creates one task on an existing board.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	task, err := a.service.CreateTask(ctx, in.Board, in.Text)
	if err != nil {
		return Task{}, mapAppError("create task", err)
	}
	return mapDomainTask(task), nil
}

// EditTask replaces the text of one task.
func (a *AppServiceAdapter) EditTask(ctx context.Context, in EditTaskRequest) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	task, err := a.service.EditTask(ctx, strings.TrimSpace(in.ID), in.Text)
	if err != nil {
		return Task{}, mapAppError("edit task", err)
	}
	return mapDomainTask(task), nil
}

// DeleteTask removes one task.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, id string) error {
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.service.DeleteTask(ctx, strings.TrimSpace(id)); err != nil {
		return mapAppError("delete task", err)
	}
	return nil
}

// MoveTask moves one task to a board position.
func (a *AppServiceAdapter) MoveTask(ctx context.Context, in MoveTaskRequest) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	position := -1
	if in.Position != nil {
		if *in.Position < 0 {
			return Task{}, fmt.Errorf("position must be >= 0: %w", ErrInvalidRequest)
		}
		position = *in.Position
	}
	task, err := a.service.MoveTask(ctx, strings.TrimSpace(in.ID), in.Board, position)
	if err != nil {
		return Task{}, mapAppError("move task", err)
	}
	return mapDomainTask(task), nil
}

// TaskHistory returns the ordered move history of one task.
func (a *AppServiceAdapter) TaskHistory(ctx context.Context, id string) ([]HistoryEntry, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	entries, err := a.service.GetHistory(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, mapAppError("task history", err)
	}
	out := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, HistoryEntry{Board: entry.Board, At: entry.At.UTC()})
	}
	return out, nil
}

// BoardCounts returns the task count of every board.
func (a *AppServiceAdapter) BoardCounts(ctx context.Context) (map[string]int, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	counts, err := a.service.BoardCounts(ctx)
	if err != nil {
		return nil, mapAppError("board counts", err)
	}
	return counts, nil
}

// ExportSnapshot exports every board and task.
func (a *AppServiceAdapter) ExportSnapshot(ctx context.Context) (app.Snapshot, error) {
	if err := a.ready(); err != nil {
		return app.Snapshot{}, err
	}
	snap, err := a.service.ExportSnapshot(ctx)
	if err != nil {
		return app.Snapshot{}, mapAppError("export snapshot", err)
	}
	return snap, nil
}

// ImportSnapshot replaces both collections with a snapshot.
func (a *AppServiceAdapter) ImportSnapshot(ctx context.Context, snap app.Snapshot) error {
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.service.ImportSnapshot(ctx, snap); err != nil {
		return mapAppError("import snapshot", err)
	}
	return nil
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return errors.New("app service adapter is not configured")
	}
	return nil
}

// mapBoardView converts one app board view into its transport shape.
func mapBoardView(view app.BoardView) Board {
	out := Board{
		Name:    view.Board.Name,
		Derived: view.Derived,
		TaskIDs: append([]string{}, view.TaskIDs...),
		Count:   len(view.TaskIDs),
	}
	if !view.Derived && !view.Board.CreatedAt.IsZero() {
		createdAt := view.Board.CreatedAt.UTC()
		out.CreatedAt = &createdAt
	}
	return out
}

// mapTaskView converts one app task view into its transport shape.
func mapTaskView(view app.TaskView) Task {
	return Task{ID: view.ID, Text: view.Text, Board: view.Board, Since: view.Since.UTC()}
}

// mapDomainTask converts one domain task into its transport shape.
func mapDomainTask(task domain.Task) Task {
	return Task{ID: task.ID, Text: task.Text, Board: task.CurrentBoard(), Since: task.Since().UTC()}
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrEmptyText),
		errors.Is(err, app.ErrInvalidPolicy),
		errors.Is(err, app.ErrInvalidSnapshot):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
