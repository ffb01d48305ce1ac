package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/tavla/internal/adapters/storage/memory"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// newTestAdapter builds one adapter over an in-memory service with deterministic ids and clock.
func newTestAdapter(t *testing.T) *AppServiceAdapter {
	t.Helper()
	n := 0
	tick := 0
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc := app.NewService(memory.New(), func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}, func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}, app.ServiceConfig{})
	return NewAppServiceAdapter(svc)
}

// TestAdapterBoardAndTaskLifecycle verifies the adapter round-trips every board and task operation.
func TestAdapterBoardAndTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	work, err := a.CreateBoard(ctx, CreateBoardRequest{Name: "work"})
	if err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}
	if work.Name != "WORK" || work.CreatedAt == nil || work.Count != 0 {
		t.Fatalf("unexpected board %#v", work)
	}
	if _, err := a.CreateBoard(ctx, CreateBoardRequest{Name: "done"}); err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}

	task, err := a.CreateTask(ctx, CreateTaskRequest{Board: "WORK", Text: "Write report"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	second, err := a.CreateTask(ctx, CreateTaskRequest{Board: "WORK", Text: "Review"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	zero := 0
	moved, err := a.MoveTask(ctx, MoveTaskRequest{ID: second.ID, Board: "WORK", Position: &zero})
	if err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if moved.Board != "WORK" {
		t.Fatalf("unexpected moved task %#v", moved)
	}
	tasks, err := a.ListTasks(ctx, "work")
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != second.ID {
		t.Fatalf("expected Review first, got %#v", tasks)
	}

	if _, err := a.MoveTask(ctx, MoveTaskRequest{ID: task.ID, Board: "DONE"}); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	history, err := a.TaskHistory(ctx, task.ID)
	if err != nil {
		t.Fatalf("TaskHistory() error = %v", err)
	}
	if len(history) != 2 || history[0].Board != "WORK" || history[1].Board != "DONE" {
		t.Fatalf("unexpected history %#v", history)
	}

	edited, err := a.EditTask(ctx, EditTaskRequest{ID: task.ID, Text: "Write final report"})
	if err != nil {
		t.Fatalf("EditTask() error = %v", err)
	}
	if edited.Text != "Write final report" || edited.Board != "DONE" {
		t.Fatalf("unexpected edited task %#v", edited)
	}

	counts, err := a.BoardCounts(ctx)
	if err != nil {
		t.Fatalf("BoardCounts() error = %v", err)
	}
	if counts["WORK"] != 1 || counts["DONE"] != 1 {
		t.Fatalf("unexpected counts %#v", counts)
	}

	if err := a.DeleteTask(ctx, second.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	result, err := a.DeleteBoard(ctx, "done")
	if err != nil {
		t.Fatalf("DeleteBoard() error = %v", err)
	}
	if result.Board != "DONE" || result.Affected != 1 {
		t.Fatalf("unexpected delete result %#v", result)
	}
	all, err := a.ListTasks(ctx, "")
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected cascade delete to clear tasks, got %#v", all)
	}
}

// TestAdapterErrorMapping verifies app and domain errors map to transport sentinels.
func TestAdapterErrorMapping(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	if _, err := a.CreateBoard(ctx, CreateBoardRequest{Name: "WORK"}); err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}

	if _, err := a.CreateBoard(ctx, CreateBoardRequest{Name: " "}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for blank board, got %v", err)
	}
	if _, err := a.CreateTask(ctx, CreateTaskRequest{Board: "WORK", Text: " "}); !errors.Is(err, ErrInvalidRequest) || !errors.Is(err, domain.ErrEmptyText) {
		t.Fatalf("expected joined empty-text error, got %v", err)
	}
	if _, err := a.CreateTask(ctx, CreateTaskRequest{Board: "NOPE", Text: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown board, got %v", err)
	}
	if _, err := a.TaskHistory(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown task, got %v", err)
	}
	if _, err := a.ListTasks(ctx, "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown board filter, got %v", err)
	}
	negative := -2
	if _, err := a.MoveTask(ctx, MoveTaskRequest{ID: "t1", Board: "WORK", Position: &negative}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for negative position, got %v", err)
	}
	if err := a.ImportSnapshot(ctx, app.Snapshot{Version: "other"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad snapshot, got %v", err)
	}

	var unset *AppServiceAdapter
	if _, err := unset.ListBoards(ctx); err == nil {
		t.Fatal("expected error for unconfigured adapter")
	}
}

// TestAdapterSnapshotRoundTrip verifies export output can be imported unchanged.
func TestAdapterSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	if _, err := a.CreateBoard(ctx, CreateBoardRequest{Name: "WORK"}); err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}
	if _, err := a.CreateTask(ctx, CreateTaskRequest{Board: "WORK", Text: "a"}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	snap, err := a.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}

	b := newTestAdapter(t)
	if err := b.ImportSnapshot(ctx, snap); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	boards, err := b.ListBoards(ctx)
	if err != nil {
		t.Fatalf("ListBoards() error = %v", err)
	}
	if len(boards) != 1 || boards[0].Name != "WORK" || boards[0].Count != 1 {
		t.Fatalf("unexpected imported boards %#v", boards)
	}
}
