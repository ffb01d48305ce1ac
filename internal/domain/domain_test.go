package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewBoardNormalizesName(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.FixedZone("x", 3600))
	b, err := NewBoard("  work ", now)
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	if b.Name != "WORK" {
		t.Fatalf("unexpected name %q", b.Name)
	}
	if b.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC created_at, got %v", b.CreatedAt.Location())
	}
	if _, err := NewBoard("   ", now); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestNewTaskValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewTask("", "work", "x", now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := NewTask("t1", " ", "x", now); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := NewTask("t1", "work", "  ", now); err != ErrEmptyText {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestTaskMoveAppendsOnlyOnBoardChange(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	task, err := NewTask("t1", "work", "Write report", now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.CurrentBoard() != "WORK" {
		t.Fatalf("unexpected board %q", task.CurrentBoard())
	}

	moved, err := task.MoveTo("work", now.Add(time.Minute))
	if err != nil || moved {
		t.Fatalf("MoveTo(same) = %v, %v", moved, err)
	}
	if len(task.History) != 1 {
		t.Fatalf("expected history length 1, got %d", len(task.History))
	}

	moved, err = task.MoveTo("done", now.Add(2*time.Minute))
	if err != nil || !moved {
		t.Fatalf("MoveTo(done) = %v, %v", moved, err)
	}
	if len(task.History) != 2 || task.CurrentBoard() != "DONE" {
		t.Fatalf("unexpected history %#v", task.History)
	}
	if !task.Since().Equal(now.Add(2 * time.Minute)) {
		t.Fatalf("unexpected since %v", task.Since())
	}
	if task.History[0].Board != "WORK" {
		t.Fatalf("expected first entry to be preserved, got %#v", task.History[0])
	}
}

func TestTaskEditKeepsHistory(t *testing.T) {
	now := time.Now()
	task, _ := NewTask("t1", "work", "a", now)
	_, _ = task.MoveTo("done", now)
	before := task.HistoryCopy()

	changed, err := task.Edit(" b ")
	if err != nil || !changed {
		t.Fatalf("Edit() = %v, %v", changed, err)
	}
	if task.Text != "b" {
		t.Fatalf("unexpected text %q", task.Text)
	}
	if len(task.History) != len(before) {
		t.Fatalf("edit changed history length")
	}
	changed, err = task.Edit("b")
	if err != nil || changed {
		t.Fatalf("Edit(identical) = %v, %v", changed, err)
	}
	if _, err := task.Edit(""); err != ErrEmptyText {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestTaskValidate(t *testing.T) {
	task := Task{ID: "t1", Text: "x"}
	if err := task.Validate(); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
	task.History = []HistoryEntry{{Board: "A"}}
	if err := task.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
