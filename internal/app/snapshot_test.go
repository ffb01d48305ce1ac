package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSnapshotExportImportRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	mustBoard(t, svc, "WORK")
	mustBoard(t, svc, "DONE")
	task := mustTask(t, svc, "WORK", "a")
	mustTask(t, svc, "WORK", "b")
	if _, err := svc.MoveTask(ctx, task.ID, "DONE", -1); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}

	snap, err := svc.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if snap.Version != SnapshotVersion || len(snap.Boards) != 2 || len(snap.Tasks) != 2 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}

	target, _ := newTestService(t, ServiceConfig{})
	if err := target.ImportSnapshot(ctx, snap); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	history, err := target.GetHistory(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 2 || history[1].Board != "DONE" {
		t.Fatalf("unexpected imported history %#v", history)
	}
	counts, _ := target.BoardCounts(ctx)
	if counts["WORK"] != 1 || counts["DONE"] != 1 {
		t.Fatalf("unexpected imported counts %#v", counts)
	}
}

func TestSnapshotValidate(t *testing.T) {
	now := time.Now()
	cases := []Snapshot{
		{Version: "other"},
		{Boards: []SnapshotBoard{{Name: " "}}},
		{Boards: []SnapshotBoard{{Name: "a"}, {Name: "A"}}},
		{Tasks: []SnapshotTask{{ID: "t1", Text: "x"}}},
		{Tasks: []SnapshotTask{{ID: "t1", Text: "", History: []SnapshotHistory{{Board: "A", At: now}}}}},
		{Tasks: []SnapshotTask{
			{ID: "t1", Text: "x", History: []SnapshotHistory{{Board: "A", At: now}}},
			{ID: "t1", Text: "y", History: []SnapshotHistory{{Board: "A", At: now}}},
		}},
	}
	for i, snap := range cases {
		if err := snap.Validate(); !errors.Is(err, ErrInvalidSnapshot) {
			t.Fatalf("case %d: expected ErrInvalidSnapshot, got %v", i, err)
		}
	}
}
