package app

import (
	"context"
	"testing"
	"time"
)

func TestMigrateLegacyConvertsBoardKeys(t *testing.T) {
	svc, store := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	store.items["WORK"] = `[{"colId":"WORK","boardCreationDate":"2024-03-01 09:00:00"},{"text":"Write report","date":"Task Added in TODO: 2024-03-02 10:30:00"}]`
	store.items["DONE"] = `[{"text":"Ship","date":"garbage"}]`
	store.items["BoardsName"] = `["WORK","DONE"]`
	store.items["settings"] = `{"theme":"dark"}`

	report, err := svc.MigrateLegacy(ctx)
	if err != nil {
		t.Fatalf("MigrateLegacy() error = %v", err)
	}
	if report.Boards != 2 || report.Tasks != 2 || len(report.Keys) != 2 {
		t.Fatalf("unexpected report %#v", report)
	}
	if _, ok := store.items["WORK"]; ok {
		t.Fatal("expected legacy WORK key removed")
	}
	if _, ok := store.items["settings"]; !ok {
		t.Fatal("expected non-legacy key kept")
	}
	if _, ok := store.items["BoardsName"]; !ok {
		t.Fatal("expected reserved key kept")
	}

	views, err := svc.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	byText := map[string]TaskView{}
	for _, v := range views {
		byText[v.Text] = v
	}
	report1, ok := byText["Write report"]
	if !ok || report1.Board != "WORK" {
		t.Fatalf("unexpected migrated views %#v", views)
	}
	want := time.Date(2024, 3, 2, 10, 30, 0, 0, time.Local).UTC()
	if !report1.Since.Equal(want) {
		t.Fatalf("unexpected since %v want %v", report1.Since, want)
	}
	if ship, ok := byText["Ship"]; !ok || ship.Board != "DONE" || ship.Since.IsZero() {
		t.Fatalf("expected fallback date for Ship, got %#v", ship)
	}

	boards, _ := svc.ListBoards(ctx)
	if len(boards) != 2 || boards[0].Board.Name != "WORK" {
		t.Fatalf("expected WORK first by creation date, got %#v", boards)
	}

	again, err := svc.MigrateLegacy(ctx)
	if err != nil {
		t.Fatalf("MigrateLegacy() second run error = %v", err)
	}
	if len(again.Keys) != 0 {
		t.Fatalf("expected second run to be a no-op, got %#v", again)
	}
}

func TestParseLegacyDate(t *testing.T) {
	fallback := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := parseLegacyDate("3/2/2024, 10:30:00 AM", fallback)
	want := time.Date(2024, 3, 2, 10, 30, 0, 0, time.Local).UTC()
	if !got.Equal(want) {
		t.Fatalf("parseLegacyDate() = %v, want %v", got, want)
	}
	if got := parseLegacyDate("", fallback); !got.Equal(fallback) {
		t.Fatalf("expected fallback for empty, got %v", got)
	}
}
