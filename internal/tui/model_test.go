package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/hylla/tavla/internal/adapters/storage/memory"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// Board columns are 36 cells wide at 120 columns, so these x values land inside TODO, DOING, and DONE.
const (
	todoX  = 2
	doingX = 40
	doneX  = 80
	offX   = 115
)

func newTestService(t *testing.T) *app.Service {
	t.Helper()
	n := 0
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	svc := app.NewService(memory.New(), func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}, func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}, app.ServiceConfig{})
	ctx := context.Background()
	if err := svc.EnsureDefaultBoards(ctx, []string{"TODO", "DOING", "DONE"}); err != nil {
		t.Fatalf("EnsureDefaultBoards() error = %v", err)
	}
	for _, seed := range []struct{ board, text string }{
		{"TODO", "alpha"},
		{"TODO", "beta"},
		{"TODO", "gamma"},
		{"DONE", "delta"},
	} {
		if _, err := svc.CreateTask(ctx, seed.board, seed.text); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}
	return svc
}

func boardIDs(t *testing.T, svc *app.Service, name string) []string {
	t.Helper()
	boards, err := svc.ListBoards(context.Background())
	if err != nil {
		t.Fatalf("ListBoards() error = %v", err)
	}
	for _, b := range boards {
		if b.Board.Name == name {
			return b.TaskIDs
		}
	}
	return nil
}

func historyLen(t *testing.T, svc *app.Service, id string) int {
	t.Helper()
	history, err := svc.GetHistory(context.Background(), id)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	return len(history)
}

func TestModelLoadsBoardsWithCounts(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))
	if len(m.boards) != 3 {
		t.Fatalf("expected 3 boards, got %d", len(m.boards))
	}
	view := m.viewContent()
	for _, want := range []string{"TODO (3)", "DOING (0)", "DONE (1)", "alpha", "delta"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q\n%s", want, view)
		}
	}

	hidden := loadReadyModel(t, NewModel(svc, WithShowCounts(false)))
	if strings.Contains(hidden.viewContent(), "TODO (3)") {
		t.Fatal("expected counts hidden")
	}
}

func TestModelLoadErrorShowsInView(t *testing.T) {
	m := loadReadyModel(t, NewModel(failingService{newTestService(t)}))
	if m.err == nil || !strings.Contains(m.viewContent(), "storage offline") {
		t.Fatalf("expected load error in view, got %v", m.err)
	}
}

func TestModelKeyboardAddEditDelete(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune('n'))
	if m.mode != modeAddTask {
		t.Fatalf("expected add mode, got %d", m.mode)
	}
	m.input.SetValue("  write report  ")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	ids := boardIDs(t, svc, "TODO")
	if len(ids) != 4 {
		t.Fatalf("expected task appended to TODO, got %v", ids)
	}
	if m.selectedTask != 3 || m.tasks[ids[3]].Text != "write report" {
		t.Fatalf("expected focus on new task, got %d %#v", m.selectedTask, m.tasks[ids[3]])
	}

	m = applyMsg(t, m, keyRune('e'))
	if m.mode != modeEditTask || m.input.Value() != "write report" {
		t.Fatalf("expected edit prefilled, got %d %q", m.mode, m.input.Value())
	}
	m.input.SetValue("write final report")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.tasks[ids[3]].Text != "write final report" {
		t.Fatalf("expected edited text, got %#v", m.tasks[ids[3]])
	}

	m = applyMsg(t, m, keyRune('d'))
	if got := boardIDs(t, svc, "TODO"); len(got) != 3 {
		t.Fatalf("expected task deleted, got %v", got)
	}
	if _, ok := m.tasks[ids[3]]; ok {
		t.Fatal("expected deleted task gone from model")
	}
}

func TestModelEmptyInputIsSilentNoop(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))
	m.status = "ready"

	m = applyMsg(t, m, keyRune('n'))
	m.input.SetValue("   ")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if len(boardIDs(t, svc, "TODO")) != 3 {
		t.Fatal("expected no task for blank text")
	}
	if m.status != "ready" {
		t.Fatalf("expected silent no-op, got status %q", m.status)
	}

	m = applyMsg(t, m, keyRune('n'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.mode != modeNone || m.status != "cancelled" {
		t.Fatalf("expected cancelled modal, got %d %q", m.mode, m.status)
	}
}

func TestModelBoardCreateAndDelete(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune('B'))
	m.input.SetValue("review")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if len(m.boards) != 4 || m.boards[m.selectedBoard].Board.Name != "REVIEW" {
		t.Fatalf("expected REVIEW created and selected, got %#v", m.boards)
	}

	m.selectedBoard = 0
	m = applyMsg(t, m, keyRune('X'))
	if m.mode != modeDeleteBoard || m.input.Value() != "TODO" {
		t.Fatalf("expected delete prefilled with TODO, got %q", m.input.Value())
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if len(m.boards) != 3 || len(m.tasks) != 1 {
		t.Fatalf("expected cascade delete, got %d boards %d tasks", len(m.boards), len(m.tasks))
	}
	if !strings.Contains(m.status, "3 tasks") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestModelKeyboardMoveAndReorder(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))
	first := boardIDs(t, svc, "TODO")[0]

	m = applyMsg(t, m, keyRune(']'))
	if got := boardIDs(t, svc, "DOING"); len(got) != 1 || got[0] != first {
		t.Fatalf("expected alpha in DOING, got %v", got)
	}
	if m.boards[m.selectedBoard].Board.Name != "DOING" {
		t.Fatal("expected focus to follow moved task")
	}
	if historyLen(t, svc, first) != 2 {
		t.Fatal("expected move recorded in history")
	}
	if m.counts["TODO"] != 2 || m.counts["DOING"] != 1 {
		t.Fatalf("unexpected counts %#v", m.counts)
	}

	m = applyMsg(t, m, keyRune('['))
	ids := boardIDs(t, svc, "TODO")
	if ids[len(ids)-1] != first {
		t.Fatalf("expected alpha appended back to TODO, got %v", ids)
	}

	m = applyMsg(t, m, keyRune('K'))
	ids = boardIDs(t, svc, "TODO")
	if ids[1] != first || m.selectedTask != 1 {
		t.Fatalf("expected alpha shifted up, got %v selected %d", ids, m.selectedTask)
	}
	if historyLen(t, svc, first) != 3 {
		t.Fatal("expected reorder to leave history alone")
	}
}

func TestModelDragAcrossBoardsCommits(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))
	alpha := boardIDs(t, svc, "TODO")[0]
	delta := boardIDs(t, svc, "DONE")[0]

	m = applyMsg(t, m, tea.MouseClickMsg{X: todoX, Y: cardsTop, Button: tea.MouseLeft})
	if m.drag.State() != app.DragDragging || m.drag.TaskID() != alpha {
		t.Fatalf("expected drag of alpha, got %s %q", m.drag.State(), m.drag.TaskID())
	}
	m = applyMsg(t, m, tea.MouseMotionMsg{X: doneX, Y: cardsTop, Button: tea.MouseLeft})
	board, index, hovering := m.drag.Target()
	if !hovering || board != "DONE" || index != 0 {
		t.Fatalf("unexpected target %q %d %v", board, index, hovering)
	}
	if !strings.Contains(m.viewContent(), "▸") {
		t.Fatal("expected insertion marker while hovering")
	}

	m = applyMsg(t, m, tea.MouseReleaseMsg{X: doneX, Y: cardsTop, Button: tea.MouseLeft})
	if got := boardIDs(t, svc, "DONE"); len(got) != 2 || got[0] != alpha || got[1] != delta {
		t.Fatalf("expected alpha before delta, got %v", got)
	}
	if m.counts["TODO"] != 2 || m.counts["DONE"] != 2 {
		t.Fatalf("unexpected counts %#v", m.counts)
	}
	if m.dropping || m.status != "moved to DONE" {
		t.Fatalf("unexpected drop state %v %q", m.dropping, m.status)
	}
	if historyLen(t, svc, alpha) != 2 {
		t.Fatal("expected drop recorded in history")
	}
}

func TestModelDropCommitDoesNotTouchDragState(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))
	alpha := boardIDs(t, svc, "TODO")[0]

	m = applyMsg(t, m, tea.MouseClickMsg{X: todoX, Y: cardsTop, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseMotionMsg{X: doneX, Y: cardsTop, Button: tea.MouseLeft})
	updated, cmd := m.Update(tea.MouseReleaseMsg{X: doneX, Y: cardsTop, Button: tea.MouseLeft})
	m = updated.(Model)
	if cmd == nil || !m.dropping {
		t.Fatal("expected a pending commit after release")
	}
	if m.drag.State() != app.DragDropped {
		t.Fatalf("expected dropped state before commit, got %s", m.drag.State())
	}

	done := make(chan tea.Msg, 1)
	go func() {
		done <- cmd()
	}()
	for range 50 {
		_ = m.viewContent()
	}
	m = applyMsg(t, m, <-done)

	if got := boardIDs(t, svc, "DONE"); len(got) != 2 || got[0] != alpha {
		t.Fatalf("expected alpha committed to DONE, got %v", got)
	}
	if m.dropping || m.status != "moved to DONE" {
		t.Fatalf("unexpected drop state %v %q", m.dropping, m.status)
	}
}

func TestModelDragToEmptyBoardAppends(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))
	beta := boardIDs(t, svc, "TODO")[1]

	m = applyMsg(t, m, tea.MouseClickMsg{X: todoX, Y: cardsTop + 1, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseMotionMsg{X: doingX, Y: cardsTop + 5, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: doingX, Y: cardsTop + 5, Button: tea.MouseLeft})
	if got := boardIDs(t, svc, "DOING"); len(got) != 1 || got[0] != beta {
		t.Fatalf("expected beta in DOING, got %v", got)
	}
	if m.counts["DOING"] != 1 {
		t.Fatalf("unexpected counts %#v", m.counts)
	}
}

func TestModelDragWithinBoardReorders(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))
	before := boardIDs(t, svc, "TODO")
	gamma := before[2]

	m = applyMsg(t, m, tea.MouseClickMsg{X: todoX, Y: cardsTop + 2, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseMotionMsg{X: todoX, Y: cardsTop, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: todoX, Y: cardsTop, Button: tea.MouseLeft})
	got := boardIDs(t, svc, "TODO")
	if len(got) != 3 || got[0] != gamma || got[1] != before[0] || got[2] != before[1] {
		t.Fatalf("expected gamma first, got %v", got)
	}
	if historyLen(t, svc, gamma) != 1 {
		t.Fatal("expected same-board drop to leave history alone")
	}
}

func TestModelDropOutsideBoardsReverts(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))
	before := boardIDs(t, svc, "TODO")

	m = applyMsg(t, m, tea.MouseClickMsg{X: todoX, Y: cardsTop, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseMotionMsg{X: doneX, Y: cardsTop, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseMotionMsg{X: offX, Y: cardsTop, Button: tea.MouseLeft})
	if _, _, hovering := m.drag.Target(); hovering {
		t.Fatal("expected pointer outside every board")
	}
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: offX, Y: cardsTop, Button: tea.MouseLeft})
	if m.status != "drop cancelled" {
		t.Fatalf("unexpected status %q", m.status)
	}
	got := boardIDs(t, svc, "TODO")
	if len(got) != len(before) || got[0] != before[0] {
		t.Fatalf("expected TODO unchanged, got %v", got)
	}
	if historyLen(t, svc, before[0]) != 1 {
		t.Fatal("expected no history for reverted drop")
	}
}

func TestModelClickWithoutMotionOnlySelects(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))
	before := boardIDs(t, svc, "TODO")

	m = applyMsg(t, m, tea.MouseClickMsg{X: todoX, Y: cardsTop + 2, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: todoX, Y: cardsTop + 2, Button: tea.MouseLeft})
	if m.selectedTask != 2 || m.drag.State() != app.DragIdle {
		t.Fatalf("expected plain selection, got task %d state %s", m.selectedTask, m.drag.State())
	}
	got := boardIDs(t, svc, "TODO")
	if got[2] != before[2] {
		t.Fatalf("expected order unchanged, got %v", got)
	}
}

func TestModelHistoryPopupOpensAndDismisses(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))
	delta := boardIDs(t, svc, "DONE")[0]

	m = applyMsg(t, m, tea.MouseClickMsg{X: doneX, Y: cardsTop, Button: tea.MouseRight})
	if m.popup == nil || m.popup.taskID != delta || len(m.popup.entries) != 1 {
		t.Fatalf("expected history popup for delta, got %#v", m.popup)
	}
	if v := m.View(); v.Content == nil || !v.AltScreen {
		t.Fatal("expected popup view to render")
	}

	m = applyMsg(t, m, tea.MouseClickMsg{X: todoX, Y: cardsTop, Button: tea.MouseLeft})
	if m.popup != nil {
		t.Fatal("expected click to dismiss popup")
	}
	if m.drag.State() == app.DragDragging {
		t.Fatal("expected dismissing click to be consumed")
	}

	todo := boardIDs(t, svc, "TODO")
	m = applyMsg(t, m, tea.MouseClickMsg{X: todoX, Y: cardsTop, Button: tea.MouseRight})
	if m.popup == nil || m.popup.taskID != todo[0] {
		t.Fatalf("expected popup for alpha, got %#v", m.popup)
	}
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('H'))
	if m.popup == nil || m.popup.taskID != todo[1] || m.popup.text != "beta" {
		t.Fatalf("expected H to replace popup with beta, got %#v", m.popup)
	}
	if n := strings.Count(m.viewContent(), "esc to close"); n != 1 {
		t.Fatalf("expected exactly one popup rendered, got %d", n)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.popup != nil {
		t.Fatal("expected esc to dismiss popup")
	}
}

func TestModelCopyTaskText(t *testing.T) {
	svc := newTestService(t)
	var copied string
	m := loadReadyModel(t, NewModel(svc, WithClipboard(func(text string) error {
		copied = text
		return nil
	})))
	m = applyMsg(t, m, keyRune('y'))
	if copied != "alpha" || m.status != "copied task text" {
		t.Fatalf("unexpected copy %q status %q", copied, m.status)
	}

	failing := loadReadyModel(t, NewModel(svc, WithClipboard(func(string) error {
		return errors.New("no clipboard")
	})))
	failing = applyMsg(t, failing, keyRune('y'))
	if !strings.Contains(failing.status, "no clipboard") {
		t.Fatalf("expected copy failure status, got %q", failing.status)
	}
}

func TestModelKeyConfigOverrides(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc, WithKeyConfig(KeyConfig{AddTask: "a"})))
	m = applyMsg(t, m, keyRune('a'))
	if m.mode != modeAddTask {
		t.Fatal("expected remapped add key to open modal")
	}
}

func TestHistoryLines(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	entries := []domain.HistoryEntry{
		{Board: "TODO", At: at},
		{Board: "DONE", At: at.Add(time.Hour)},
	}
	lines := historyLines(entries, "")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %#v", lines)
	}
	want := "Moved to DONE at " + at.Add(time.Hour).Local().Format(defaultTimeFormat)
	if lines[1] != want {
		t.Fatalf("historyLines()[1] = %q, want %q", lines[1], want)
	}
	md := historyMarkdown("ship it", lines)
	if !strings.HasPrefix(md, "### ship it") || !strings.Contains(md, "2. Moved to DONE") {
		t.Fatalf("unexpected markdown %q", md)
	}
}

func TestBoardAtAndCardAt(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))
	if bi, ok := m.boardAt(doneX); !ok || bi != 2 {
		t.Fatalf("boardAt(%d) = %d, %v", doneX, bi, ok)
	}
	if _, ok := m.boardAt(offX); ok {
		t.Fatal("expected no board past the last column")
	}
	if idx, ok := m.cardAt(0, cardsTop+1); !ok || idx != 1 {
		t.Fatalf("cardAt() = %d, %v", idx, ok)
	}
	if _, ok := m.cardAt(0, cardsTop+3); ok {
		t.Fatal("expected empty row below the last card")
	}
}

type failingService struct {
	*app.Service
}

func (failingService) ListBoards(context.Context) ([]app.BoardView, error) {
	return nil, errors.New("storage offline")
}

func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	return applyMsg(t, applyCmd(t, m, m.Init()), tea.WindowSizeMsg{Width: 120, Height: 40})
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}
