package app

import (
	"context"
	"strings"

	"github.com/hylla/tavla/internal/domain"
)

// DragState describes the lifecycle of one drag gesture.
type DragState int

// DragIdle and related constants enumerate drag states.
const (
	DragIdle DragState = iota
	DragDragging
	DragDropped
)

// String returns the state name.
func (s DragState) String() string {
	switch s {
	case DragDragging:
		return "dragging"
	case DragDropped:
		return "dropped"
	default:
		return "idle"
	}
}

// CardBox is the vertical extent of one rendered card.
type CardBox struct {
	TaskID string
	Top    float64
	Height float64
}

// Mover is the store surface a drag commits through.
type Mover interface {
	MoveTask(ctx context.Context, id, board string, position int) (domain.Task, error)
	BoardCounts(ctx context.Context) (map[string]int, error)
}

// DropResult reports the outcome of a drop.
type DropResult struct {
	TaskID   string
	Board    string
	Index    int
	Reverted bool
	Task     domain.Task
	Counts   map[string]int
}

// DragController tracks one in-flight card and commits it to the store on drop.
type DragController struct {
	mover    Mover
	state    DragState
	taskID   string
	origin   string
	target   string
	index    int
	beforeID string
	hovering bool
}

// NewDragController constructs a new value for this package.
func NewDragController(mover Mover) *DragController {
	return &DragController{mover: mover}
}

// InsertionPoint returns where a card dropped at pointer y lands among cards.
// The in-flight card is ignored. The chosen card is the one whose midpoint lies
// below y by the smallest margin; the first card wins ties. With no such card
// the result is the end of the list and beforeID is empty.
func InsertionPoint(cards []CardBox, inFlightID string, y float64) (int, string) {
	index := 0
	best := -1
	bestGap := 0.0
	beforeID := ""
	for _, card := range cards {
		if card.TaskID == inFlightID {
			continue
		}
		gap := card.Top + card.Height/2 - y
		if gap > 0 && (best < 0 || gap < bestGap) {
			best = index
			bestGap = gap
			beforeID = card.TaskID
		}
		index++
	}
	if best < 0 {
		return index, ""
	}
	return best, beforeID
}

// State returns the current drag state.
func (d *DragController) State() DragState {
	return d.state
}

// TaskID returns the in-flight task id.
func (d *DragController) TaskID() string {
	return d.taskID
}

// Origin returns the board the in-flight task was picked up from.
func (d *DragController) Origin() string {
	return d.origin
}

// Target returns the hovered board and insertion index.
func (d *DragController) Target() (string, int, bool) {
	return d.target, d.index, d.hovering
}

// Start picks up a task from its origin board.
func (d *DragController) Start(taskID, origin string) error {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return domain.ErrInvalidID
	}
	if d.state == DragDragging {
		return ErrDragInProgress
	}
	d.state = DragDragging
	d.taskID = taskID
	d.origin = domain.NormalizeBoardName(origin)
	d.clearTarget()
	return nil
}

// Over records the pointer hovering board at y over the given card boxes.
func (d *DragController) Over(board string, cards []CardBox, y float64) (int, error) {
	if d.state != DragDragging {
		return 0, ErrNoDragInProgress
	}
	board = domain.NormalizeBoardName(board)
	if board == "" {
		d.clearTarget()
		return 0, domain.ErrInvalidName
	}
	d.index, d.beforeID = InsertionPoint(cards, d.taskID, y)
	d.target = board
	d.hovering = true
	return d.index, nil
}

// Leave records that the pointer is outside every board.
func (d *DragController) Leave() {
	if d.state == DragDragging {
		d.clearTarget()
	}
}

// Finish ends the gesture and reports where the card lands without touching the store.
// Outside a board the result is reverted to the origin.
func (d *DragController) Finish() (DropResult, error) {
	if d.state != DragDragging {
		return DropResult{}, ErrNoDragInProgress
	}
	d.state = DragDropped
	result := DropResult{TaskID: d.taskID, Board: d.origin, Index: -1}
	if !d.hovering {
		result.Reverted = true
		return result, nil
	}
	result.Board = d.target
	result.Index = d.index
	if d.beforeID == "" {
		result.Index = -1
	}
	return result, nil
}

// CommitDrop applies a finished drop to the store and refreshes every board count.
// Reverted drops are returned unchanged.
func CommitDrop(ctx context.Context, mover Mover, result DropResult) (DropResult, error) {
	if result.Reverted {
		return result, nil
	}
	task, err := mover.MoveTask(ctx, result.TaskID, result.Board, result.Index)
	if err != nil {
		return result, err
	}
	result.Task = task
	counts, err := mover.BoardCounts(ctx)
	if err != nil {
		return result, err
	}
	result.Counts = counts
	return result, nil
}

// Drop ends the gesture and commits it through the controller's mover.
func (d *DragController) Drop(ctx context.Context) (DropResult, error) {
	result, err := d.Finish()
	if err != nil {
		return result, err
	}
	return CommitDrop(ctx, d.mover, result)
}

// Cancel abandons the gesture without touching the store.
func (d *DragController) Cancel() {
	d.state = DragIdle
	d.taskID = ""
	d.origin = ""
	d.clearTarget()
}

// clearTarget forgets the hovered board.
func (d *DragController) clearTarget() {
	d.target = ""
	d.index = 0
	d.beforeID = ""
	d.hovering = false
}
