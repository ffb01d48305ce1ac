package tui

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// Service is the store surface the board UI drives.
type Service interface {
	ListBoards(context.Context) ([]app.BoardView, error)
	LoadAll(context.Context) ([]app.TaskView, error)
	CreateBoard(context.Context, string) (domain.Board, error)
	DeleteBoard(context.Context, string) (int, error)
	CreateTask(context.Context, string, string) (domain.Task, error)
	EditTask(context.Context, string, string) (domain.Task, error)
	DeleteTask(context.Context, string) error
	MoveTask(context.Context, string, string, int) (domain.Task, error)
	BoardCounts(context.Context) (map[string]int, error)
	GetHistory(context.Context, string) ([]domain.HistoryEntry, error)
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeAddTask
	modeEditTask
	modeAddBoard
	modeDeleteBoard
)

// defaultTimeFormat renders history timestamps when no layout is configured.
const defaultTimeFormat = "2006-01-02 15:04:05"

// Model is the bubbletea model for the board view.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error
	status string

	help help.Model
	keys keyMap

	boards             []app.BoardView
	tasks              map[string]app.TaskView
	counts             map[string]int
	selectedBoard      int
	selectedTask       int
	colOffset          int
	pendingFocusTaskID string
	pendingFocusBoard  string

	mode       inputMode
	input      textinput.Model
	editTaskID string

	drag      *app.DragController
	dragMoved bool
	dropping  bool

	popup    *historyPopup
	markdown *markdownRenderer

	timeFormat string
	showCounts bool
	copyText   ClipboardFunc
}

// loadedMsg carries message data through update handling.
type loadedMsg struct {
	boards []app.BoardView
	tasks  []app.TaskView
	err    error
}

// actionMsg carries message data through update handling.
type actionMsg struct {
	err         error
	status      string
	reload      bool
	focusTaskID string
	focusBoard  string
}

// dropMsg carries the outcome of a committed drag.
type dropMsg struct {
	result app.DropResult
	err    error
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:        svc,
		status:     "loading...",
		help:       h,
		keys:       newKeyMap(),
		tasks:      map[string]app.TaskView{},
		counts:     map[string]int{},
		input:      newModalInput("", "", "", 280),
		drag:       app.NewDragController(svc),
		markdown:   newMarkdownRenderer("dark"),
		timeFormat: defaultTimeFormat,
		showCounts: true,
		copyText:   defaultClipboard,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.clampSelections()
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.boards = msg.boards
		m.tasks = make(map[string]app.TaskView, len(msg.tasks))
		for _, task := range msg.tasks {
			m.tasks[task.ID] = task
		}
		m.counts = make(map[string]int, len(m.boards))
		for _, board := range m.boards {
			m.counts[board.Board.Name] = len(board.TaskIDs)
		}
		if m.pendingFocusBoard != "" {
			m.focusBoard(m.pendingFocusBoard)
			m.pendingFocusBoard = ""
		}
		if m.pendingFocusTaskID != "" {
			m.focusTask(m.pendingFocusTaskID)
			m.pendingFocusTaskID = ""
		}
		m.clampSelections()
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			if !app.IsNoop(msg.err) {
				m.status = "error: " + msg.err.Error()
			}
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		if msg.focusTaskID != "" {
			m.pendingFocusTaskID = msg.focusTaskID
		}
		if msg.focusBoard != "" {
			m.pendingFocusBoard = msg.focusBoard
		}
		if msg.reload {
			return m, m.loadData
		}
		return m, nil

	case dropMsg:
		m.dropping = false
		m.dragMoved = false
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, m.loadData
		}
		m.counts = msg.result.Counts
		m.pendingFocusTaskID = msg.result.TaskID
		m.status = "moved to " + msg.result.Board
		return m, m.loadData

	case historyLoadedMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		m.popup = &historyPopup{taskID: msg.taskID, text: msg.text, entries: msg.entries}
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	default:
		if m.mode != modeNone {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

// View handles view.
func (m Model) View() tea.View {
	v := tea.NewView(m.viewContent())
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// viewContent renders the screen for the current state.
func (m Model) viewContent() string {
	switch {
	case m.err != nil:
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	case !m.ready:
		return "loading..."
	default:
		return m.renderBoard()
	}
}

// loadData loads required data for the current operation.
func (m Model) loadData() tea.Msg {
	ctx := context.Background()
	boards, err := m.svc.ListBoards(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	tasks, err := m.svc.LoadAll(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{boards: boards, tasks: tasks}
}

// newModalInput constructs modal input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// startInput opens the text entry modal.
func (m *Model) startInput(mode inputMode, prompt, placeholder, value string) {
	m.mode = mode
	m.input = newModalInput(prompt, placeholder, value, 280)
	m.input.SetWidth(max(20, min(60, m.width-16)))
	m.input.CursorEnd()
	m.input.Focus()
}

// handleNormalModeKey handles keys outside the input modal.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case msg.String() == "esc":
		switch {
		case m.popup != nil:
			m.popup = nil
		case m.help.ShowAll:
			m.help.ShowAll = false
		case m.drag.State() == app.DragDragging && !m.dropping:
			m.drag.Cancel()
			m.dragMoved = false
			m.status = "drag cancelled"
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	case key.Matches(msg, m.keys.boardLeft):
		if m.selectedBoard > 0 {
			m.selectedBoard--
			m.selectedTask = 0
		}
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.boardRight):
		if m.selectedBoard < len(m.boards)-1 {
			m.selectedBoard++
			m.selectedTask = 0
		}
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.taskUp):
		if m.selectedTask > 0 {
			m.selectedTask--
		}
		return m, nil
	case key.Matches(msg, m.keys.taskDown):
		if m.selectedTask < len(m.currentTaskIDs())-1 {
			m.selectedTask++
		}
		return m, nil
	case key.Matches(msg, m.keys.addTask):
		board, ok := m.currentBoard()
		if !ok {
			m.status = "create a board first (" + m.keys.addBoard.Help().Key + ")"
			return m, nil
		}
		m.startInput(modeAddTask, "new task in "+board.Board.Name+": ", "task text", "")
		return m, nil
	case key.Matches(msg, m.keys.editTask):
		task, ok := m.selectedTaskView()
		if !ok {
			return m, nil
		}
		m.editTaskID = task.ID
		m.startInput(modeEditTask, "edit: ", "task text", task.Text)
		return m, nil
	case key.Matches(msg, m.keys.deleteTask):
		task, ok := m.selectedTaskView()
		if !ok {
			return m, nil
		}
		return m, m.deleteTaskCmd(task.ID)
	case key.Matches(msg, m.keys.addBoard):
		m.startInput(modeAddBoard, "new board: ", "board name", "")
		return m, nil
	case key.Matches(msg, m.keys.deleteBoard):
		board, ok := m.currentBoard()
		if !ok {
			return m, nil
		}
		m.startInput(modeDeleteBoard, "delete board: ", "board name", board.Board.Name)
		return m, nil
	case key.Matches(msg, m.keys.moveTaskLeft):
		return m.moveSelectedToBoard(m.selectedBoard - 1)
	case key.Matches(msg, m.keys.moveTaskRight):
		return m.moveSelectedToBoard(m.selectedBoard + 1)
	case key.Matches(msg, m.keys.reorderUp):
		return m.reorderSelected(-1)
	case key.Matches(msg, m.keys.reorderDown):
		return m.reorderSelected(1)
	case key.Matches(msg, m.keys.history):
		task, ok := m.selectedTaskView()
		if !ok {
			return m, nil
		}
		return m, m.loadHistoryCmd(task.ID, task.Text)
	case key.Matches(msg, m.keys.copyText):
		task, ok := m.selectedTaskView()
		if !ok {
			return m, nil
		}
		if err := m.copyText(task.Text); err != nil {
			m.status = "copy failed: " + err.Error()
			return m, nil
		}
		m.status = "copied task text"
		return m, nil
	default:
		return m, nil
	}
}

// handleInputModeKey handles keys while the input modal is open.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.editTaskID = ""
		m.input.Blur()
		m.status = "cancelled"
		return m, nil
	case "enter":
		return m.submitInput()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitInput runs the action for the current modal.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	mode := m.mode
	editID := m.editTaskID
	m.mode = modeNone
	m.editTaskID = ""
	m.input.Blur()

	switch mode {
	case modeAddTask:
		board, ok := m.currentBoard()
		if !ok {
			return m, nil
		}
		name := board.Board.Name
		return m, func() tea.Msg {
			task, err := m.svc.CreateTask(context.Background(), name, value)
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: "task added", reload: true, focusTaskID: task.ID}
		}
	case modeEditTask:
		return m, func() tea.Msg {
			task, err := m.svc.EditTask(context.Background(), editID, value)
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: "task updated", reload: true, focusTaskID: task.ID}
		}
	case modeAddBoard:
		return m, func() tea.Msg {
			board, err := m.svc.CreateBoard(context.Background(), value)
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: "board " + board.Name + " ready", reload: true, focusBoard: board.Name}
		}
	case modeDeleteBoard:
		return m, func() tea.Msg {
			name := domain.NormalizeBoardName(value)
			affected, err := m.svc.DeleteBoard(context.Background(), name)
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: fmt.Sprintf("deleted board %s (%d tasks affected)", name, affected), reload: true}
		}
	}
	return m, nil
}

// deleteTaskCmd deletes one task.
func (m Model) deleteTaskCmd(taskID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.DeleteTask(context.Background(), taskID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "task deleted", reload: true}
	}
}

// moveSelectedToBoard appends the selected task to the board at index target.
func (m Model) moveSelectedToBoard(target int) (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskView()
	if !ok || target < 0 || target >= len(m.boards) || target == m.selectedBoard {
		return m, nil
	}
	board := m.boards[target].Board.Name
	return m, m.moveTaskCmd(task.ID, board, -1)
}

// reorderSelected shifts the selected task within its board.
func (m Model) reorderSelected(delta int) (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskView()
	if !ok {
		return m, nil
	}
	position := m.selectedTask + delta
	if position < 0 || position >= len(m.currentTaskIDs()) {
		return m, nil
	}
	return m, m.moveTaskCmd(task.ID, task.Board, position)
}

// moveTaskCmd moves one task and refocuses it.
func (m Model) moveTaskCmd(taskID, board string, position int) tea.Cmd {
	return func() tea.Msg {
		task, err := m.svc.MoveTask(context.Background(), taskID, board, position)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "moved to " + task.CurrentBoard(), reload: true, focusTaskID: task.ID}
	}
}

// handleMouseClick handles mouse presses: dismissing the popup, selecting, and starting drags.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.popup != nil {
		m.popup = nil
		return m, nil
	}
	if m.help.ShowAll || m.mode != modeNone || m.dropping {
		return m, nil
	}
	bi, ok := m.boardAt(msg.X)
	if !ok {
		return m, nil
	}
	if bi != m.selectedBoard {
		m.selectedBoard = bi
		m.selectedTask = 0
	}
	ti, onCard := m.cardAt(bi, msg.Y)
	if onCard {
		m.selectedTask = ti
	}
	m.clampSelections()
	if !onCard {
		return m, nil
	}

	taskID := m.boards[bi].TaskIDs[ti]
	switch msg.Button {
	case tea.MouseRight:
		return m, m.loadHistoryCmd(taskID, m.tasks[taskID].Text)
	case tea.MouseLeft:
		if err := m.drag.Start(taskID, m.boards[bi].Board.Name); err != nil {
			m.status = "error: " + err.Error()
			return m, nil
		}
		m.dragMoved = false
		_, _ = m.drag.Over(m.boards[bi].Board.Name, m.cardBoxes(bi), float64(msg.Y))
	}
	return m, nil
}

// handleMouseMotion tracks the hovered board while dragging.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if m.drag.State() != app.DragDragging || m.dropping {
		return m, nil
	}
	m.dragMoved = true
	m.trackPointer(msg.X, msg.Y)
	return m, nil
}

// handleMouseRelease drops the in-flight card. A press and release without motion is a plain click.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if m.drag.State() != app.DragDragging || m.dropping {
		return m, nil
	}
	if !m.dragMoved {
		m.drag.Cancel()
		return m, nil
	}
	m.trackPointer(msg.X, msg.Y)
	result, err := m.drag.Finish()
	if err != nil {
		m.status = "error: " + err.Error()
		return m, nil
	}
	m.dragMoved = false
	if result.Reverted {
		m.status = "drop cancelled"
		return m, nil
	}
	m.dropping = true
	svc := m.svc
	return m, func() tea.Msg {
		committed, err := app.CommitDrop(context.Background(), svc, result)
		return dropMsg{result: committed, err: err}
	}
}

// trackPointer feeds pointer position to the drag controller.
func (m Model) trackPointer(x, y int) {
	bi, ok := m.boardAt(x)
	if !ok || !m.inBoardArea(y) {
		m.drag.Leave()
		return
	}
	_, _ = m.drag.Over(m.boards[bi].Board.Name, m.cardBoxes(bi), float64(y))
}

// handleMouseWheel handles mouse wheel.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.popup != nil {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		if m.selectedTask > 0 {
			m.selectedTask--
		}
	case tea.MouseWheelDown:
		if m.selectedTask < len(m.currentTaskIDs())-1 {
			m.selectedTask++
		}
	}
	return m, nil
}

// currentBoard returns the selected board.
func (m Model) currentBoard() (app.BoardView, bool) {
	if len(m.boards) == 0 {
		return app.BoardView{}, false
	}
	return m.boards[clamp(m.selectedBoard, 0, len(m.boards)-1)], true
}

// currentTaskIDs returns the selected board's ordered task ids.
func (m Model) currentTaskIDs() []string {
	board, ok := m.currentBoard()
	if !ok {
		return nil
	}
	return board.TaskIDs
}

// selectedTaskView returns the selected task.
func (m Model) selectedTaskView() (app.TaskView, bool) {
	ids := m.currentTaskIDs()
	if m.selectedTask < 0 || m.selectedTask >= len(ids) {
		return app.TaskView{}, false
	}
	task, ok := m.tasks[ids[m.selectedTask]]
	return task, ok
}

// focusTask selects the task with id wherever it lives.
func (m *Model) focusTask(id string) {
	for bi, board := range m.boards {
		for ti, taskID := range board.TaskIDs {
			if taskID == id {
				m.selectedBoard = bi
				m.selectedTask = ti
				return
			}
		}
	}
}

// focusBoard selects the board named name.
func (m *Model) focusBoard(name string) {
	for bi, board := range m.boards {
		if board.Board.Name == name {
			m.selectedBoard = bi
			m.selectedTask = 0
			return
		}
	}
}

// clampSelections keeps selection and horizontal scroll in range.
func (m *Model) clampSelections() {
	if len(m.boards) == 0 {
		m.selectedBoard = 0
		m.selectedTask = 0
		m.colOffset = 0
		return
	}
	m.selectedBoard = clamp(m.selectedBoard, 0, len(m.boards)-1)
	m.selectedTask = clamp(m.selectedTask, 0, max(0, len(m.boards[m.selectedBoard].TaskIDs)-1))
	visible := m.visibleBoards()
	if m.selectedBoard < m.colOffset {
		m.colOffset = m.selectedBoard
	}
	if m.selectedBoard >= m.colOffset+visible {
		m.colOffset = m.selectedBoard - visible + 1
	}
	m.colOffset = clamp(m.colOffset, 0, max(0, len(m.boards)-visible))
}

// countFor returns the displayed task count of a board.
func (m Model) countFor(board app.BoardView) int {
	if n, ok := m.counts[board.Board.Name]; ok {
		return n
	}
	return len(board.TaskIDs)
}

// renderBoard renders the loaded board screen.
func (m Model) renderBoard() string {
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render("tavla")
	header += statusStyle.Render(fmt.Sprintf("  %d boards • %d tasks", len(m.boards), len(m.tasks)))
	if m.drag.State() == app.DragDragging {
		if task, ok := m.tasks[m.drag.TaskID()]; ok {
			header += statusStyle.Render("  dragging: " + truncate(task.Text, 32))
		}
	}

	var body string
	if len(m.boards) == 0 {
		body = strings.Join([]string{
			"No boards yet.",
			"Press " + m.keys.addBoard.Help().Key + " to create one.",
		}, "\n")
	} else {
		body = m.renderColumns()
	}

	sections := []string{header, "", body, ""}
	if strings.TrimSpace(m.status) != "" {
		sections = append(sections, statusStyle.Render(m.status))
	} else {
		sections = append(sections, "")
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().Foreground(muted).Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	full := content + "\n" + helpLine

	if overlay := m.renderOverlay(); overlay != "" {
		height := lipgloss.Height(full)
		if m.height > 0 {
			height = m.height
		}
		full = overlayOnContent(full, overlay, max(1, m.width), max(1, height))
	}
	return full
}

// renderOverlay renders the active modal, popup, or help panel.
func (m Model) renderOverlay() string {
	accent := lipgloss.Color("62")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	width := max(24, min(72, m.width-8))

	switch {
	case m.mode != modeNone:
		hint := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("enter save • esc cancel")
		return box.Width(width).Render(m.input.View() + "\n\n" + hint)
	case m.popup != nil:
		return box.Width(width).Render(m.renderHistoryPopup(width - 4))
	case m.help.ShowAll:
		full := m.help
		full.ShowAll = true
		full.SetWidth(width - 4)
		return box.Render(full.View(m.keys))
	}
	return ""
}
