package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// DeletePolicy selects what happens to tasks whose board is deleted.
type DeletePolicy string

// DeletePolicyCascade and related constants define package defaults.
const (
	DeletePolicyCascade DeletePolicy = "cascade"
	DeletePolicyUnfiled DeletePolicy = "unfiled"

	DefaultUnfiledBoard = "UNFILED"
)

// Valid reports whether the policy is supported.
func (p DeletePolicy) Valid() bool {
	return p == DeletePolicyCascade || p == DeletePolicyUnfiled
}

// CorruptionHandler receives storage values that could not be decoded.
type CorruptionHandler func(key string, err error)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DeletePolicy DeletePolicy
	UnfiledBoard string
	OnCorrupt    CorruptionHandler
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service owns the board and task collections and persists them after every mutation.
type Service struct {
	mu        sync.Mutex
	store     Storage
	idGen     IDGenerator
	clock     Clock
	policy    DeletePolicy
	unfiled   string
	onCorrupt CorruptionHandler
}

// BoardView is a board with its ordered task ids.
type BoardView struct {
	Board   domain.Board
	TaskIDs []string
	Derived bool
}

// TaskView is the flattened task projection used for rendering.
type TaskView struct {
	ID    string
	Text  string
	Board string
	Since time.Time
}

// NewService constructs a new value for this package.
func NewService(store Storage, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if !cfg.DeletePolicy.Valid() {
		cfg.DeletePolicy = DeletePolicyCascade
	}
	unfiled := domain.NormalizeBoardName(cfg.UnfiledBoard)
	if unfiled == "" {
		unfiled = DefaultUnfiledBoard
	}
	return &Service{
		store:     store,
		idGen:     idGen,
		clock:     clock,
		policy:    cfg.DeletePolicy,
		unfiled:   unfiled,
		onCorrupt: cfg.OnCorrupt,
	}
}

// EnsureDefaultBoards creates the given boards when storage holds no boards or tasks.
func (s *Service) EnsureDefaultBoards(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return err
	}
	if len(st.boards) > 0 || len(st.tasks) > 0 {
		return nil
	}
	now := s.clock()
	for i, name := range names {
		board, err := domain.NewBoard(name, now.Add(time.Duration(i)))
		if err != nil {
			continue
		}
		if _, ok := st.boards[board.Name]; ok {
			continue
		}
		st.boards[board.Name] = board.CreatedAt
	}
	if len(st.boards) == 0 {
		return nil
	}
	return s.saveBoards(ctx, st.boards)
}

// CreateBoard registers a board. Re-creating an existing board refreshes its creation time.
func (s *Service) CreateBoard(ctx context.Context, name string) (domain.Board, error) {
	board, err := domain.NewBoard(name, s.clock())
	if err != nil {
		return domain.Board{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return domain.Board{}, err
	}
	st.boards[board.Name] = board.CreatedAt
	if err := s.saveBoards(ctx, st.boards); err != nil {
		return domain.Board{}, err
	}
	return board, nil
}

// DeleteBoard removes a board and applies the configured policy to its tasks.
// It returns the number of tasks deleted or reassigned.
func (s *Service) DeleteBoard(ctx context.Context, name string) (int, error) {
	name = domain.NormalizeBoardName(name)
	if name == "" {
		return 0, domain.ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	if !st.hasBoard(name) {
		return 0, ErrNotFound
	}

	policy := s.policy
	if name == s.unfiled {
		policy = DeletePolicyCascade
	}
	now := s.clock()
	affected := 0
	kept := make([]domain.Task, 0, len(st.tasks))
	for _, task := range st.tasks {
		if task.CurrentBoard() != name {
			kept = append(kept, task)
			continue
		}
		affected++
		if policy == DeletePolicyUnfiled {
			if _, err := task.MoveTo(s.unfiled, now); err != nil {
				return 0, err
			}
			kept = append(kept, task)
		}
	}
	delete(st.boards, name)
	if policy == DeletePolicyUnfiled && affected > 0 {
		if _, ok := st.boards[s.unfiled]; !ok {
			st.boards[s.unfiled] = now.UTC()
		}
	}
	st.tasks = kept
	if err := s.saveState(ctx, st.tasks, st.boards); err != nil {
		return 0, err
	}
	return affected, nil
}

// ListBoards returns boards ordered by creation time with their ordered task ids.
func (s *Service) ListBoards(ctx context.Context) ([]BoardView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return st.views(), nil
}

// BoardCounts returns the task count of every board, including empty ones.
func (s *Service) BoardCounts(ctx context.Context) (map[string]int, error) {
	boards, err := s.ListBoards(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(boards))
	for _, board := range boards {
		out[board.Board.Name] = len(board.TaskIDs)
	}
	return out, nil
}

// CreateTask appends a new task to the end of board.
func (s *Service) CreateTask(ctx context.Context, board, text string) (domain.Task, error) {
	board = domain.NormalizeBoardName(board)
	if board == "" {
		return domain.Task{}, domain.ErrInvalidName
	}
	if strings.TrimSpace(text) == "" {
		return domain.Task{}, domain.ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	if !st.hasBoard(board) {
		return domain.Task{}, ErrNotFound
	}
	task, err := domain.NewTask(s.idGen(), board, text, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if st.indexOf(task.ID) >= 0 {
		return domain.Task{}, fmt.Errorf("task id %q already exists: %w", task.ID, domain.ErrInvalidID)
	}
	st.tasks = append(st.tasks, task)
	if err := s.saveTasks(ctx, st.tasks); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// EditTask replaces a task's text. Identical text succeeds without writing.
func (s *Service) EditTask(ctx context.Context, id, text string) (domain.Task, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Task{}, domain.ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	idx := st.indexOf(id)
	if idx < 0 {
		return domain.Task{}, ErrNotFound
	}
	changed, err := st.tasks[idx].Edit(text)
	if err != nil {
		return domain.Task{}, err
	}
	if !changed {
		return st.tasks[idx], nil
	}
	if err := s.saveTasks(ctx, st.tasks); err != nil {
		return domain.Task{}, err
	}
	return st.tasks[idx], nil
}

// DeleteTask removes a task and its history.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return err
	}
	idx := st.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	st.tasks = slices.Delete(st.tasks, idx, idx+1)
	return s.saveTasks(ctx, st.tasks)
}

// MoveTask places a task at position among the other tasks of board.
// A negative or out-of-range position appends. History grows only when the board changes.
func (s *Service) MoveTask(ctx context.Context, id, board string, position int) (domain.Task, error) {
	board = domain.NormalizeBoardName(board)
	if board == "" {
		return domain.Task{}, domain.ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	idx := st.indexOf(id)
	if idx < 0 {
		return domain.Task{}, ErrNotFound
	}
	if !st.hasBoard(board) {
		return domain.Task{}, ErrNotFound
	}

	task := st.tasks[idx]
	task.History = task.HistoryCopy()
	if _, err := task.MoveTo(board, s.clock()); err != nil {
		return domain.Task{}, err
	}

	rest := slices.Delete(slices.Clone(st.tasks), idx, idx+1)
	siblings := make([]int, 0, len(rest))
	for i, other := range rest {
		if other.CurrentBoard() == board {
			siblings = append(siblings, i)
		}
	}
	insertAt := len(rest)
	if position >= 0 && position < len(siblings) {
		insertAt = siblings[position]
	} else if len(siblings) > 0 {
		insertAt = siblings[len(siblings)-1] + 1
	}
	st.tasks = slices.Insert(rest, insertAt, task)

	if err := s.saveTasks(ctx, st.tasks); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// GetTask returns one task by id.
func (s *Service) GetTask(ctx context.Context, id string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	idx := st.indexOf(id)
	if idx < 0 {
		return domain.Task{}, ErrNotFound
	}
	return st.tasks[idx], nil
}

// GetHistory returns the full ordered history of a task.
func (s *Service) GetHistory(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return task.HistoryCopy(), nil
}

// LoadAll returns every task on its current board, grouped in board order.
func (s *Service) LoadAll(ctx context.Context) ([]TaskView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Task, len(st.tasks))
	for _, task := range st.tasks {
		byID[task.ID] = task
	}
	out := make([]TaskView, 0, len(st.tasks))
	for _, board := range st.views() {
		for _, id := range board.TaskIDs {
			task := byID[id]
			out = append(out, TaskView{
				ID:    task.ID,
				Text:  task.Text,
				Board: board.Board.Name,
				Since: task.Since(),
			})
		}
	}
	return out, nil
}

// load reads and decodes the persisted state.
func (s *Service) load(ctx context.Context) (state, error) {
	st := state{boards: map[string]time.Time{}}

	rawTasks, ok, err := s.store.GetItem(ctx, TasksKey)
	if err != nil {
		return state{}, fmt.Errorf("read %s: %w", TasksKey, err)
	}
	if ok {
		tasks, dropped, err := decodeTasks(rawTasks)
		switch {
		case err != nil:
			s.reportCorrupt(TasksKey, err)
		case dropped > 0:
			s.reportCorrupt(TasksKey, fmt.Errorf("skipped %d invalid or duplicate tasks", dropped))
		}
		st.tasks = tasks
	}

	rawBoards, ok, err := s.store.GetItem(ctx, BoardsKey)
	if err != nil {
		return state{}, fmt.Errorf("read %s: %w", BoardsKey, err)
	}
	if ok {
		boards, err := decodeBoards(rawBoards)
		if err != nil {
			s.reportCorrupt(BoardsKey, err)
		}
		st.boards = boards
	}
	return st, nil
}

// saveTasks persists the full task collection.
func (s *Service) saveTasks(ctx context.Context, tasks []domain.Task) error {
	raw, err := encodeTasks(tasks)
	if err != nil {
		return err
	}
	if err := s.store.SetItem(ctx, TasksKey, raw); err != nil {
		return fmt.Errorf("write %s: %w", TasksKey, err)
	}
	return nil
}

// saveBoards persists the board registry.
func (s *Service) saveBoards(ctx context.Context, boards map[string]time.Time) error {
	raw, err := encodeBoards(boards)
	if err != nil {
		return err
	}
	if err := s.store.SetItem(ctx, BoardsKey, raw); err != nil {
		return fmt.Errorf("write %s: %w", BoardsKey, err)
	}
	return nil
}

// saveState persists tasks and boards in one batch so neither lands without the other.
func (s *Service) saveState(ctx context.Context, tasks []domain.Task, boards map[string]time.Time) error {
	rawTasks, err := encodeTasks(tasks)
	if err != nil {
		return err
	}
	rawBoards, err := encodeBoards(boards)
	if err != nil {
		return err
	}
	items := map[string]string{TasksKey: rawTasks, BoardsKey: rawBoards}
	if err := s.store.SetItems(ctx, items); err != nil {
		return fmt.Errorf("write %s and %s: %w", TasksKey, BoardsKey, err)
	}
	return nil
}

// reportCorrupt forwards decode failures to the configured handler.
func (s *Service) reportCorrupt(key string, err error) {
	if s.onCorrupt != nil {
		s.onCorrupt(key, err)
	}
}

// indexOf returns the slice index of the task with id, or -1.
func (st state) indexOf(id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	return slices.IndexFunc(st.tasks, func(task domain.Task) bool {
		return task.ID == id
	})
}

// hasBoard reports whether name is registered or referenced by a task.
func (st state) hasBoard(name string) bool {
	if _, ok := st.boards[name]; ok {
		return true
	}
	return slices.ContainsFunc(st.tasks, func(task domain.Task) bool {
		return task.CurrentBoard() == name
	})
}

// views projects state into ordered boards: registered boards by creation time,
// then boards only referenced by tasks in first-seen order.
func (st state) views() []BoardView {
	names := make([]string, 0, len(st.boards))
	for name := range st.boards {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := st.boards[a].Compare(st.boards[b]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	out := make([]BoardView, 0, len(names))
	index := make(map[string]int, len(names))
	for _, name := range names {
		index[name] = len(out)
		out = append(out, BoardView{
			Board:   domain.Board{Name: name, CreatedAt: st.boards[name]},
			TaskIDs: []string{},
		})
	}
	for _, task := range st.tasks {
		board := task.CurrentBoard()
		i, ok := index[board]
		if !ok {
			i = len(out)
			index[board] = i
			out = append(out, BoardView{
				Board:   domain.Board{Name: board},
				TaskIDs: []string{},
				Derived: true,
			})
		}
		out[i].TaskIDs = append(out[i].TaskIDs, task.ID)
	}
	return out
}
