package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// keyMap represents key map data used by this package.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	boardLeft     key.Binding
	boardRight    key.Binding
	taskUp        key.Binding
	taskDown      key.Binding
	addTask       key.Binding
	editTask      key.Binding
	deleteTask    key.Binding
	addBoard      key.Binding
	deleteBoard   key.Binding
	moveTaskLeft  key.Binding
	moveTaskRight key.Binding
	reorderUp     key.Binding
	reorderDown   key.Binding
	history       key.Binding
	copyText      key.Binding
}

// KeyConfig holds user overrides for rebindable actions. Blank fields keep defaults.
type KeyConfig struct {
	AddTask    string
	EditTask   string
	DeleteTask string
	History    string
	CopyText   string
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		boardLeft:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "board left")),
		boardRight:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "board right")),
		taskUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		taskDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		addTask:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		editTask:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit task")),
		deleteTask:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete task")),
		addBoard:      key.NewBinding(key.WithKeys("B", "shift+b"), key.WithHelp("B", "new board")),
		deleteBoard:   key.NewBinding(key.WithKeys("X", "shift+x"), key.WithHelp("X", "delete board")),
		moveTaskLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move to previous board")),
		moveTaskRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move to next board")),
		reorderUp:     key.NewBinding(key.WithKeys("K", "shift+k"), key.WithHelp("K", "reorder up")),
		reorderDown:   key.NewBinding(key.WithKeys("J", "shift+j"), key.WithHelp("J", "reorder down")),
		history:       key.NewBinding(key.WithKeys("H", "shift+h"), key.WithHelp("H", "history")),
		copyText:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy text")),
	}
}

// applyConfig rebinds overridable actions.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.addTask, cfg.AddTask, "n", "new task")
	configureBinding(&k.editTask, cfg.EditTask, "e", "edit task")
	configureBinding(&k.deleteTask, cfg.DeleteTask, "d", "delete task")
	configureBinding(&k.history, cfg.History, "H", "history")
	configureBinding(&k.copyText, cfg.CopyText, "y", "copy text")
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.addTask, k.editTask, k.deleteTask, k.addBoard, k.history, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addTask, k.editTask, k.deleteTask, k.history, k.copyText},
		{k.boardLeft, k.boardRight, k.taskUp, k.taskDown},
		{k.moveTaskLeft, k.moveTaskRight, k.reorderUp, k.reorderDown},
		{k.addBoard, k.deleteBoard, k.reload, k.toggleHelp, k.quit},
	}
}

// configureBinding replaces a binding's keys with raw, falling back when raw is blank.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys expands a configured key into matcher aliases and its help label.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if strings.EqualFold(raw, "space") {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + strings.ToLower(raw)}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}
