package tui

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/hylla/tavla/internal/domain"
)

// historyPopup holds the move history shown for one task.
type historyPopup struct {
	taskID  string
	text    string
	entries []domain.HistoryEntry
}

// historyLoadedMsg carries message data through update handling.
type historyLoadedMsg struct {
	taskID  string
	text    string
	entries []domain.HistoryEntry
	err     error
}

// loadHistoryCmd fetches the move history of one task.
func (m Model) loadHistoryCmd(taskID, text string) tea.Cmd {
	return func() tea.Msg {
		entries, err := m.svc.GetHistory(context.Background(), taskID)
		if err != nil {
			return historyLoadedMsg{taskID: taskID, err: err}
		}
		return historyLoadedMsg{taskID: taskID, text: text, entries: entries}
	}
}

// historyLines formats one line per history entry in local time, oldest first.
func historyLines(entries []domain.HistoryEntry, layout string) []string {
	if strings.TrimSpace(layout) == "" {
		layout = defaultTimeFormat
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, fmt.Sprintf("Moved to %s at %s", entry.Board, entry.At.Local().Format(layout)))
	}
	return out
}

// historyMarkdown builds the popup body as markdown.
func historyMarkdown(text string, lines []string) string {
	var b strings.Builder
	b.WriteString("### ")
	b.WriteString(strings.ReplaceAll(strings.TrimSpace(text), "\n", " "))
	b.WriteString("\n\n")
	if len(lines) == 0 {
		b.WriteString("_no history_\n")
		return b.String()
	}
	for i, line := range lines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	return b.String()
}

// renderHistoryPopup renders the popup body at width.
func (m Model) renderHistoryPopup(width int) string {
	if m.popup == nil {
		return ""
	}
	lines := historyLines(m.popup.entries, m.timeFormat)
	md := historyMarkdown(m.popup.text, lines)
	rendered := ""
	if m.markdown != nil {
		rendered = m.markdown.render(md, width)
	}
	if strings.TrimSpace(rendered) == "" {
		rendered = m.popup.text + "\n\n" + strings.Join(lines, "\n")
	}
	return rendered + "\n\nclick anywhere or esc to close"
}
