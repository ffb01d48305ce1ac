package tui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/hylla/tavla/internal/app"
)

// Screen rows and column sizing for the board grid.
const (
	boardTitleRow  = 2
	cardsTop       = 4
	columnGap      = 1
	minColumnWidth = 18
	maxColumnWidth = 36
	footerLines    = 3
)

// columnWidth returns the width of one board column.
func (m Model) columnWidth() int {
	n := len(m.boards)
	if n == 0 || m.width <= 0 {
		return 28
	}
	return clamp((m.width-(n-1)*columnGap)/n, minColumnWidth, maxColumnWidth)
}

// visibleBoards returns how many columns fit on screen.
func (m Model) visibleBoards() int {
	if len(m.boards) == 0 {
		return 1
	}
	if m.width <= 0 {
		return len(m.boards)
	}
	return clamp((m.width+columnGap)/(m.columnWidth()+columnGap), 1, len(m.boards))
}

// cardRows returns how many card rows fit under the board titles.
func (m Model) cardRows() int {
	if m.height <= 0 {
		return 20
	}
	return max(3, m.height-cardsTop-footerLines)
}

// scrollTop returns the first visible card index of board bi.
func (m Model) scrollTop(bi int) int {
	if bi != m.selectedBoard {
		return 0
	}
	rows := m.cardRows()
	if m.selectedTask >= rows {
		return m.selectedTask - rows + 1
	}
	return 0
}

// boardAt maps a screen column to a board index.
func (m Model) boardAt(x int) (int, bool) {
	if x < 0 || len(m.boards) == 0 {
		return 0, false
	}
	stride := m.columnWidth() + columnGap
	slot := x / stride
	if x%stride >= m.columnWidth() || slot >= m.visibleBoards() {
		return 0, false
	}
	bi := m.colOffset + slot
	if bi >= len(m.boards) {
		return 0, false
	}
	return bi, true
}

// inBoardArea reports whether row y lies within the board grid.
func (m Model) inBoardArea(y int) bool {
	return y >= boardTitleRow && y < cardsTop+m.cardRows()
}

// cardAt maps a screen row to a card index on board bi.
func (m Model) cardAt(bi, y int) (int, bool) {
	if bi < 0 || bi >= len(m.boards) || y < cardsTop || y >= cardsTop+m.cardRows() {
		return 0, false
	}
	idx := y - cardsTop + m.scrollTop(bi)
	if idx >= len(m.boards[bi].TaskIDs) {
		return 0, false
	}
	return idx, true
}

// cardBoxes returns the on-screen geometry of every card on board bi.
func (m Model) cardBoxes(bi int) []app.CardBox {
	ids := m.boards[bi].TaskIDs
	top := m.scrollTop(bi)
	out := make([]app.CardBox, 0, len(ids))
	for i, id := range ids {
		out = append(out, app.CardBox{TaskID: id, Top: float64(cardsTop + i - top), Height: 1})
	}
	return out
}

// renderColumns renders visible boards side by side.
func (m Model) renderColumns() string {
	width := m.columnWidth()
	rows := m.cardRows()
	visible := m.visibleBoards()

	accent := lipgloss.Color("62")
	selectedTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	plainTitle := lipgloss.NewStyle().Bold(true)
	separator := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	selectedCard := lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(accent)
	inFlight := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Faint(true)
	marker := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)

	dragging := m.drag.State() == app.DragDragging
	targetBoard, targetIndex, hovering := m.drag.Target()

	columns := make([][]string, 0, visible)
	for slot := 0; slot < visible; slot++ {
		bi := m.colOffset + slot
		if bi >= len(m.boards) {
			break
		}
		board := m.boards[bi]
		lines := make([]string, 0, rows+2)

		title := board.Board.Name
		if m.showCounts {
			title = fmt.Sprintf("%s (%d)", title, m.countFor(board))
		}
		titleStyle := plainTitle
		if bi == m.selectedBoard {
			titleStyle = selectedTitle
		}
		lines = append(lines, titleStyle.Width(width).Render(truncate(title, width)))
		lines = append(lines, separator.Render(strings.Repeat("─", width)))

		// The marker index counts siblings, so the in-flight card is skipped while mapping it to rows.
		markerRow := -1
		if dragging && hovering && targetBoard == board.Board.Name {
			sibling := 0
			markerRow = len(board.TaskIDs)
			for i, id := range board.TaskIDs {
				if id == m.drag.TaskID() {
					continue
				}
				if sibling == targetIndex {
					markerRow = i
					break
				}
				sibling++
			}
		}

		top := m.scrollTop(bi)
		for row := 0; row < rows; row++ {
			idx := top + row
			var line string
			switch {
			case idx < len(board.TaskIDs):
				id := board.TaskIDs[idx]
				text := m.tasks[id].Text
				prefix := "  "
				if idx == markerRow {
					prefix = marker.Render("▸ ")
				}
				body := truncate(strings.ReplaceAll(text, "\n", " "), width-2)
				switch {
				case dragging && id == m.drag.TaskID():
					body = inFlight.Render(body)
				case bi == m.selectedBoard && idx == m.selectedTask && !dragging:
					body = selectedCard.Render(body)
				}
				line = prefix + body
			case idx == markerRow:
				line = marker.Render("▸ (end)")
			}
			lines = append(lines, lipgloss.NewStyle().Width(width).MaxWidth(width).Render(line))
		}
		columns = append(columns, lines)
	}

	gap := strings.Repeat(" ", columnGap)
	out := make([]string, 0, rows+2)
	for row := 0; row < rows+2; row++ {
		cells := make([]string, 0, len(columns))
		for _, col := range columns {
			cells = append(cells, col[row])
		}
		out = append(out, strings.Join(cells, gap))
	}
	return strings.Join(out, "\n")
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay above base.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	canvas.Compose(baseLayer)
	canvas.Compose(lipgloss.NewLayer(centered).X(0).Y(0).Z(10))
	return canvas.Render()
}

// truncate truncates the requested operation.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
