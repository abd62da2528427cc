package tui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/evanschultz/laneboard/internal/app"
	"github.com/evanschultz/laneboard/internal/domain"
)

// laneLayout is one rendered lane column and the screen cells it owns.
type laneLayout struct {
	lane  domain.Lane
	tasks []domain.Task
	// start and end bound the visible task window.
	start  int
	end    int
	view   string
	region app.LaneRegion
}

// cardAt returns the index of the card drawn under p.
func (l laneLayout) cardAt(p app.Point, cardRows int) (int, bool) {
	if !l.region.Contains(p) || cardRows <= 0 {
		return 0, false
	}
	row := p.Y - l.region.Y0 - 1 - laneHeaderRows
	if row < 0 {
		return 0, false
	}
	idx := l.start + row/cardRows
	if idx >= l.end {
		return 0, false
	}
	return idx, true
}

// cardOrigin returns the top-left content cell of card idx.
func (l laneLayout) cardOrigin(idx, cardRows int) app.Point {
	return app.Point{
		X: l.region.X0 + 2,
		Y: l.region.Y0 + 1 + laneHeaderRows + (idx-l.start)*cardRows,
	}
}

// laneRegions extracts drop regions in board order.
func laneRegions(layouts []laneLayout) []app.LaneRegion {
	out := make([]app.LaneRegion, 0, len(layouts))
	for _, layout := range layouts {
		out = append(out, layout.region)
	}
	return out
}

// layoutLanes renders every lane and records its geometry. View and pointer
// hit testing both read this so drop regions always match what is drawn.
func (m Model) layoutLanes() []laneLayout {
	accent := lipgloss.Color("62")
	dropTarget := lipgloss.Color("212")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	laneTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)

	board := m.board
	colWidth := m.columnWidth()
	colHeight := m.columnHeight()
	textWidth := max(1, colWidth-4)
	rows := m.cardRows()
	// border rows, lane header, overflow hint
	visible := max(1, (colHeight-2-laneHeaderRows-1)/rows)

	dragTask, dragging := m.drag.Task()
	focus, hasFocus := m.drag.Focus()

	out := make([]laneLayout, 0, len(board.Lanes))
	x := 0
	for _, column := range board.Lanes {
		selected := int(column.Lane) == m.selectedLane
		focusIdx := 0
		if selected {
			focusIdx = m.selectedTask
		}
		start, end := windowBounds(len(column.Tasks), focusIdx, visible)

		lines := []string{laneTitle.Render(fmt.Sprintf("%s (%d)", column.Lane.Name(), len(column.Tasks))), ""}
		for idx := start; idx < end; idx++ {
			task := column.Tasks[idx]
			lines = append(lines, m.renderCard(task, selected && idx == m.selectedTask, dragging && task.ID == dragTask.ID, textWidth)...)
		}
		if len(column.Tasks) == 0 {
			lines = append(lines, hintStyle.Render("(empty)"))
		}
		if hidden := len(column.Tasks) - (end - start); hidden > 0 {
			lines = append(lines, hintStyle.Render(fmt.Sprintf("+%d more", hidden)))
		}

		borderColor := dim
		switch {
		case hasFocus && focus == column.Lane:
			borderColor = dropTarget
		case selected && !dragging:
			borderColor = accent
		}
		style := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1).
			Width(colWidth).
			Height(colHeight)
		view := style.Render(strings.Join(lines, "\n"))
		w, h := lipgloss.Width(view), lipgloss.Height(view)
		out = append(out, laneLayout{
			lane:  column.Lane,
			tasks: column.Tasks,
			start: start,
			end:   end,
			view:  view,
			region: app.LaneRegion{
				Lane: column.Lane,
				X0:   x,
				Y0:   headerRows,
				X1:   x + w,
				Y1:   headerRows + h,
			},
		})
		// one gap cell between lanes
		x += w + 1
	}
	return out
}

// renderCard renders one card as cardRows lines.
func (m Model) renderCard(task domain.Task, selected, lifted bool, width int) []string {
	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	prefix := "  "
	if selected {
		prefix = "› "
		titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	}
	if lifted {
		titleStyle = titleStyle.Faint(true)
		descStyle = descStyle.Faint(true)
	}
	title := task.Title
	if _, ok := m.pending[task.ID]; ok {
		title += " …"
	}
	lines := []string{titleStyle.Render(truncate(prefix+title, width))}
	if m.showDescription {
		lines = append(lines, descStyle.Render(truncate("  "+firstLine(task.Description), width)))
	}
	return lines
}

// cardRows returns the rendered height of one card.
func (m Model) cardRows() int {
	if m.showDescription {
		return 2
	}
	return 1
}

// columnWidth returns the lane width for the current window.
func (m Model) columnWidth() int {
	return columnWidthFor(m.width)
}

// columnWidthFor splits boardWidth across the lanes, leaving one gap cell between them.
func columnWidthFor(boardWidth int) int {
	lanes := len(domain.Lanes())
	w := 28
	if boardWidth > 0 {
		if candidate := (boardWidth - (lanes - 1)) / lanes; candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, 20, 48)
}

// columnHeight returns the lane height for the current window.
func (m Model) columnHeight() int {
	return max(8, m.height-headerRows-footerRows)
}
