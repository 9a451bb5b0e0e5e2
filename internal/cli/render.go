package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mesh-intelligence/habitgrid/internal/grid"
	"github.com/mesh-intelligence/habitgrid/pkg/days"
)

// Cell glyphs.
const (
	glyphChecked   = "■"
	glyphUnchecked = "·"
	glyphInactive  = " "
)

const cellWidth = 3

type gridStyles struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	Today     lipgloss.Style
	Name      lipgloss.Style
	Checked   lipgloss.Style
	Unchecked lipgloss.Style
	Inactive  lipgloss.Style
}

func defaultGridStyles() gridStyles {
	cell := lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Center)
	return gridStyles{
		Title:     lipgloss.NewStyle().Bold(true),
		Header:    cell.Foreground(lipgloss.Color("#8a8f98")),
		Today:     cell.Bold(true).Foreground(lipgloss.Color("#101F38")).Background(lipgloss.Color("#8BC34A")),
		Name:      lipgloss.NewStyle().PaddingRight(1),
		Checked:   cell.Foreground(lipgloss.Color("#8BC34A")),
		Unchecked: cell.Foreground(lipgloss.Color("#d6dae0")),
		Inactive:  cell,
	}
}

// renderGrid draws one line per habit under a two-line header of short
// weekday names and day-of-month numbers. Today's column is highlighted.
func renderGrid(g grid.Grid, s gridStyles) string {
	var sb strings.Builder
	if len(g.Window) > 0 {
		sb.WriteString(s.Title.Render(fmt.Sprintf("%s .. %s", g.Window[0], g.Today)))
		sb.WriteString("\n")
	}
	if len(g.Rows) == 0 {
		sb.WriteString("No habits yet. Add one with: habitgrid add <name>\n")
		return sb.String()
	}

	labels := make([]string, len(g.Rows))
	nameWidth := 0
	for i, row := range g.Rows {
		labels[i] = fmt.Sprintf("%s (%d)", row.Habit.Name, row.Completed)
		nameWidth = max(nameWidth, lipgloss.Width(labels[i]))
	}
	name := s.Name.Width(nameWidth + 1)

	header := func(label func(days.Day) string) {
		sb.WriteString(name.Render(""))
		for _, d := range g.Window {
			if d == g.Today {
				sb.WriteString(s.Today.Render(label(d)))
			} else {
				sb.WriteString(s.Header.Render(label(d)))
			}
		}
		sb.WriteString("\n")
	}
	header(weekdayLabel)
	header(func(d days.Day) string { return string(d)[8:] })

	for i, row := range g.Rows {
		sb.WriteString(name.Render(labels[i]))
		for _, c := range row.Cells {
			switch {
			case !c.Active:
				sb.WriteString(s.Inactive.Render(glyphInactive))
			case c.Checked:
				sb.WriteString(s.Checked.Render(glyphChecked))
			default:
				sb.WriteString(s.Unchecked.Render(glyphUnchecked))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// weekdayLabel returns the two-letter weekday of d, such as "Su".
func weekdayLabel(d days.Day) string {
	t, err := d.Time(time.Local)
	if err != nil {
		return ""
	}
	return t.Weekday().String()[:2]
}
