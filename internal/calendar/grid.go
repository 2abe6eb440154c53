package calendar

import (
	"fmt"
	"strings"
	"time"

	"evcal/internal/temporal"
)

// DayCell is one unit of the month view: either a blank before day 1 or a
// numbered day with its flags.
type DayCell struct {
	Blank       bool          `json:"blank"`
	Day         int           `json:"day,omitempty"`
	Date        temporal.Date `json:"-"`
	IsToday     bool          `json:"is_today,omitempty"`
	IsSelected  bool          `json:"is_selected,omitempty"`
	HasEvents   bool          `json:"has_events,omitempty"`
	HasHolidays bool          `json:"has_holidays,omitempty"`
}

// Grid is the ordered cell sequence for one month. It has no trailing
// padding; Weeks adds it for row-based rendering.
type Grid struct {
	Month     temporal.YearMonth `json:"month"`
	WeekStart time.Weekday       `json:"-"`
	Cells     []DayCell          `json:"cells"`
}

// Leading counts the blank cells before day 1.
func (g Grid) Leading() int {
	n := 0
	for _, c := range g.Cells {
		if !c.Blank {
			break
		}
		n++
	}
	return n
}

// Weeks splits the grid into rows of seven, padding the last row.
func (g Grid) Weeks() [][]DayCell {
	var weeks [][]DayCell
	for i := 0; i < len(g.Cells); i += 7 {
		end := min(i+7, len(g.Cells))
		row := make([]DayCell, 0, 7)
		row = append(row, g.Cells[i:end]...)
		for len(row) < 7 {
			row = append(row, DayCell{Blank: true})
		}
		weeks = append(weeks, row)
	}
	return weeks
}

// WeekdayNames returns short weekday headers starting at WeekStart.
func (g Grid) WeekdayNames() []string {
	names := make([]string, 7)
	for i := range names {
		names[i] = time.Weekday((int(g.WeekStart) + i) % 7).String()[:2]
	}
	return names
}

// Text renders the grid like cal(1). Each cell is four columns: a prefix
// ('>' selected, '_' today), the day number, and a marker ('*' events,
// '+' holidays, '#' both).
func (g Grid) Text() string {
	var b strings.Builder
	title := fmt.Sprintf("%s %d", g.Month.Month, g.Month.Year)
	width := 7*5 - 1
	pad := max((width-len(title))/2, 0)
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")

	for i, h := range g.WeekdayNames() {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, " %-3s", h)
	}
	b.WriteString("\n")

	for _, week := range g.Weeks() {
		for i, c := range week {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(cellText(c))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func cellText(c DayCell) string {
	if c.Blank {
		return "    "
	}
	prefix := " "
	switch {
	case c.IsSelected:
		prefix = ">"
	case c.IsToday:
		prefix = "_"
	}
	mark := " "
	switch {
	case c.HasEvents && c.HasHolidays:
		mark = "#"
	case c.HasEvents:
		mark = "*"
	case c.HasHolidays:
		mark = "+"
	}
	return fmt.Sprintf("%s%2d%s", prefix, c.Day, mark)
}
