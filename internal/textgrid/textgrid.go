// Package textgrid draws grid snapshots for the terminal.
package textgrid

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"chronogrid/internal/layout"
	"chronogrid/internal/model"
	"chronogrid/internal/monthview"
)

// Options tune the rendering. Zero values take the defaults.
type Options struct {
	// CellWidth is the width of one day column (16).
	CellWidth int
	// Renderer decides the colour profile; nil uses lipgloss' default.
	Renderer *lipgloss.Renderer
}

var palette = map[string]string{
	"blue":   "33",
	"red":    "160",
	"green":  "34",
	"yellow": "178",
	"purple": "99",
	"gray":   "245",
}

type styles struct {
	header   lipgloss.Style
	dayNum   lipgloss.Style
	outside  lipgloss.Style
	today    lipgloss.Style
	selected lipgloss.Style
	more     lipgloss.Style
	preview  lipgloss.Style
	cell     lipgloss.Style
	r        *lipgloss.Renderer
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header:   r.NewStyle().Bold(true),
		dayNum:   r.NewStyle().Foreground(lipgloss.Color("252")),
		outside:  r.NewStyle().Foreground(lipgloss.Color("241")),
		today:    r.NewStyle().Underline(true).Bold(true),
		selected: r.NewStyle().Background(lipgloss.Color("24")),
		more:     r.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
		preview:  r.NewStyle().Faint(true),
		cell:     r.NewStyle(),
		r:        r,
	}
}

func (s styles) event(color string) lipgloss.Style {
	c, ok := palette[color]
	if !ok {
		c = palette[model.DefaultEventColor]
	}
	return s.r.NewStyle().Background(lipgloss.Color(c)).Foreground(lipgloss.Color("231"))
}

// Render draws every week of snap: a row of day numbers, one line per span
// lane and then the inline events of each day.
func Render(snap monthview.Snapshot, opts Options) string {
	if opts.CellWidth <= 0 {
		opts.CellWidth = 16
	}
	if opts.Renderer == nil {
		opts.Renderer = lipgloss.DefaultRenderer()
	}
	st := newStyles(opts.Renderer)
	w := opts.CellWidth

	var b strings.Builder
	b.WriteString(st.header.Render(snap.Month.In(time.UTC).Format("January 2006")))
	b.WriteByte('\n')
	for i := 0; i < 7; i++ {
		name := time.Weekday((int(snap.WeekStart) + i) % 7).String()[:3]
		b.WriteString(st.header.Width(w).Render(name))
	}
	b.WriteByte('\n')

	for _, week := range snap.Weeks {
		b.WriteString(strings.Repeat("─", 7*w))
		b.WriteByte('\n')
		renderWeek(&b, week, st, w)
	}
	return b.String()
}

func renderWeek(b *strings.Builder, week monthview.WeekRow, st styles, w int) {
	for _, d := range week.Days {
		label := fmt.Sprintf("%2d", d.Date.Day)
		style := st.dayNum
		switch {
		case d.Today:
			style = st.today
		case !d.InMonth:
			style = st.outside
		}
		if d.Selected {
			style = style.Inherit(st.selected)
		}
		b.WriteString(st.cell.Width(w).Render(style.Render(label)))
	}
	b.WriteByte('\n')

	lanes := week.LaneCount
	if week.Preview != nil {
		lanes = max(lanes, week.Preview.Lane+1)
	}
	for lane := 0; lane < lanes; lane++ {
		b.WriteString(laneLine(week, lane, st, w))
		b.WriteByte('\n')
	}

	rows := 0
	for _, d := range week.Days {
		n := len(d.Inline)
		if d.TodoPreview != nil {
			n++
		}
		if d.Hidden > 0 {
			n++
		}
		rows = max(rows, n)
	}
	for r := 0; r < rows; r++ {
		for _, d := range week.Days {
			b.WriteString(inlineCell(d, r, st, w))
		}
		b.WriteByte('\n')
	}
}

func laneLine(week monthview.WeekRow, lane int, st styles, w int) string {
	var spans [7]*layout.Span
	for i := range week.Spans {
		s := &week.Spans[i]
		if s.Lane == lane {
			spans[s.StartIndex] = s
		}
	}
	if p := week.Preview; p != nil && p.Lane == lane {
		spans[p.StartIndex] = p
	}

	var line strings.Builder
	for idx := 0; idx < 7; {
		s := spans[idx]
		if s == nil {
			line.WriteString(st.cell.Width(w).Render(""))
			idx++
			continue
		}
		width := s.Length * w
		if s.Preview {
			line.WriteString(st.preview.Width(width).Render(strings.Repeat("░", width)))
		} else {
			line.WriteString(st.event(s.Event.Color).Width(width).Render(truncate(s.Event.Title, width-1)))
		}
		idx += s.Length
	}
	return line.String()
}

func inlineCell(d monthview.DayCell, row int, st styles, w int) string {
	items := d.Inline
	if d.TodoPreview != nil {
		if row == 0 {
			return st.preview.Width(w).Render(truncate("+ "+d.TodoPreview.Title, w-1))
		}
		row--
	}
	switch {
	case row < len(items):
		ev := items[row]
		title := ev.Title
		if !ev.AllDay {
			title = ev.Start.Format("15:04") + " " + title
		}
		return st.cell.Width(w).Render(truncate(title, w-1))
	case row == len(items) && d.Hidden > 0:
		return st.more.Width(w).Render(fmt.Sprintf("+%d more", d.Hidden))
	default:
		return st.cell.Width(w).Render("")
	}
}

// truncate cuts s to n cells, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
