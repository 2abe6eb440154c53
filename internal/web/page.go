package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"evcal/internal/calendar"
	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/temporal"
)

//go:embed templates/calendar.html
var templatesFS embed.FS

var calendarTmpl = template.Must(template.ParseFS(templatesFS, "templates/calendar.html"))

const upcomingOnPage = 5

type calendarPage struct {
	Title    string
	Weekdays []string
	Weeks    [][]calendar.DayCell
	Grid     calendar.Grid
	Detail   *calendar.Day
	Upcoming []model.Event
}

// handleCalendarPage renders the month as HTML. The capture job screenshots
// this page once the root element carries data-ready="true".
//
// GET /calendar?month=2025-03&day=14
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today := s.engine.Today()

	month := today.YearMonth()
	if v := q.Get("month"); v != "" {
		m, err := temporal.ParseYearMonth(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		month = m
	}

	c := calendar.NewController(s.engine, month)
	if v := q.Get("day"); v != "" {
		day, err := strconv.Atoi(v)
		if err == nil {
			err = c.SelectDay(day)
		}
		if err != nil {
			http.Error(w, calendar.ErrInvalidDayNumber.Error(), http.StatusBadRequest)
			return
		}
	}

	g := c.Grid()
	page := calendarPage{
		Title:    time.Date(g.Month.Year, g.Month.Month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006"),
		Weekdays: g.WeekdayNames(),
		Weeks:    g.Weeks(),
		Grid:     g,
		Upcoming: s.engine.Upcoming(today, upcomingOnPage),
	}
	if d, ok := c.Detail(); ok {
		page.Detail = &d
	}

	var buf bytes.Buffer
	if err := calendarTmpl.Execute(&buf, page); err != nil {
		appLog.Error("calendar page render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
