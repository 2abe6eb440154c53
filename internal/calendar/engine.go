package calendar

import (
	"sort"
	"sync"
	"time"

	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/store"
	"evcal/internal/temporal"
)

// Strategy selects how day markers are computed.
type Strategy int

const (
	// Indexed keeps a per-version day index of the store.
	Indexed Strategy = iota
	// LinearScan walks every record on every grid build.
	LinearScan
)

type Option func(*Engine)

func WithClock(c temporal.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithStrategy(s Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithWeekStart controls the number of leading blanks. Only Sunday (the
// default) and Monday are meaningful.
func WithWeekStart(d time.Weekday) Option {
	return func(e *Engine) { e.weekStart = d }
}

// Engine computes month grids and per-day lookups over a Store. It never
// modifies records; DeleteEvent is the only mutation it forwards.
type Engine struct {
	store     *store.Store
	clock     temporal.Clock
	strategy  Strategy
	weekStart time.Weekday

	mu    sync.Mutex
	index *dayIndex
}

func NewEngine(st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		clock:     temporal.RealClock{},
		strategy:  Indexed,
		weekStart: time.Sunday,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) WeekStart() time.Weekday { return e.weekStart }

// Today is the engine clock's current date.
func (e *Engine) Today() temporal.Date { return temporal.Today(e.clock) }

// Now is the engine clock's current instant.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// BuildGrid lays out month: leading blanks up to the first day, then one
// cell per day in ascending order. selected may be nil.
func (e *Engine) BuildGrid(month temporal.YearMonth, selected *temporal.Date) Grid {
	month = temporal.NormalizeYearMonth(month.Year, int(month.Month))
	hasEvents, hasHolidays := e.marker().mark(month)
	today := temporal.Today(e.clock)

	lead := e.leadingBlanks(month)
	days := month.Days()
	cells := make([]DayCell, 0, lead+days)
	for i := 0; i < lead; i++ {
		cells = append(cells, DayCell{Blank: true})
	}
	for day := 1; day <= days; day++ {
		d := month.Date(day)
		cells = append(cells, DayCell{
			Day:         day,
			Date:        d,
			IsToday:     d == today,
			IsSelected:  selected != nil && *selected == d,
			HasEvents:   hasEvents[day],
			HasHolidays: hasHolidays[day],
		})
	}
	return Grid{Month: month, WeekStart: e.weekStart, Cells: cells}
}

func (e *Engine) leadingBlanks(month temporal.YearMonth) int {
	return (month.FirstWeekday() - int(e.weekStart) + 7) % 7
}

// HasEvents reports whether any event falls on day of month.
func (e *Engine) HasEvents(month temporal.YearMonth, day int) bool {
	month = month.Normalize()
	if !month.ValidDay(day) {
		return false
	}
	events, _ := e.marker().mark(month)
	return events[day]
}

// HasHolidays reports whether any holiday falls on day of month.
func (e *Engine) HasHolidays(month temporal.YearMonth, day int) bool {
	month = month.Normalize()
	if !month.ValidDay(day) {
		return false
	}
	_, holidays := e.marker().mark(month)
	return holidays[day]
}

// EventsOn returns the events on d in store order.
func (e *Engine) EventsOn(d temporal.Date) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range e.store.Events() {
		if ev.Date.Valid() && ev.Date == d {
			out = append(out, ev)
		}
	}
	return out
}

// HolidaysOn returns the holidays on d in store order.
func (e *Engine) HolidaysOn(d temporal.Date) []model.Holiday {
	out := make([]model.Holiday, 0)
	for _, h := range e.store.Holidays() {
		if h.Date.Valid() && h.Date == d {
			out = append(out, h)
		}
	}
	return out
}

// Day bundles what the detail panel shows for one date.
type Day struct {
	Date     temporal.Date   `json:"date"`
	Events   []model.Event   `json:"events"`
	Holidays []model.Holiday `json:"holidays"`
}

func (e *Engine) Day(d temporal.Date) Day {
	return Day{Date: d, Events: e.EventsOn(d), Holidays: e.HolidaysOn(d)}
}

// DeleteEvent removes an event by id. Unknown ids are ignored; the return
// value tells whether anything was removed.
func (e *Engine) DeleteEvent(id string) bool {
	removed := e.store.DeleteEvent(id)
	if removed {
		appLog.Info("calendar: event deleted", "id", id)
	} else {
		appLog.Debug("calendar: delete of unknown event ignored", "id", id)
	}
	return removed
}

// Event looks up one event by id.
func (e *Engine) Event(id string) (model.Event, bool) {
	return e.store.Event(id)
}

// Upcoming returns events on or after from, ordered by date and start
// time. limit <= 0 means no limit.
func (e *Engine) Upcoming(from temporal.Date, limit int) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range e.store.Events() {
		if !ev.Date.Valid() || ev.Date.Before(from) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].StartTime.Minutes() < out[j].StartTime.Minutes()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (e *Engine) marker() marker {
	if e.strategy == LinearScan {
		events, holidays, _ := e.store.Snapshot()
		return scanMarker{events: events, holidays: holidays}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil || e.index.version != e.store.Version() {
		events, holidays, version := e.store.Snapshot()
		e.index = newDayIndex(events, holidays, version)
	}
	return e.index
}
