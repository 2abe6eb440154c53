package calendar

import (
	"errors"
	"fmt"
	"net/url"

	"evcal/internal/temporal"
)

var (
	ErrInvalidDayNumber = errors.New("calendar: invalid day number")
	ErrNoSelection      = errors.New("calendar: no day selected")
)

// ViewState is what the calendar screen shows: a month and at most one
// selected day inside it.
type ViewState struct {
	Month    temporal.YearMonth `json:"month"`
	Selected *temporal.Date     `json:"selected,omitempty"`
}

// AddEventRequest asks the presentation layer to open the add-event form
// with the date preselected.
type AddEventRequest struct {
	Date string `json:"date"`
}

// Path is the route the form lives at.
func (r AddEventRequest) Path() string {
	return "/add-event?" + url.Values{"date": {r.Date}}.Encode()
}

// Controller tracks the view state of one calendar screen and turns user
// actions into engine queries. It is not safe for concurrent use; each
// screen (or request) owns its own.
type Controller struct {
	engine *Engine
	state  ViewState
}

func NewController(engine *Engine, month temporal.YearMonth) *Controller {
	return &Controller{
		engine: engine,
		state:  ViewState{Month: temporal.NormalizeYearMonth(month.Year, int(month.Month))},
	}
}

// RestoreController rebuilds a controller from a state a client sent back.
// A selection outside the month is dropped.
func RestoreController(engine *Engine, st ViewState) *Controller {
	c := NewController(engine, st.Month)
	if st.Selected != nil && st.Selected.Valid() && c.state.Month.Contains(*st.Selected) {
		sel := *st.Selected
		c.state.Selected = &sel
	}
	return c
}

func (c *Controller) State() ViewState {
	st := c.state
	if st.Selected != nil {
		sel := *st.Selected
		st.Selected = &sel
	}
	return st
}

// ShiftMonth moves the displayed month by delta, rolling the year over.
// A selection that is no longer inside the displayed month is cleared.
func (c *Controller) ShiftMonth(delta int) {
	c.state.Month = c.state.Month.Shift(delta)
	if c.state.Selected != nil && !c.state.Month.Contains(*c.state.Selected) {
		c.state.Selected = nil
	}
}

// SelectDay selects day of the displayed month. Out-of-range days are
// rejected with ErrInvalidDayNumber and leave the state untouched.
func (c *Controller) SelectDay(day int) error {
	if !c.state.Month.ValidDay(day) {
		return fmt.Errorf("%w: %d not in 1..%d for %s", ErrInvalidDayNumber, day, c.state.Month.Days(), c.state.Month)
	}
	d := c.state.Month.Date(day)
	c.state.Selected = &d
	return nil
}

func (c *Controller) ClearSelection() {
	c.state.Selected = nil
}

// RequestAddEvent returns the navigation request for the add-event form,
// carrying the selected date as YYYY-MM-DD built from its components.
func (c *Controller) RequestAddEvent() (AddEventRequest, error) {
	if c.state.Selected == nil {
		return AddEventRequest{}, ErrNoSelection
	}
	return AddEventRequest{Date: c.state.Selected.String()}, nil
}

func (c *Controller) Grid() Grid {
	return c.engine.BuildGrid(c.state.Month, c.state.Selected)
}

// Detail returns the selected day's events and holidays.
func (c *Controller) Detail() (Day, bool) {
	if c.state.Selected == nil {
		return Day{}, false
	}
	return c.engine.Day(*c.state.Selected), true
}

// DeleteEvent removes an event; the next Grid call reflects it.
func (c *Controller) DeleteEvent(id string) bool {
	return c.engine.DeleteEvent(id)
}
