package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"evcal/internal/calendar"
	"evcal/internal/ics"
	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/store"
	"evcal/internal/temporal"
)

const maxRequestBody = 1 << 20

// calendarResponse is one rendered view: the state the client should send
// back with its next action, the grid, and the selected day's detail.
type calendarResponse struct {
	State    calendar.ViewState `json:"state"`
	Weekdays []string           `json:"weekdays"`
	Grid     calendar.Grid      `json:"grid"`
	Detail   *dayResponse       `json:"detail,omitempty"`
	AddEvent *addEventResponse  `json:"add_event,omitempty"`
}

type addEventResponse struct {
	Date string `json:"date"`
	Path string `json:"path"`
}

type dayResponse struct {
	Date     temporal.Date   `json:"date"`
	Events   []eventResponse `json:"events"`
	Holidays []model.Holiday `json:"holidays"`
}

// eventResponse adds the display badge to an event.
type eventResponse struct {
	model.Event
	UrgencyLabel string `json:"urgency_label"`
	UrgencyBadge string `json:"urgency_badge"`
}

func toEventResponse(e model.Event) eventResponse {
	return eventResponse{Event: e, UrgencyLabel: e.Urgency.Label(), UrgencyBadge: e.Urgency.Badge()}
}

func toEventResponses(events []model.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	return out
}

func toDayResponse(d calendar.Day) *dayResponse {
	return &dayResponse{Date: d.Date, Events: toEventResponses(d.Events), Holidays: d.Holidays}
}

func (s *Server) render(c *calendar.Controller) calendarResponse {
	g := c.Grid()
	resp := calendarResponse{State: c.State(), Weekdays: g.WeekdayNames(), Grid: g}
	if d, ok := c.Detail(); ok {
		resp.Detail = toDayResponse(d)
	}
	return resp
}

// handleCalendar renders a month.
//
// GET /api/calendar?month=2025-03&day=14
//   - month: YYYY-MM, defaults to the current month
//   - day:   optional day to select; out of range is a 400
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	month := s.engine.Today().YearMonth()
	if v := q.Get("month"); v != "" {
		m, err := temporal.ParseYearMonth(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		month = m
	}

	c := calendar.NewController(s.engine, month)
	if v := q.Get("day"); v != "" {
		day, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: %q", calendar.ErrInvalidDayNumber, v))
			return
		}
		if err := c.SelectDay(day); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, s.render(c))
}

// viewRequest is one user action applied to a view state.
type viewRequest struct {
	State  calendar.ViewState `json:"state"`
	Action string             `json:"action"`
	Delta  int                `json:"delta,omitempty"`
	Day    int                `json:"day,omitempty"`
}

// handleCalendarView applies an action to a client-held view state:
// shift (delta months), select (day), clear, add.
func (s *Server) handleCalendarView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.State.Month == (temporal.YearMonth{}) {
		req.State.Month = s.engine.Today().YearMonth()
	}

	c := calendar.RestoreController(s.engine, req.State)
	var add *addEventResponse

	switch req.Action {
	case "shift":
		c.ShiftMonth(req.Delta)
	case "select":
		if err := c.SelectDay(req.Day); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	case "clear":
		c.ClearSelection()
	case "add":
		ar, err := c.RequestAddEvent()
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		add = &addEventResponse{Date: ar.Date, Path: ar.Path()}
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}

	resp := s.render(c)
	resp.AddEvent = add
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/days/{date}
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	d, err := temporal.ParseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toDayResponse(s.engine.Day(d)))
}

// handleListEvents lists upcoming events.
//
// GET /api/events?from=2025-03-01&limit=10
//   - from:  YYYY-MM-DD, defaults to today
//   - limit: maximum number of events, 0 for all
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from := s.engine.Today()
	if v := q.Get("from"); v != "" {
		d, err := temporal.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		from = d
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	type listResponse struct {
		From   temporal.Date   `json:"from"`
		Events []eventResponse `json:"events"`
	}
	writeJSON(w, http.StatusOK, listResponse{From: from, Events: toEventResponses(s.engine.Upcoming(from, limit))})
}

// POST /api/events. The id is assigned by the server.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev.ID = uuid.NewString()
	ev.Source = store.LocalSource

	if err := s.store.AddEvent(ev); err != nil {
		s.writeStoreError(w, err)
		return
	}
	appLog.Info("api event created", "id", ev.ID, "date", ev.Date)
	w.Header().Set("Location", "/api/events/"+ev.ID)
	writeJSON(w, http.StatusCreated, toEventResponse(ev))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.engine.Event(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(ev))
}

// PUT /api/events/{id} replaces the event. The path id wins over any id
// in the body.
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev.ID = r.PathValue("id")

	if err := s.store.UpdateEvent(ev); err != nil {
		s.writeStoreError(w, err)
		return
	}
	updated, _ := s.store.Event(ev.ID)
	writeJSON(w, http.StatusOK, toEventResponse(updated))
}

// DELETE /api/events/{id} always answers 204; deleting an unknown id is
// not an error.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	s.engine.DeleteEvent(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	body := ics.Export(s.store.Events(), s.store.Holidays(), s.loc, s.engine.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	_, _ = io.WriteString(w, body)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("api store write failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
