package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcal/internal/auth"
	"evcal/internal/calendar"
	"evcal/internal/metrics"
	"evcal/internal/model"
	"evcal/internal/store"
	"evcal/internal/temporal"
)

var testClock = temporal.FixedClock{T: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}

func newTestServer(t *testing.T, mutate ...func(*Options)) (*Server, *store.Store) {
	t.Helper()
	st := store.New()
	st.Apply(store.Batch{
		Source: "seed",
		Events: []model.Event{
			{ID: "1", Title: "Event 1", Date: temporal.NewDate(2025, time.March, 1), StartTime: temporal.TimeOfDay{Hour: 10}, EndTime: temporal.TimeOfDay{Hour: 11}, Location: "New York", Urgency: model.UrgencyLow},
			{ID: "2", Title: "Event 2", Date: temporal.NewDate(2025, time.March, 20), StartTime: temporal.TimeOfDay{Hour: 14}, EndTime: temporal.TimeOfDay{Hour: 15}, Urgency: model.UrgencyHigh},
			{ID: "3", Title: "Event 3", Date: temporal.NewDate(2025, time.March, 16), StartTime: temporal.TimeOfDay{Hour: 9}, EndTime: temporal.TimeOfDay{Hour: 10}, Urgency: model.UrgencyMedium},
		},
		Holidays: []model.Holiday{
			{ID: "1", Name: "Holiday 1", Date: temporal.NewDate(2025, time.March, 1), Country: "USA"},
		},
	})

	opts := Options{
		Engine:   calendar.NewEngine(st, calendar.WithClock(testClock)),
		Store:    st,
		Location: time.UTC,
		Metrics:  metrics.New(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewServer(opts), st
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type calendarJSON struct {
	State struct {
		Month    string  `json:"month"`
		Selected *string `json:"selected"`
	} `json:"state"`
	Weekdays []string `json:"weekdays"`
	Grid     struct {
		Month string `json:"month"`
		Cells []struct {
			Blank       bool `json:"blank"`
			Day         int  `json:"day"`
			IsToday     bool `json:"is_today"`
			IsSelected  bool `json:"is_selected"`
			HasEvents   bool `json:"has_events"`
			HasHolidays bool `json:"has_holidays"`
		} `json:"cells"`
	} `json:"grid"`
	Detail *struct {
		Date   string `json:"date"`
		Events []struct {
			ID           string `json:"id"`
			UrgencyLabel string `json:"urgency_label"`
			UrgencyBadge string `json:"urgency_badge"`
		} `json:"events"`
		Holidays []struct {
			Name string `json:"name"`
		} `json:"holidays"`
	} `json:"detail"`
	AddEvent *struct {
		Date string `json:"date"`
		Path string `json:"path"`
	} `json:"add_event"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCalendar(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/calendar?month=2025-03&day=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[calendarJSON](t, rec)
	assert.Equal(t, "2025-03", resp.State.Month)
	require.NotNil(t, resp.State.Selected)
	assert.Equal(t, "2025-03-01", *resp.State.Selected)
	assert.Equal(t, []string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}, resp.Weekdays)

	require.Len(t, resp.Grid.Cells, 37)
	for i := 0; i < 6; i++ {
		assert.True(t, resp.Grid.Cells[i].Blank)
	}
	first := resp.Grid.Cells[6]
	assert.Equal(t, 1, first.Day)
	assert.True(t, first.HasEvents)
	assert.True(t, first.HasHolidays)
	assert.True(t, first.IsSelected)
	assert.True(t, resp.Grid.Cells[6+13].IsToday)

	require.NotNil(t, resp.Detail)
	require.Len(t, resp.Detail.Events, 1)
	assert.Equal(t, "Low", resp.Detail.Events[0].UrgencyLabel)
	assert.Equal(t, "success", resp.Detail.Events[0].UrgencyBadge)
	require.Len(t, resp.Detail.Holidays, 1)
}

func TestCalendar_Defaults(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/calendar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[calendarJSON](t, rec)
	assert.Equal(t, "2025-03", resp.State.Month)
	assert.Nil(t, resp.State.Selected)
	assert.Nil(t, resp.Detail)
}

func TestCalendar_BadInput(t *testing.T) {
	s, _ := newTestServer(t)
	for _, target := range []string{
		"/api/calendar?month=2025-03&day=32",
		"/api/calendar?month=2025-02&day=29",
		"/api/calendar?month=2025-03&day=0",
		"/api/calendar?month=2025-03&day=x",
		"/api/calendar?month=March",
	} {
		rec := do(t, s.Handler(), http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestCalendarView(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/calendar/view", `{"state":{"month":"2025-12","selected":"2025-12-31"},"action":"shift","delta":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[calendarJSON](t, rec)
	assert.Equal(t, "2026-01", resp.State.Month)
	assert.Nil(t, resp.State.Selected)

	rec = do(t, h, http.MethodPost, "/api/calendar/view", `{"state":{"month":"2025-03"},"action":"select","day":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[calendarJSON](t, rec)
	require.NotNil(t, resp.Detail)
	assert.Equal(t, "2025-03-01", resp.Detail.Date)

	rec = do(t, h, http.MethodPost, "/api/calendar/view", `{"state":{"month":"2025-03","selected":"2025-03-01"},"action":"add"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[calendarJSON](t, rec)
	require.NotNil(t, resp.AddEvent)
	assert.Equal(t, "/add-event?date=2025-03-01", resp.AddEvent.Path)

	rec = do(t, h, http.MethodPost, "/api/calendar/view", `{"state":{"month":"2025-03"},"action":"add"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/calendar/view", `{"state":{"month":"2025-03","selected":"2025-03-01"},"action":"clear"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[calendarJSON](t, rec).State.Selected)

	rec = do(t, h, http.MethodPost, "/api/calendar/view", `{"state":{"month":"2025-03"},"action":"select","day":40}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/calendar/view", `{"action":"explode"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDay(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/days/2025-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Event 1"`)
	assert.Contains(t, rec.Body.String(), `"Holiday 1"`)

	rec = do(t, s.Handler(), http.MethodGet, "/api/days/2025-02-30", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEvents(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[struct {
		From   string `json:"from"`
		Events []struct {
			ID string `json:"id"`
		} `json:"events"`
	}](t, rec)
	assert.Equal(t, "2025-03-14", resp.From)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "3", resp.Events[0].ID)
	assert.Equal(t, "2", resp.Events[1].ID)

	rec = do(t, s.Handler(), http.MethodGet, "/api/events?from=2025-03-01&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"1"`)
	assert.NotContains(t, rec.Body.String(), `"id":"3"`)

	assert.Equal(t, http.StatusBadRequest, do(t, s.Handler(), http.MethodGet, "/api/events?limit=-1", "").Code)
}

func TestEventCRUD(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/events", `{"title":"Dentist","date":"2025-03-21","start_time":"08:30","end_time":"09:00","urgency":2,"reminder":{"push_notification":true,"reminder_time":15}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		ID     string `json:"id"`
		Source string `json:"source"`
	}](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, store.LocalSource, created.Source)
	assert.Equal(t, "/api/events/"+created.ID, rec.Header().Get("Location"))

	rec = do(t, h, http.MethodGet, "/api/events/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"urgency_label":"Moderate"`)

	rec = do(t, h, http.MethodPut, "/api/events/"+created.ID, `{"title":"Dentist (moved)","date":"2025-03-22","start_time":"08:30","end_time":"09:00","urgency":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ev, ok := st.Event(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Dentist (moved)", ev.Title)
	assert.Equal(t, store.LocalSource, ev.Source)

	rec = do(t, h, http.MethodDelete, "/api/events/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/events/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/events/"+created.ID, "").Code)
}

func TestEventCRUD_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/events", `{`, http.StatusBadRequest},
		{"urgency out of range", http.MethodPost, "/api/events", `{"title":"x","date":"2025-03-21","urgency":7}`, http.StatusBadRequest},
		{"missing title", http.MethodPost, "/api/events", `{"date":"2025-03-21","urgency":1}`, http.StatusBadRequest},
		{"malformed date", http.MethodPost, "/api/events", `{"title":"x","date":"2025-13-01","urgency":1}`, http.StatusBadRequest},
		{"update unknown", http.MethodPut, "/api/events/nope", `{"title":"x","date":"2025-03-21","urgency":1}`, http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/events/1", `{}`, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(t, h, tt.method, tt.target, tt.body).Code)
		})
	}
}

func TestICSExport(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/calendar.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:Event 1")
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20250301")
}

func TestCalendarPage(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/calendar?month=2025-03&day=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, "March 2025")
	assert.Contains(t, body, "Holiday 1")
	assert.Contains(t, body, `badge success`)

	assert.Equal(t, http.StatusBadRequest, do(t, s.Handler(), http.MethodGet, "/calendar?day=99", "").Code)
}

func TestPreview(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/preview.png", "").Code)

	path := filepath.Join(t.TempDir(), "preview.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG"), 0o600))
	s, _ = newTestServer(t, func(o *Options) { o.PreviewPath = path })
	rec := do(t, s.Handler(), http.MethodGet, "/preview.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestRefresh(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodPost, "/api/refresh", "").Code)

	fail := false
	s, _ = newTestServer(t, func(o *Options) {
		o.Refresh = func(context.Context) error {
			if fail {
				return errors.New("feed down")
			}
			return nil
		}
	})
	assert.Equal(t, http.StatusNoContent, do(t, s.Handler(), http.MethodPost, "/api/refresh", "").Code)
	fail = true
	assert.Equal(t, http.StatusBadGateway, do(t, s.Handler(), http.MethodPost, "/api/refresh", "").Code)
}

func TestBasicAuth(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	s, _ := newTestServer(t, func(o *Options) {
		o.Auth = auth.BasicAuth{Username: "admin", PasswordHash: hash}
	})
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/events", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsCountRequests(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	do(t, h, http.MethodGet, "/api/events/missing", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `evcal_http_requests_total{code="404",route="GET /api/events/{id}"} 1`)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
