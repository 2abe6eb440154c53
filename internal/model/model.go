package model

import (
	"errors"
	"fmt"
	"strings"

	"evcal/internal/temporal"
)

var (
	ErrInvalidEvent   = errors.New("invalid event")
	ErrInvalidHoliday = errors.New("invalid holiday")
)

// Reminder describes how far ahead of an event the user wants to be told.
// Delivery is not part of this system; the value is carried for exports.
type Reminder struct {
	PushNotification bool `json:"push_notification" yaml:"push_notification"`
	// MinutesBefore is the lead time in minutes.
	MinutesBefore int `json:"reminder_time" yaml:"reminder_time"`
}

// Event is a single, non-repeating calendar entry.
type Event struct {
	ID string `json:"id" yaml:"id"`
	// Source names the data source that delivered the event ("local" for
	// events created through the API).
	Source string `json:"source" yaml:"-"`

	Title       string `json:"title" yaml:"title"`
	Location    string `json:"location" yaml:"location"`
	Description string `json:"description" yaml:"description"`

	Date      temporal.Date      `json:"date" yaml:"date"`
	StartTime temporal.TimeOfDay `json:"start_time" yaml:"start_time"`
	EndTime   temporal.TimeOfDay `json:"end_time" yaml:"end_time"`

	Urgency  Urgency  `json:"urgency" yaml:"urgency"`
	Color    string   `json:"color" yaml:"color"`
	Reminder Reminder `json:"reminder" yaml:"reminder"`
}

// Validate checks the invariants every stored event must satisfy. EndTime
// before StartTime is allowed.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: empty title (id=%s)", ErrInvalidEvent, e.ID)
	}
	if !e.Date.Valid() {
		return fmt.Errorf("%w: %w (id=%s, date=%s)", ErrInvalidEvent, temporal.ErrMalformedDate, e.ID, e.Date)
	}
	if !e.StartTime.Valid() || !e.EndTime.Valid() {
		return fmt.Errorf("%w: %w (id=%s)", ErrInvalidEvent, temporal.ErrMalformedTime, e.ID)
	}
	if !e.Urgency.Valid() {
		return fmt.Errorf("%w: %w (id=%s, urgency=%d)", ErrInvalidEvent, ErrInvalidUrgency, e.ID, int(e.Urgency))
	}
	if e.Reminder.MinutesBefore < 0 {
		return fmt.Errorf("%w: negative reminder_time (id=%s)", ErrInvalidEvent, e.ID)
	}
	return nil
}

// Holiday is a read-only public holiday.
type Holiday struct {
	ID      string        `json:"id" yaml:"id"`
	Source  string        `json:"source" yaml:"-"`
	Name    string        `json:"name" yaml:"name"`
	Date    temporal.Date `json:"date" yaml:"date"`
	Country string        `json:"country" yaml:"country"`
	Color   string        `json:"color" yaml:"color"`
}

func (h *Holiday) Validate() error {
	if strings.TrimSpace(h.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidHoliday)
	}
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("%w: empty name (id=%s)", ErrInvalidHoliday, h.ID)
	}
	if !h.Date.Valid() {
		return fmt.Errorf("%w: %w (id=%s, date=%s)", ErrInvalidHoliday, temporal.ErrMalformedDate, h.ID, h.Date)
	}
	return nil
}
