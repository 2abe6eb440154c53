// Package store keeps the ordered in-memory collection of events and
// holidays the calendar engine reads from.
//
// There are two ways in. Data sources deliver whole snapshots through Apply,
// which replaces everything the same source delivered before. Local edits go
// through AddEvent, UpdateEvent and DeleteEvent. The last write wins; nothing
// is merged.
package store

import (
	"errors"
	"fmt"
	"sync"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

// LocalSource tags events created through the API.
const LocalSource = "local"

var (
	ErrNotFound    = errors.New("store: not found")
	ErrDuplicateID = errors.New("store: duplicate id")
)

// Batch is a snapshot from one data source.
type Batch struct {
	Source   string
	Events   []model.Event
	Holidays []model.Holiday
}

// ApplyResult reports what Apply kept and dropped.
type ApplyResult struct {
	Source   string
	Events   int
	Holidays int
	Skipped  int
}

type Store struct {
	mu       sync.RWMutex
	events   []model.Event
	holidays []model.Holiday
	version  uint64
}

func New() *Store {
	return &Store{}
}

// Apply replaces every record previously delivered by b.Source with the
// records in b, keeping their order. Invalid records, and records whose id
// is already held by another source (or repeated within b), are skipped.
// A batch without a source name, or claiming LocalSource, is rejected whole.
func (s *Store) Apply(b Batch) ApplyResult {
	res := ApplyResult{Source: b.Source}
	if b.Source == "" || b.Source == LocalSource {
		appLog.Warn("store: rejecting batch with reserved source name", "source", b.Source)
		res.Skipped = len(b.Events) + len(b.Holidays)
		return res
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]model.Event, 0, len(s.events)+len(b.Events))
	taken := make(map[string]bool, len(s.events))
	for _, e := range s.events {
		if e.Source == b.Source {
			continue
		}
		events = append(events, e)
		taken[e.ID] = true
	}
	for _, e := range b.Events {
		e.Source = b.Source
		if err := e.Validate(); err != nil {
			appLog.Warn("store: skipping event", "source", b.Source, "reason", err.Error())
			res.Skipped++
			continue
		}
		if taken[e.ID] {
			appLog.Warn("store: skipping event with duplicate id", "source", b.Source, "id", e.ID)
			res.Skipped++
			continue
		}
		taken[e.ID] = true
		events = append(events, e)
		res.Events++
	}

	holidays := make([]model.Holiday, 0, len(s.holidays)+len(b.Holidays))
	takenH := make(map[string]bool, len(s.holidays))
	for _, h := range s.holidays {
		if h.Source == b.Source {
			continue
		}
		holidays = append(holidays, h)
		takenH[h.ID] = true
	}
	for _, h := range b.Holidays {
		h.Source = b.Source
		if err := h.Validate(); err != nil {
			appLog.Warn("store: skipping holiday", "source", b.Source, "reason", err.Error())
			res.Skipped++
			continue
		}
		if takenH[h.ID] {
			appLog.Warn("store: skipping holiday with duplicate id", "source", b.Source, "id", h.ID)
			res.Skipped++
			continue
		}
		takenH[h.ID] = true
		holidays = append(holidays, h)
		res.Holidays++
	}

	s.events = events
	s.holidays = holidays
	s.version++
	return res
}

// AddEvent appends a locally created event.
func (s *Store) AddEvent(e model.Event) error {
	if e.Source == "" {
		e.Source = LocalSource
	}
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(e.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	s.events = append(s.events, e)
	s.version++
	return nil
}

// UpdateEvent replaces the event with the same id in place. The stored
// source is kept.
func (s *Store) UpdateEvent(e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(e.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, e.ID)
	}
	e.Source = s.events[i].Source
	if err := e.Validate(); err != nil {
		return err
	}
	s.events[i] = e
	s.version++
	return nil
}

// DeleteEvent removes the event with the given id and reports whether it
// was present. Deleting an unknown id is a no-op.
func (s *Store) DeleteEvent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.events = append(s.events[:i:i], s.events[i+1:]...)
	s.version++
	return true
}

func (s *Store) Event(id string) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Event{}, false
	}
	return s.events[i], true
}

// Events returns a copy of all events in store order.
func (s *Store) Events() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Holidays returns a copy of all holidays in store order.
func (s *Store) Holidays() []model.Holiday {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Holiday, len(s.holidays))
	copy(out, s.holidays)
	return out
}

// Snapshot returns both collections and the version they belong to.
func (s *Store) Snapshot() ([]model.Event, []model.Holiday, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]model.Event, len(s.events))
	copy(events, s.events)
	holidays := make([]model.Holiday, len(s.holidays))
	copy(holidays, s.holidays)
	return events, holidays, s.version
}

// Version changes on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Counts returns the number of events and holidays held.
func (s *Store) Counts() (events, holidays int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), len(s.holidays)
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}
