// Package source loads events and holidays from the configured data
// sources and hands them to the store.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"evcal/internal/holiday"
	"evcal/internal/ics"
	"evcal/internal/model"
	"evcal/internal/store"
	"evcal/internal/temporal"
)

// ErrDataSource wraps every failure a source reports to the feeder.
var ErrDataSource = errors.New("data source failed")

// Source produces a full snapshot of its records on every Fetch.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (store.Batch, error)
}

// Static reads events and holidays from a YAML seed file:
//
//	events:
//	  - id: "1"
//	    title: Event 1
//	    date: 2025-03-01
//	    ...
//	holidays:
//	  - id: "1"
//	    name: Holiday 1
//	    date: 2025-03-01
//	    country: USA
//
// The file is re-read on every Fetch.
type Static struct {
	Path string
}

type seedFile struct {
	Events   []model.Event   `yaml:"events"`
	Holidays []model.Holiday `yaml:"holidays"`
}

func (s Static) Name() string { return "seed" }

func (s Static) Fetch(ctx context.Context) (store.Batch, error) {
	if err := ctx.Err(); err != nil {
		return store.Batch{}, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return store.Batch{}, err
	}
	return DecodeSeed(s.Name(), data)
}

// DecodeSeed parses seed YAML. A record with a value that cannot be decoded
// at all (for example urgency 7) fails the whole file, since yaml.v3 has no
// per-item recovery.
func DecodeSeed(name string, data []byte) (store.Batch, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return store.Batch{}, fmt.Errorf("decode seed: %w", err)
	}
	return store.Batch{Source: name, Events: f.Events, Holidays: f.Holidays}, nil
}

// ICSFeed is one subscribed ICS calendar.
type ICSFeed struct {
	ID       string
	URL      string
	Fetcher  *Fetcher
	Location *time.Location
}

func (f ICSFeed) Name() string { return "ics:" + f.ID }

func (f ICSFeed) Fetch(ctx context.Context) (store.Batch, error) {
	p, err := f.Fetcher.Get(ctx, f.URL, "text/calendar")
	if err != nil {
		return store.Batch{}, err
	}
	events, err := ics.ParseEvents(f.ID, p.Body, f.Location)
	if err != nil {
		return store.Batch{}, err
	}
	// Prefix ids so two feeds sharing a UID do not collide.
	for i := range events {
		events[i].ID = f.ID + ":" + events[i].ID
	}
	return store.Batch{Source: f.Name(), Events: events}, nil
}

// HolidayAPI pulls public holidays from a Nager.Date compatible endpoint
// (GET {BaseURL}/PublicHolidays/{year}/{country}) for the current year and
// YearsAhead following years.
type HolidayAPI struct {
	BaseURL    string
	Country    string
	YearsAhead int
	Fetcher    *Fetcher
	Clock      temporal.Clock
}

func (h HolidayAPI) Name() string { return "holidays:" + strings.ToLower(h.Country) }

func (h HolidayAPI) Fetch(ctx context.Context) (store.Batch, error) {
	if h.Country == "" {
		return store.Batch{}, errors.New("holiday api: country not set")
	}
	b := store.Batch{Source: h.Name()}
	for _, year := range years(h.Clock, h.YearsAhead) {
		u, err := url.JoinPath(h.BaseURL, "PublicHolidays", strconv.Itoa(year), h.Country)
		if err != nil {
			return store.Batch{}, err
		}
		p, err := h.Fetcher.Get(ctx, u, "application/json")
		if err != nil {
			return store.Batch{}, fmt.Errorf("holiday api %d: %w", year, err)
		}
		hs, err := holiday.DecodeNager(p.Body)
		if err != nil {
			return store.Batch{}, err
		}
		b.Holidays = append(b.Holidays, hs...)
	}
	return b, nil
}

// Rules expands configured holiday rules for the current year and
// YearsAhead following years.
type Rules struct {
	Rules      []holiday.Rule
	YearsAhead int
	Clock      temporal.Clock
}

func (r Rules) Name() string { return "rules" }

func (r Rules) Fetch(ctx context.Context) (store.Batch, error) {
	if err := ctx.Err(); err != nil {
		return store.Batch{}, err
	}
	b := store.Batch{Source: r.Name()}
	for _, year := range years(r.Clock, r.YearsAhead) {
		b.Holidays = append(b.Holidays, holiday.Expand(r.Rules, year)...)
	}
	return b, nil
}

// Loader is the read side of the events database.
type Loader interface {
	LoadEvents(ctx context.Context) ([]model.Event, error)
	LoadHolidays(ctx context.Context) ([]model.Holiday, error)
}

// Postgres reads events and holidays from the database.
type Postgres struct {
	DB Loader
}

func (p Postgres) Name() string { return "postgres" }

func (p Postgres) Fetch(ctx context.Context) (store.Batch, error) {
	events, err := p.DB.LoadEvents(ctx)
	if err != nil {
		return store.Batch{}, err
	}
	holidays, err := p.DB.LoadHolidays(ctx)
	if err != nil {
		return store.Batch{}, err
	}
	return store.Batch{Source: p.Name(), Events: events, Holidays: holidays}, nil
}

func years(clock temporal.Clock, ahead int) []int {
	if clock == nil {
		clock = temporal.RealClock{}
	}
	if ahead < 0 {
		ahead = 0
	}
	first := clock.Now().Year()
	out := make([]int, 0, ahead+1)
	for y := first; y <= first+ahead; y++ {
		out = append(out, y)
	}
	return out
}
