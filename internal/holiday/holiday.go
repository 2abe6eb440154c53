// Package holiday produces holiday records from recurrence rules and from
// public-holiday API payloads.
package holiday

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/temporal"
)

var ErrInvalidRule = errors.New("invalid holiday rule")

// Rule describes a yearly holiday. Exactly one of RRule and EasterOffset
// decides the date: RRule is an RFC 5545 recurrence (for example
// "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25"), EasterOffset counts days from
// Western Easter Sunday.
type Rule struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Country      string `yaml:"country,omitempty" json:"country,omitempty"`
	Color        string `yaml:"color,omitempty" json:"color,omitempty"`
	RRule        string `yaml:"rrule,omitempty" json:"rrule,omitempty"`
	EasterOffset *int   `yaml:"easter_offset,omitempty" json:"easter_offset,omitempty"`
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: missing name (id=%s)", ErrInvalidRule, r.ID)
	}
	hasRule := strings.TrimSpace(r.RRule) != ""
	if hasRule == (r.EasterOffset != nil) {
		return fmt.Errorf("%w: need exactly one of rrule and easter_offset (id=%s)", ErrInvalidRule, r.ID)
	}
	if hasRule {
		if _, err := rrule.StrToROption(r.RRule); err != nil {
			return fmt.Errorf("%w: %v (id=%s)", ErrInvalidRule, err, r.ID)
		}
	}
	return nil
}

// Expand returns every holiday the rules produce in year. Invalid rules are
// logged and skipped. Holiday ids are "<rule id>-<date>".
func Expand(rules []Rule, year int) []model.Holiday {
	out := make([]model.Holiday, 0, len(rules))
	for _, r := range rules {
		dates, err := r.datesIn(year)
		if err != nil {
			appLog.Warn("holiday rule skipped", "id", r.ID, "reason", err.Error())
			continue
		}
		for _, d := range dates {
			out = append(out, model.Holiday{
				ID:      r.ID + "-" + d.String(),
				Name:    r.Name,
				Date:    d,
				Country: r.Country,
				Color:   r.Color,
			})
		}
	}
	return out
}

func (r Rule) datesIn(year int) ([]temporal.Date, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.EasterOffset != nil {
		return []temporal.Date{Easter(year).AddDays(*r.EasterOffset)}, nil
	}

	rr, err := rrule.StrToRRule(r.RRule)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	// Anchor at noon so every occurrence keeps its civil date.
	start := time.Date(year, time.January, 1, temporal.NeutralHour, 0, 0, 0, time.UTC)
	rr.DTStart(start)

	occ := rr.Between(start, start.AddDate(1, 0, 0), true)
	dates := make([]temporal.Date, 0, len(occ))
	for _, t := range occ {
		if t.Year() != year {
			continue
		}
		dates = append(dates, temporal.DateOf(t))
	}
	return dates, nil
}

// Easter returns Western Easter Sunday for year (Meeus/Jones/Butcher).
func Easter(year int) temporal.Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1
	return temporal.NewDate(year, time.Month(month), day)
}

type nagerHoliday struct {
	Date        string `json:"date"`
	LocalName   string `json:"localName"`
	Name        string `json:"name"`
	CountryCode string `json:"countryCode"`
}

// DecodeNager maps a Nager.Date PublicHolidays response onto holidays.
// Entries with an unparseable date are skipped. Two holidays on the same
// day in the same country get distinct ids.
func DecodeNager(body []byte) ([]model.Holiday, error) {
	var raw []nagerHoliday
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode public holidays: %w", err)
	}

	out := make([]model.Holiday, 0, len(raw))
	seen := make(map[string]int, len(raw))
	for _, h := range raw {
		d, err := temporal.ParseDate(h.Date)
		if err != nil {
			appLog.Warn("public holiday skipped", "date", h.Date, "reason", err.Error())
			continue
		}
		name := h.Name
		if name == "" {
			name = h.LocalName
		}
		id := strings.ToLower(h.CountryCode) + "-" + d.String()
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		out = append(out, model.Holiday{
			ID:      id,
			Name:    name,
			Date:    d,
			Country: h.CountryCode,
		})
	}
	return out, nil
}
