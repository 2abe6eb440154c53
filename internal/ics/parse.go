package ics

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/temporal"
)

var (
	ErrEmptyBody = errors.New("empty ICS body")
	ErrRecurring = errors.New("recurring events are not supported")
)

var componentPropertyColor = ical.ComponentProperty("COLOR")

// ParseEvents parses one ICS payload into events. Timed events are placed
// on the calendar day they start on in loc; all-day events keep their DATE
// value as is. A VEVENT that cannot be mapped (no UID, no DTSTART, RRULE)
// is logged and skipped without failing the rest of the feed.
func ParseEvents(sourceID string, body []byte, loc *time.Location) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", sourceID)
		return nil, err
	}

	events := make([]model.Event, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", sourceID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", sourceID, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Event, error) {
	var out model.Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.ID = uidProp.Value

	if ve.GetProperty(ical.ComponentPropertyRrule) != nil {
		return out, fmt.Errorf("%w (uid=%s)", ErrRecurring, out.ID)
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(componentPropertyColor); p != nil {
		out.Color = p.Value
	}

	out.Urgency = model.UrgencyMedium
	if p := ve.GetProperty(ical.ComponentPropertyPriority); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			out.Urgency = urgencyFromPriority(n)
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("missing DTSTART (uid=%s)", out.ID)
	}

	if isAllDay(dtStart) {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return out, fmt.Errorf("DTSTART: %w (uid=%s)", err, out.ID)
		}
		// DATE values carry no zone; take the components as written.
		out.Date = temporal.DateOf(start)
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, fmt.Errorf("DTSTART: %w (uid=%s)", err, out.ID)
		}
		start = start.In(loc)
		out.Date = temporal.DateOf(start)
		out.StartTime = temporal.TimeOfDayOf(start)
		out.EndTime = out.StartTime
		if end, err := ve.GetEndAt(); err == nil {
			out.EndTime = temporal.TimeOfDayOf(end.In(loc))
		}
	}

	for _, alarm := range ve.Alarms() {
		trig := alarm.GetProperty(ical.ComponentPropertyTrigger)
		if trig == nil {
			continue
		}
		if mins, ok := parseTriggerMinutes(trig.Value); ok {
			out.Reminder = model.Reminder{PushNotification: true, MinutesBefore: mins}
			break
		}
	}

	return out, nil
}

// isAllDay follows the DTSTART value: VALUE=DATE or no time part.
func isAllDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// urgencyFromPriority maps RFC 5545 PRIORITY (1 highest .. 9 lowest, 0
// undefined) onto the three urgency levels.
func urgencyFromPriority(n int) model.Urgency {
	switch {
	case n >= 1 && n <= 4:
		return model.UrgencyHigh
	case n >= 6 && n <= 9:
		return model.UrgencyLow
	default:
		return model.UrgencyMedium
	}
}

func priorityFromUrgency(u model.Urgency) int {
	switch u {
	case model.UrgencyHigh:
		return 1
	case model.UrgencyLow:
		return 9
	default:
		return 5
	}
}

var triggerRe = regexp.MustCompile(`^-P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseTriggerMinutes understands negative relative durations such as
// -PT30M, -PT1H, -P1DT6H0M. Absolute or positive triggers are ignored.
func parseTriggerMinutes(v string) (int, bool) {
	m := triggerRe.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil || v == "-P" || v == "-PT" {
		return 0, false
	}
	num := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	mins := num(m[1])*7*24*60 + num(m[2])*24*60 + num(m[3])*60 + num(m[4]) + num(m[5])/60
	return mins, true
}

func formatTrigger(minutes int) string {
	return fmt.Sprintf("-PT%dM", minutes)
}
