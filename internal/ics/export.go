package ics

import (
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"evcal/internal/model"
)

const ProductID = "-//evcal//Calendar//EN"

// Export renders events and holidays as one VCALENDAR. Holidays become
// all-day entries; events are timed in loc. Events whose reminder asks for
// a push notification get a DISPLAY alarm.
func Export(events []model.Event, holidays []model.Holiday, loc *time.Location, stamp time.Time) string {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRTimezone(loc.String())

	for _, e := range events {
		if !e.Date.Valid() {
			continue
		}
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		if e.Color != "" {
			ve.SetProperty(componentPropertyColor, e.Color)
		}
		ve.SetProperty(ical.ComponentPropertyPriority, strconv.Itoa(priorityFromUrgency(e.Urgency)))

		start := e.StartTime.On(e.Date, loc)
		end := e.EndTime.On(e.Date, loc)
		if !end.After(start) {
			end = start
		}
		ve.SetStartAt(start)
		ve.SetEndAt(end)

		if e.Reminder.PushNotification {
			alarm := ve.AddAlarm()
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetTrigger(formatTrigger(e.Reminder.MinutesBefore))
			alarm.SetProperty(ical.ComponentPropertyDescription, e.Title)
		}
	}

	for _, h := range holidays {
		if !h.Date.Valid() {
			continue
		}
		ve := cal.AddEvent("holiday-" + h.ID)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(h.Name)
		if h.Country != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, h.Country)
		}
		day := h.Date.In(time.UTC)
		ve.SetAllDayStartAt(day)
		ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
	}

	return cal.Serialize()
}
