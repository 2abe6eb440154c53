package database

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcal/internal/model"
	"evcal/internal/temporal"
)

// fakeRow feeds fixed column values to Scan the way database/sql would for
// these column types.
type fakeRow []any

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("scan: %d columns, %d destinations", len(r), len(dest))
	}
	for i, v := range r {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type errRow struct{}

func (errRow) Scan(...any) error { return errors.New("conn reset") }

func eventRow(start string, urgency int) fakeRow {
	return fakeRow{
		"1", "Event 1", "New York", "Description of Event 1",
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		start, "11:00", urgency, "#FF0000", true, 30,
	}
}

func TestScanEvent(t *testing.T) {
	ev, err := scanEvent(eventRow("10:00", 1))
	require.NoError(t, err)

	assert.Equal(t, "1", ev.ID)
	assert.Equal(t, temporal.NewDate(2025, time.March, 1), ev.Date)
	assert.Equal(t, temporal.TimeOfDay{Hour: 10}, ev.StartTime)
	assert.Equal(t, temporal.TimeOfDay{Hour: 11}, ev.EndTime)
	assert.Equal(t, model.UrgencyLow, ev.Urgency)
	assert.Equal(t, model.Reminder{PushNotification: true, MinutesBefore: 30}, ev.Reminder)
	assert.NoError(t, ev.Validate())
}

func TestScanEvent_BadRows(t *testing.T) {
	_, err := scanEvent(eventRow("25:99", 1))
	assert.ErrorIs(t, err, temporal.ErrMalformedTime)

	_, err = scanEvent(eventRow("10:00", 9))
	assert.ErrorIs(t, err, model.ErrInvalidUrgency)

	_, err = scanEvent(errRow{})
	assert.Error(t, err)
}

func TestScanHoliday(t *testing.T) {
	h, err := scanHoliday(fakeRow{"1", "Holiday 1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "USA", ""})
	require.NoError(t, err)
	assert.Equal(t, temporal.NewDate(2025, time.March, 1), h.Date)
	assert.Equal(t, "USA", h.Country)
}
