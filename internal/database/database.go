// Package database reads events and holidays from PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/temporal"
)

// Database wraps the connection pool.
type Database struct {
	*sql.DB
}

// Open connects to databaseURL and pings it.
func Open(ctx context.Context, databaseURL string) (*Database, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	appLog.Info("database connection established")
	return &Database{DB: db}, nil
}

// Migrate applies the migrations found under migrationsPath.
func (d *Database) Migrate(migrationsPath string) error {
	driver, err := postgres.WithInstance(d.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	appLog.Info("database migrations applied", "path", migrationsPath)
	return nil
}

func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

const eventsQuery = `
	SELECT id, title, location, description, event_date, start_time, end_time,
	       urgency, color, push_reminder, reminder_time
	FROM events
	ORDER BY event_date, start_time, id`

const holidaysQuery = `
	SELECT id, name, holiday_date, country, color
	FROM holidays
	ORDER BY holiday_date, id`

// LoadEvents returns every event row. Rows that do not map onto a valid
// event are logged and skipped.
func (d *Database) LoadEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := d.QueryContext(ctx, eventsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			appLog.Warn("database: skipping event row", "reason", err.Error())
			continue
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

func (d *Database) LoadHolidays(ctx context.Context) ([]model.Holiday, error) {
	rows, err := d.QueryContext(ctx, holidaysQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	holidays := make([]model.Holiday, 0)
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			appLog.Warn("database: skipping holiday row", "reason", err.Error())
			continue
		}
		holidays = append(holidays, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read holidays: %w", err)
	}
	return holidays, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.Event, error) {
	var (
		ev         model.Event
		date       time.Time
		start, end string
		urgency    int
	)
	err := row.Scan(
		&ev.ID,
		&ev.Title,
		&ev.Location,
		&ev.Description,
		&date,
		&start,
		&end,
		&urgency,
		&ev.Color,
		&ev.Reminder.PushNotification,
		&ev.Reminder.MinutesBefore,
	)
	if err != nil {
		return model.Event{}, err
	}

	// DATE columns come back as midnight UTC.
	ev.Date = temporal.DateOf(date.UTC())
	if ev.StartTime, err = temporal.ParseTimeOfDay(start); err != nil {
		return model.Event{}, fmt.Errorf("event %s start_time: %w", ev.ID, err)
	}
	if ev.EndTime, err = temporal.ParseTimeOfDay(end); err != nil {
		return model.Event{}, fmt.Errorf("event %s end_time: %w", ev.ID, err)
	}
	if ev.Urgency, err = model.ParseUrgency(urgency); err != nil {
		return model.Event{}, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	return ev, nil
}

func scanHoliday(row scanner) (model.Holiday, error) {
	var (
		h    model.Holiday
		date time.Time
	)
	if err := row.Scan(&h.ID, &h.Name, &date, &h.Country, &h.Color); err != nil {
		return model.Holiday{}, err
	}
	h.Date = temporal.DateOf(date.UTC())
	return h, nil
}
