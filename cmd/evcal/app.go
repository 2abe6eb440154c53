package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"evcal/internal/calendar"
	"evcal/internal/config"
	"evcal/internal/database"
	appLog "evcal/internal/log"
	"evcal/internal/metrics"
	"evcal/internal/source"
	"evcal/internal/store"
	"evcal/internal/temporal"
)

// app holds the long-lived pieces shared by the server and the grid
// command.
type app struct {
	cfg     *config.Config
	loc     *time.Location
	store   *store.Store
	engine  *calendar.Engine
	metrics *metrics.Metrics
	feeder  *source.Feeder
	db      *database.Database
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		loc:     loc,
		store:   store.New(),
		metrics: metrics.New(),
	}
	a.engine = calendar.NewEngine(a.store,
		calendar.WithClock(temporal.ZoneClock{Loc: loc}),
		calendar.WithWeekStart(cfg.FirstWeekday()),
	)

	sources, err := a.buildSources(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.feeder = source.NewFeeder(a.store, a.metrics, sources...)
	return a, nil
}

func (a *app) buildSources(ctx context.Context) ([]source.Source, error) {
	cfg := a.cfg
	clock := temporal.ZoneClock{Loc: a.loc}
	fetcher := source.NewFetcher(cfg.CacheDir, &http.Client{Timeout: 15 * time.Second})

	var sources []source.Source
	if cfg.SeedFile != "" {
		sources = append(sources, source.Static{Path: cfg.SeedFile})
	}
	for _, c := range cfg.ICS {
		sources = append(sources, source.ICSFeed{ID: c.ID, URL: c.URL, Fetcher: fetcher, Location: a.loc})
	}
	if cfg.HolidayAPI.Country != "" {
		sources = append(sources, source.HolidayAPI{
			BaseURL:    cfg.HolidayAPI.URL,
			Country:    cfg.HolidayAPI.Country,
			YearsAhead: cfg.HolidayAPI.YearsAhead,
			Fetcher:    fetcher,
			Clock:      clock,
		})
	}
	if len(cfg.HolidayRules) > 0 {
		sources = append(sources, source.Rules{Rules: cfg.HolidayRules, YearsAhead: cfg.HolidayAPI.YearsAhead, Clock: clock})
	}
	if cfg.Database.URL != "" {
		db, err := database.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.db = db
		migrations, err := filepath.Abs(cfg.Database.Migrations)
		if err != nil {
			return nil, fmt.Errorf("migrations path: %w", err)
		}
		if err := db.Migrate(migrations); err != nil {
			return nil, err
		}
		sources = append(sources, source.Postgres{DB: db})
	}

	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}
	appLog.Info("data sources configured", "count", len(sources), "sources", names)
	return sources, nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			appLog.Error("database close failed", err)
		}
	}
}
