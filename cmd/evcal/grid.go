package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"evcal/internal/calendar"
	appLog "evcal/internal/log"
	"evcal/internal/temporal"
)

// runGrid implements `evcal grid`: refresh all sources once and print a
// month like cal(1), plus the selected day's entries.
func runGrid(args []string) int {
	fs := flag.NewFlagSet("grid", flag.ExitOnError)
	configPath := fs.String("config", "/etc/evcal/config.yaml", "Path to config file")
	envFile := fs.String("env", ".env", "Optional dotenv file with EVCAL_* overrides")
	monthFlag := fs.String("month", "", "Month to show as YYYY-MM (default: current month)")
	selectFlag := fs.Int("select", 0, "Day of the month to select")
	_ = fs.Parse(args)

	conf, err := loadConfig(*configPath, *envFile, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	// Keep stdout clean for the grid.
	appLog.SetLevel(appLog.LevelWarn)

	ctx := context.Background()
	a, err := newApp(ctx, conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	if _, err := a.feeder.RefreshAll(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	month := a.engine.Today().YearMonth()
	if *monthFlag != "" {
		if month, err = temporal.ParseYearMonth(*monthFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
	}

	c := calendar.NewController(a.engine, month)
	if *selectFlag != 0 {
		if err := c.SelectDay(*selectFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
	}
	printGrid(os.Stdout, c)
	return 0
}

func printGrid(w io.Writer, c *calendar.Controller) {
	fmt.Fprint(w, c.Grid().Text())

	day, ok := c.Detail()
	if !ok {
		return
	}
	fmt.Fprintf(w, "\n%s\n", day.Date)
	if len(day.Events) == 0 && len(day.Holidays) == 0 {
		fmt.Fprintln(w, "  (nothing)")
		return
	}
	for _, h := range day.Holidays {
		fmt.Fprintf(w, "  holiday  %s", h.Name)
		if h.Country != "" {
			fmt.Fprintf(w, " (%s)", h.Country)
		}
		fmt.Fprintln(w)
	}
	for _, e := range day.Events {
		line := fmt.Sprintf("  %s-%s  %s [%s]", e.StartTime, e.EndTime, e.Title, e.Urgency.Label())
		if e.Location != "" {
			line += " @ " + e.Location
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}
