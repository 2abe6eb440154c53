package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcal/internal/calendar"
	"evcal/internal/temporal"
)

func TestLoopback(t *testing.T) {
	cases := map[string]string{
		":8080":          "127.0.0.1:8080",
		"0.0.0.0:9000":   "127.0.0.1:9000",
		"[::]:9000":      "127.0.0.1:9000",
		"10.0.0.5:8080":  "10.0.0.5:8080",
		"localhost:8080": "localhost:8080",
		"garbage":        "garbage",
	}
	for in, want := range cases {
		assert.Equal(t, want, loopback(in), in)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, "timezone: Nowhere/Special\n")
	_, err := loadConfig(path, "", false)
	assert.ErrorContains(t, err, "Nowhere/Special")
}

func TestSeededGrid(t *testing.T) {
	seed, err := filepath.Abs(filepath.Join("..", "..", "testdata", "seed.yaml"))
	require.NoError(t, err)

	path := writeConfig(t, "timezone: UTC\nseed_file: "+seed+"\ncache_dir: "+t.TempDir()+"\n")
	conf, err := loadConfig(path, "", false)
	require.NoError(t, err)

	a, err := newApp(context.Background(), conf)
	require.NoError(t, err)
	defer a.Close()
	require.Len(t, a.feeder.Sources(), 1)

	_, err = a.feeder.RefreshAll(context.Background())
	require.NoError(t, err)
	events, holidays := a.store.Counts()
	assert.Equal(t, 2, events)
	assert.Equal(t, 2, holidays)

	c := calendar.NewController(a.engine, temporal.YearMonth{Year: 2025, Month: time.March})
	require.NoError(t, c.SelectDay(1))

	var buf bytes.Buffer
	printGrid(&buf, c)
	out := buf.String()

	assert.Contains(t, out, "March 2025")
	assert.Contains(t, out, "> 1#")
	assert.Contains(t, out, "  2#")
	assert.Contains(t, out, "2025-03-01\n")
	assert.Contains(t, out, "  holiday  Holiday 1 (USA)\n")
	assert.Contains(t, out, "  10:00-11:00  Event 1 [Moderate] @ New York\n")
	assert.NotContains(t, out, "Event 2")
}

func TestPrintGrid_NoSelection(t *testing.T) {
	path := writeConfig(t, "timezone: UTC\ncache_dir: "+t.TempDir()+"\n")
	conf, err := loadConfig(path, "", false)
	require.NoError(t, err)
	a, err := newApp(context.Background(), conf)
	require.NoError(t, err)
	defer a.Close()

	c := calendar.NewController(a.engine, temporal.YearMonth{Year: 2025, Month: time.February})
	var buf bytes.Buffer
	printGrid(&buf, c)

	assert.Contains(t, buf.String(), "February 2025")
	assert.NotContains(t, buf.String(), "(nothing)")
}
