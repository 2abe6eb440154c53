package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcal/internal/store"
	"evcal/internal/temporal"
)

func TestGrid_Weeks(t *testing.T) {
	g := NewEngine(store.New()).BuildGrid(march2025, nil)
	weeks := g.Weeks()

	require.Len(t, weeks, 6)
	for _, w := range weeks {
		assert.Len(t, w, 7)
	}
	assert.Equal(t, 1, weeks[0][6].Day)
	assert.Equal(t, 31, weeks[5][1].Day)
	assert.True(t, weeks[5][2].Blank)
}

func TestGrid_Text(t *testing.T) {
	sel := temporal.NewDate(2025, time.March, 2)
	e := NewEngine(sampleStore(t), WithClock(fixedClock()))
	out := e.BuildGrid(march2025, &sel).Text()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	require.Len(t, lines, 8)
	assert.Contains(t, lines[0], "March 2025")
	assert.True(t, strings.HasPrefix(lines[1], " Su"))
	assert.True(t, strings.HasSuffix(lines[2], "  1#"))
	assert.True(t, strings.HasPrefix(lines[3], "> 2 "))
	assert.Contains(t, out, "_14 ")
}
