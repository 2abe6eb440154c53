package calendar

import (
	"cmp"

	"github.com/rdleal/intervalst/interval"

	"evcal/internal/model"
	"evcal/internal/temporal"
)

// marker answers, for one displayed month, which days carry at least one
// event and at least one holiday. Both slices are indexed by day number;
// index 0 is unused.
type marker interface {
	mark(month temporal.YearMonth) (events, holidays []bool)
}

// scanMarker walks every record for each query.
type scanMarker struct {
	events   []model.Event
	holidays []model.Holiday
}

func (m scanMarker) mark(month temporal.YearMonth) ([]bool, []bool) {
	month = month.Normalize()
	n := month.Days()
	events := make([]bool, n+1)
	holidays := make([]bool, n+1)

	for _, e := range m.events {
		// Records without a resolvable day are skipped, never fatal.
		if !e.Date.Valid() || !month.Contains(e.Date) {
			continue
		}
		events[e.Date.Day] = true
	}
	for _, h := range m.holidays {
		if !h.Date.Valid() || !month.Contains(h.Date) {
			continue
		}
		holidays[h.Date.Day] = true
	}
	return events, holidays
}

// dayIndex is built once per store version. Occupied days are kept in
// interval search trees so a month is answered with one range query.
//
// Intervals are closed, so day d is stored as [2d, 2d+1]: neighbouring days
// never touch and a month query [2first, 2last+1] cannot pick up the last
// day of the previous month.
type dayIndex struct {
	version  uint64
	events   *interval.SearchTree[int, int]
	holidays *interval.SearchTree[int, int]
}

func newDayIndex(events []model.Event, holidays []model.Holiday, version uint64) *dayIndex {
	eventDays := make(map[int]struct{})
	for _, e := range events {
		if e.Date.Valid() {
			eventDays[e.Date.Ordinal()] = struct{}{}
		}
	}
	holidayDays := make(map[int]struct{})
	for _, h := range holidays {
		if h.Date.Valid() {
			holidayDays[h.Date.Ordinal()] = struct{}{}
		}
	}
	return &dayIndex{
		version:  version,
		events:   buildDayTree(eventDays),
		holidays: buildDayTree(holidayDays),
	}
}

func buildDayTree(days map[int]struct{}) *interval.SearchTree[int, int] {
	tree := interval.NewSearchTree[int](cmp.Compare[int])
	for ord := range days {
		// Only fails for start > end, which cannot happen here.
		_ = tree.Insert(2*ord, 2*ord+1, ord)
	}
	return tree
}

func (ix *dayIndex) mark(month temporal.YearMonth) ([]bool, []bool) {
	month = month.Normalize()
	n := month.Days()
	first := month.Date(1).Ordinal()
	last := first + n - 1
	return daysIn(ix.events, first, last, n), daysIn(ix.holidays, first, last, n)
}

func daysIn(tree *interval.SearchTree[int, int], first, last, n int) []bool {
	out := make([]bool, n+1)
	ords, ok := tree.AllIntersections(2*first, 2*last+1)
	if !ok {
		return out
	}
	for _, ord := range ords {
		out[ord-first+1] = true
	}
	return out
}
