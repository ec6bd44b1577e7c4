package core

import (
	"fmt"
	"time"
)

// Week is a Monday to Sunday span overlapping a month. Start and End may
// fall in the neighbouring months.
type Week struct {
	Num   int
	Start time.Time
	End   time.Time
	Label string
}

// Contains reports whether t falls on one of the week's days.
func (w Week) Contains(t time.Time) bool {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days returns the seven dates of the week.
func (w Week) Days() []time.Time {
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = w.Start.AddDate(0, 0, i)
	}
	return days
}

// WeeksInMonth splits a month into Monday-anchored weeks. The first week is
// the one holding the 1st and the last one runs to the Sunday on or after
// the last day. An invalid month yields no weeks.
//
// March 2024 gives five weeks: 26 Feb - 3 Mar, 4 - 10, 11 - 17, 18 - 24
// and 25 - 31 Mar.
func WeeksInMonth(year int, month time.Month) []Week {
	if month < time.January || month > time.December {
		return nil
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	start := first.AddDate(0, 0, -daysSinceMonday(first.Weekday()))
	endLoop := last.AddDate(0, 0, 6-daysSinceMonday(last.Weekday()))

	var weeks []Week
	for num := 1; !start.After(endLoop); num++ {
		end := start.AddDate(0, 0, 6)
		if !start.After(last) && !end.Before(first) {
			weeks = append(weeks, Week{
				Num:   num,
				Start: start,
				End:   end,
				Label: fmt.Sprintf("Minggu %d (%s - %s)", num, FormatShortDate(start), FormatShortDate(end)),
			})
		}
		start = start.AddDate(0, 0, 7)
	}
	return weeks
}

// WeekByNumber finds week n of the month.
func WeekByNumber(year int, month time.Month, n int) (Week, bool) {
	for _, w := range WeeksInMonth(year, month) {
		if w.Num == n {
			return w, true
		}
	}
	return Week{}, false
}

func daysSinceMonday(d time.Weekday) int {
	if d == time.Sunday {
		return 6
	}
	return int(d) - 1
}
