package core

import (
	"fmt"
	"time"
)

// Bar is one column of a server rendered chart.
type Bar struct {
	Label   string
	Value   string
	Percent int // height relative to the tallest bar, 0-100
}

// DailyChart turns a daily payments series into bars labelled
// "Senin (04/03)" with values formatted without the currency prefix.
func DailyChart(series []DailyPayment) []Bar {
	var max Money
	for _, p := range series {
		if p.Total > max {
			max = p.Total
		}
	}
	bars := make([]Bar, 0, len(series))
	for _, p := range series {
		bars = append(bars, Bar{
			Label:   DailyLabel(p),
			Value:   FormatRupiahPlain(p.Total),
			Percent: percentOf(int64(p.Total), int64(max)),
		})
	}
	return bars
}

// DailyLabel renders "<day> (dd/mm)" from a payment's date.
func DailyLabel(p DailyPayment) string {
	d, err := ParseDate(p.Date)
	if err != nil {
		return p.Day
	}
	return fmt.Sprintf("%s (%02d/%02d)", p.Day, d.Day(), int(d.Month()))
}

// MonthlyChart is the single bar of the monthly transactions chart.
func MonthlyChart(year int, month time.Month, count int) []Bar {
	pct := 0
	if count > 0 {
		pct = 100
	}
	return []Bar{{
		Label:   FormatMonthYear(year, month),
		Value:   fmt.Sprintf("%d", count),
		Percent: pct,
	}}
}

// EmptyDailySeries lists every day of the week, or of the month when week
// is nil, with a zero total. Stores fill in the totals.
func EmptyDailySeries(year int, month time.Month, week *Week) []DailyPayment {
	var days []time.Time
	if week != nil {
		days = week.Days()
	} else {
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
			days = append(days, d)
		}
	}
	out := make([]DailyPayment, 0, len(days))
	for _, d := range days {
		out = append(out, DailyPayment{Day: WeekdayName(d.Weekday()), Date: d.Format(DateLayout)})
	}
	return out
}

func percentOf(v, max int64) int {
	if max <= 0 || v <= 0 {
		return 0
	}
	return int(v * 100 / max)
}
