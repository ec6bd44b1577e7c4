package core

import (
	"fmt"
	"time"
)

var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

var shortMonthNames = [...]string{
	"Jan", "Feb", "Mar", "Apr", "Mei", "Jun",
	"Jul", "Agu", "Sep", "Okt", "Nov", "Des",
}

var weekdayNames = [...]string{
	"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu",
}

// MonthName returns the Indonesian month name, or "" when m is out of range.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}

// ShortMonthName returns the abbreviated Indonesian month name.
func ShortMonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return shortMonthNames[m-1]
}

// WeekdayName returns the Indonesian weekday name.
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d%7]
}

// FormatDate renders t as "5 Maret 2024".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%d %s %d", t.Day(), MonthName(t.Month()), t.Year())
}

// FormatShortDate renders t as "5 Mar".
func FormatShortDate(t time.Time) string {
	return fmt.Sprintf("%d %s", t.Day(), ShortMonthName(t.Month()))
}

// FormatMonthYear renders "Maret 2024".
func FormatMonthYear(year int, month time.Month) string {
	return fmt.Sprintf("%s %d", MonthName(month), year)
}

// MonthOption is one entry of a month selector.
type MonthOption struct {
	Value int
	Name  string
}

// MonthOptions lists January through December.
func MonthOptions() []MonthOption {
	out := make([]MonthOption, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, MonthOption{Value: int(m), Name: MonthName(m)})
	}
	return out
}

// YearOptions returns the current year and the four before it, newest first.
func YearOptions(now time.Time) []int {
	years := make([]int, 5)
	for i := range years {
		years[i] = now.Year() - i
	}
	return years
}
