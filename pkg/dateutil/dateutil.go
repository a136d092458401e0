// Package dateutil provides calendar helpers for monthly billing periods.
//
// All dates handled by the billing engine are civil dates. They are carried as
// time.Time values pinned to 12:00 UTC so that time zone offsets and DST shifts
// can never move a value onto a neighbouring day.
package dateutil

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ISODate is the layout used for civil dates in config files and storage.
const ISODate = "2006-01-02"

// MonthLayout is the layout used for billing months (e.g. "2024-03").
const MonthLayout = "2006-01"

// Date returns the civil date y-m-d at noon UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

// Normalize drops the time of day, keeping the calendar date as seen in t's location.
func Normalize(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return Date(y, m, d)
}

// Parse parses an ISO date (YYYY-MM-DD) into a normalized civil date.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(ISODate, s)
	if err != nil {
		return time.Time{}, err
	}
	return Normalize(t), nil
}

// ParseMonth parses a billing month (YYYY-MM) and returns its first day.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return FirstDayOfMonth(t), nil
}

// FirstDayOfMonth returns the first day of the month containing t.
func FirstDayOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return Date(y, m, 1)
}

// LastDayOfMonth returns the last day of the month containing t.
func LastDayOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	// Day 0 of the next month is the last day of this one.
	return Date(y, m+1, 0)
}

// DaysInMonth returns the number of days in the month containing t.
func DaysInMonth(t time.Time) int {
	return LastDayOfMonth(t).Day()
}

// DayBefore returns the calendar day preceding t.
func DayBefore(t time.Time) time.Time {
	return Normalize(t).AddDate(0, 0, -1)
}

// SameMonth reports whether a and b fall in the same calendar month and year.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// IsTodayOrPassed reports whether date is on or before today.
func IsTodayOrPassed(date, today time.Time) bool {
	return !Normalize(date).After(Normalize(today))
}

// MinDate returns the earlier of a and b.
func MinDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxDate returns the later of a and b.
func MaxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// FirstDaysOfMonths returns the first day of every month from start's month
// through end's month, inclusive. It returns nil if end precedes start.
func FirstDaysOfMonths(start, end time.Time) []time.Time {
	first := FirstDayOfMonth(start)
	last := FirstDayOfMonth(end)
	var months []time.Time
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	return months
}

// PeriodError reports a proration request whose bounds are not inside a single month.
type PeriodError struct {
	Start time.Time
	End   time.Time
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("start date %s and end date %s must be in the same month and year",
		e.Start.Format(ISODate), e.End.Format(ISODate))
}

// Prorate returns the share of monthlyAmount owed for the days start..end,
// counting both boundary days. start and end must be in the same month.
func Prorate(monthlyAmount decimal.Decimal, start, end time.Time) (decimal.Decimal, error) {
	if !SameMonth(start, end) {
		return decimal.Zero, &PeriodError{Start: start, End: end}
	}
	daysInMonth := DaysInMonth(start)
	daysCharged := end.Day() - start.Day() + 1
	if daysCharged == daysInMonth {
		return monthlyAmount, nil
	}
	// Multiply before dividing so whole-cent results stay exact.
	return monthlyAmount.
		Mul(decimal.NewFromInt(int64(daysCharged))).
		Div(decimal.NewFromInt(int64(daysInMonth))), nil
}

// MustProrate is Prorate for callers that have already clipped the period to
// one month. It panics if that contract is broken.
func MustProrate(monthlyAmount decimal.Decimal, start, end time.Time) decimal.Decimal {
	amount, err := Prorate(monthlyAmount, start, end)
	if err != nil {
		panic(err)
	}
	return amount
}
