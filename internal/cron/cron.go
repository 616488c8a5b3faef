// Package cron parses standard 5-field cron expressions and computes fire times.
package cron

import (
	"time"
)

// maxSearch bounds Next for schedules that match very rarely (Feb 29)
const maxSearch = 8 * 366 * 24 * time.Hour

// Schedule represents a parsed cron expression
type Schedule struct {
	// Each field is a set of the values it accepts
	minutes     bitset // 0-59
	hours       bitset // 0-23
	daysOfMonth bitset // 1-31
	months      bitset // 1-12
	daysOfWeek  bitset // 0-6 (0=Sunday)

	domRestricted bool
	dowRestricted bool

	expr string
}

// macros are the named shorthands accepted in place of five fields
var macros = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

// Parse parses a cron expression or macro. It rejects expressions with the
// wrong number of fields, out-of-range values, and day/month combinations
// that can never occur.
func Parse(expr string) (*Schedule, error) {
	if m, ok := macros[expr]; ok {
		s, err := parse(m)
		if err != nil {
			return nil, err
		}
		s.expr = expr
		return s, nil
	}
	return parse(expr)
}

// String returns the expression the schedule was parsed from
func (s *Schedule) String() string {
	return s.expr
}

// Next returns the first fire time strictly after 'after', evaluated in
// after's location. Returns the zero time if none exists within eight years.
func (s *Schedule) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(maxSearch)

	for t.Before(limit) {
		if !s.months.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !s.matchesDay(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !s.hours.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
			continue
		}
		if !s.minutes.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

// matchesDay applies cron's day rule: when both day-of-month and day-of-week
// are restricted either may match, otherwise only the restricted one counts.
func (s *Schedule) matchesDay(t time.Time) bool {
	dom := s.daysOfMonth.has(t.Day())
	dow := s.daysOfWeek.has(int(t.Weekday()))

	switch {
	case s.domRestricted && s.dowRestricted:
		return dom || dow
	case s.domRestricted:
		return dom
	case s.dowRestricted:
		return dow
	default:
		return true
	}
}

// bitset holds values 0-63
type bitset uint64

func (b bitset) has(v int) bool {
	return v >= 0 && v < 64 && b&(1<<uint(v)) != 0
}

func (b *bitset) add(v int) {
	*b |= 1 << uint(v)
}

func (b bitset) values() []int {
	var vals []int
	for v := 0; v < 64; v++ {
		if b.has(v) {
			vals = append(vals, v)
		}
	}
	return vals
}
