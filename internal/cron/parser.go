package cron

import (
	"fmt"
	"strconv"
	"strings"
)

type fieldSpec struct {
	name     string
	min, max int
}

var fieldSpecs = [5]fieldSpec{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// parse parses five whitespace separated fields into a Schedule
func parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}

	var sets [5]bitset
	for i, f := range fields {
		set, err := parseField(f, fieldSpecs[i].min, fieldSpecs[i].max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", fieldSpecs[i].name, err)
		}
		sets[i] = set
	}

	s := &Schedule{
		minutes:       sets[0],
		hours:         sets[1],
		daysOfMonth:   sets[2],
		months:        sets[3],
		daysOfWeek:    sets[4],
		domRestricted: fields[2] != "*",
		dowRestricted: fields[4] != "*",
		expr:          expr,
	}

	if !s.dowRestricted {
		if err := validateImpossibleDates(s.daysOfMonth, s.months); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// parseField parses one comma separated field. Each element is *, a value,
// a range a-b, or either of the first two followed by /step.
func parseField(field string, min, max int) (bitset, error) {
	if field == "" {
		return 0, fmt.Errorf("empty field")
	}

	var set bitset
	for _, part := range strings.Split(field, ",") {
		if part == "" {
			return 0, fmt.Errorf("empty value in list")
		}

		rangePart, step := part, 1
		if i := strings.Index(part, "/"); i >= 0 {
			n, err := strconv.Atoi(part[i+1:])
			if err != nil {
				return 0, fmt.Errorf("invalid step value: %w", err)
			}
			if n <= 0 {
				return 0, fmt.Errorf("step must be greater than 0")
			}
			rangePart, step = part[:i], n
		}

		lo, hi, err := parseRange(rangePart, min, max)
		if err != nil {
			return 0, err
		}
		if step > 1 && lo == hi && rangePart != "*" {
			// "5/10" means 5 through max every 10
			hi = max
		}

		for v := lo; v <= hi; v += step {
			set.add(v)
		}
	}

	return set, nil
}

// parseRange resolves *, a single value, or a-b into inclusive bounds
func parseRange(s string, min, max int) (int, int, error) {
	if s == "*" {
		return min, max, nil
	}

	if i := strings.Index(s, "-"); i > 0 {
		lo, err := parseValue(s[:i], min, max)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range start: %w", err)
		}
		hi, err := parseValue(s[i+1:], min, max)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range end: %w", err)
		}
		if lo > hi {
			return 0, 0, fmt.Errorf("invalid range: start %d > end %d", lo, hi)
		}
		return lo, hi, nil
	}

	v, err := parseValue(s, min, max)
	if err != nil {
		return 0, 0, err
	}
	return v, v, nil
}

func parseValue(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value %d out of bounds [%d, %d]", v, min, max)
	}
	return v, nil
}

// validateImpossibleDates errors when no listed month has any listed day
func validateImpossibleDates(daysOfMonth, months bitset) error {
	for _, month := range months.values() {
		for _, day := range daysOfMonth.values() {
			if day <= daysInMonth(month) {
				return nil
			}
		}
	}
	return fmt.Errorf("impossible date: no valid days exist for specified days %v in months %v",
		daysOfMonth.values(), months.values())
}

// daysInMonth returns the maximum days in month, allowing Feb 29
func daysInMonth(month int) int {
	switch month {
	case 2:
		return 29
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}
