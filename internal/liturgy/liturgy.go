// Package liturgy holds the cached domain types: a liturgical day and its readings.
package liturgy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"
)

// DateLayout is the canonical target date format used as a cache and ledger key
const DateLayout = "2006-01-02"

// Day is the liturgical metadata for one calendar date
type Day struct {
	ID             string    `json:"id"`
	Date           string    `json:"date"`
	Season         string    `json:"season"`
	Week           string    `json:"week"`
	Title          string    `json:"title"`
	Color          string    `json:"color"`
	Rank           string    `json:"rank"`
	CacheTimestamp time.Time `json:"cache_timestamp"`
}

// Reading is one scripture reading assigned to a day
type Reading struct {
	ID             string    `json:"id"`
	DayDate        string    `json:"day_date"`
	Order          int       `json:"order"`
	Kind           string    `json:"kind"`
	Citation       string    `json:"citation"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	CacheTimestamp time.Time `json:"cache_timestamp"`
}

// Snapshot is the remote's authoritative content for a single date
type Snapshot struct {
	Day      Day       `json:"day"`
	Readings []Reading `json:"readings"`
}

// ContentHash returns a stable digest of the day's business fields.
// CacheTimestamp is excluded so local writes never register as changes.
func (d Day) ContentHash() string {
	return digest(d.ID, d.Date, d.Season, d.Week, d.Title, d.Color, d.Rank)
}

// ContentHash returns a stable digest of the reading's business fields
func (r Reading) ContentHash() string {
	return digest(r.ID, r.DayDate, strconv.Itoa(r.Order), r.Kind, r.Citation, r.Title, r.Body)
}

func digest(fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		// Length prefix keeps ("ab","c") distinct from ("a","bc")
		fmt.Fprintf(h, "%d:", len(f))
		io.WriteString(h, f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DateKey formats t as a target date key in t's own location
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a target date key into local midnight
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// StartOfDay truncates t to midnight in t's location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves t by n calendar days, independent of DST shifts
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, t.Location())
}

// Normalize fills in the date linkage a remote payload may omit and
// validates the snapshot belongs to date.
func (s *Snapshot) Normalize(date string) error {
	if s.Day.Date == "" {
		s.Day.Date = date
	}
	if s.Day.Date != date {
		return fmt.Errorf("snapshot is for %s, expected %s", s.Day.Date, date)
	}
	if s.Day.ID == "" {
		s.Day.ID = date
	}

	seen := make(map[string]bool, len(s.Readings))
	for i := range s.Readings {
		r := &s.Readings[i]
		if r.ID == "" {
			return fmt.Errorf("reading %d for %s has no id", i, date)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate reading id %s for %s", r.ID, date)
		}
		seen[r.ID] = true
		if r.DayDate == "" {
			r.DayDate = date
		}
		if r.Order == 0 {
			r.Order = i + 1
		}
	}
	return nil
}
