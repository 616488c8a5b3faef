package liturgy

import (
	"testing"
	"time"
)

func TestContentHash_IgnoresCacheTimestamp(t *testing.T) {
	r1 := Reading{ID: "r1", DayDate: "2025-01-01", Order: 1, Kind: "gospel", Body: "In the beginning"}
	r2 := r1
	r2.CacheTimestamp = time.Now()

	if r1.ContentHash() != r2.ContentHash() {
		t.Error("expected cache timestamp to be excluded from content hash")
	}

	d1 := Day{ID: "d1", Date: "2025-01-01", Title: "Mary, Mother of God"}
	d2 := d1
	d2.CacheTimestamp = time.Now()
	if d1.ContentHash() != d2.ContentHash() {
		t.Error("expected cache timestamp to be excluded from day hash")
	}
}

func TestContentHash_DetectsChanges(t *testing.T) {
	base := Reading{ID: "r1", DayDate: "2025-01-01", Order: 1, Kind: "gospel", Citation: "Jn 1:1", Body: "text"}

	tests := []struct {
		name   string
		mutate func(r *Reading)
	}{
		{"body", func(r *Reading) { r.Body = "other" }},
		{"citation", func(r *Reading) { r.Citation = "Jn 1:2" }},
		{"order", func(r *Reading) { r.Order = 2 }},
		{"kind", func(r *Reading) { r.Kind = "psalm" }},
		{"title", func(r *Reading) { r.Title = "Prologue" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := base
			tt.mutate(&changed)
			if changed.ContentHash() == base.ContentHash() {
				t.Errorf("expected %s change to alter the hash", tt.name)
			}
		})
	}
}

func TestContentHash_FieldBoundaries(t *testing.T) {
	a := Reading{ID: "r1", Citation: "ab", Title: "c"}
	b := Reading{ID: "r1", Citation: "a", Title: "bc"}
	if a.ContentHash() == b.ContentHash() {
		t.Error("expected field boundaries to be part of the hash")
	}
}

func TestAddDays_CrossesMonthAndYear(t *testing.T) {
	start := time.Date(2025, 12, 31, 15, 30, 0, 0, time.UTC)

	got := AddDays(start, 1)
	if DateKey(got) != "2026-01-01" {
		t.Errorf("expected 2026-01-01, got %s", DateKey(got))
	}
	if got.Hour() != 0 {
		t.Errorf("expected midnight, got hour %d", got.Hour())
	}

	if DateKey(AddDays(start, -90)) != "2025-10-02" {
		t.Errorf("expected 2025-10-02, got %s", DateKey(AddDays(start, -90)))
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if DateKey(d) != "2025-06-01" {
		t.Errorf("expected round trip, got %s", DateKey(d))
	}

	if _, err := ParseDate("06/01/2025"); err == nil {
		t.Error("expected error for non ISO date")
	}
}

func TestSnapshotNormalize(t *testing.T) {
	s := &Snapshot{
		Readings: []Reading{{ID: "a"}, {ID: "b", Order: 5}},
	}
	if err := s.Normalize("2025-01-01"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Day.Date != "2025-01-01" || s.Day.ID != "2025-01-01" {
		t.Errorf("expected day linkage to be filled, got %+v", s.Day)
	}
	if s.Readings[0].Order != 1 || s.Readings[1].Order != 5 {
		t.Errorf("unexpected reading orders: %d, %d", s.Readings[0].Order, s.Readings[1].Order)
	}
	if s.Readings[0].DayDate != "2025-01-01" {
		t.Errorf("expected reading day date to be filled, got %q", s.Readings[0].DayDate)
	}
}

func TestSnapshotNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
	}{
		{"wrong date", Snapshot{Day: Day{Date: "2025-01-02"}}},
		{"missing reading id", Snapshot{Readings: []Reading{{Body: "x"}}}},
		{"duplicate reading id", Snapshot{Readings: []Reading{{ID: "a"}, {ID: "a"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.snap.Normalize("2025-01-01"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
