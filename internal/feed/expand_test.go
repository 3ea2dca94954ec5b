package feed

import (
	"testing"
	"time"
)

func expandWindow() ExpandConfig {
	return ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestExpandSingleEventInWindow(t *testing.T) {
	ev := ParsedEvent{
		UID:     "one",
		Summary: "Dentist",
		Start:   time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
	}

	out, err := Expand([]ParsedEvent{ev}, expandWindow())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(out))
	}
	if out[0].Title != "Dentist" {
		t.Errorf("title = %q", out[0].Title)
	}
	if !out[0].Valid() {
		t.Error("expanded event not valid")
	}
}

func TestExpandSingleEventOutsideWindow(t *testing.T) {
	ev := ParsedEvent{
		UID:   "old",
		Start: time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC),
	}

	out, err := Expand([]ParsedEvent{ev}, expandWindow())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no occurrences, got %d", len(out))
	}
}

func TestExpandDailyRule(t *testing.T) {
	ev := ParsedEvent{
		UID:      "daily",
		Summary:  "Standup",
		Start:    time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2026, time.March, 2, 9, 15, 0, 0, time.UTC),
		RawRRule: "FREQ=DAILY;COUNT=3",
	}

	out, err := Expand([]ParsedEvent{ev}, expandWindow())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(out))
	}
	for i, occ := range out {
		wantDay := 2 + i
		if occ.Start.Day() != wantDay {
			t.Errorf("occurrence %d on day %d, want %d", i, occ.Start.Day(), wantDay)
		}
		if occ.End.Sub(occ.Start) != 15*time.Minute {
			t.Errorf("occurrence %d duration = %v", i, occ.End.Sub(occ.Start))
		}
	}
	// Instance IDs must differ.
	if out[0].ID == out[1].ID {
		t.Errorf("instance IDs collide: %q", out[0].ID)
	}
}

func TestExpandHonorsExDate(t *testing.T) {
	ev := ParsedEvent{
		UID:      "daily-ex",
		Start:    time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=DAILY;COUNT=3",
		ExDates:  []time.Time{time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)},
	}

	out, err := Expand([]ParsedEvent{ev}, expandWindow())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 occurrences after EXDATE, got %d", len(out))
	}
	for _, occ := range out {
		if occ.Start.Day() == 3 {
			t.Error("excluded instance still present")
		}
	}
}

func TestExpandAppliesOverride(t *testing.T) {
	rid := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)
	base := ParsedEvent{
		UID:      "daily-ov",
		Summary:  "Sync",
		Start:    time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=DAILY;COUNT=2",
	}
	override := ParsedEvent{
		UID:        "daily-ov",
		Summary:    "Sync (moved)",
		Start:      time.Date(2026, time.March, 3, 14, 0, 0, 0, time.UTC),
		End:        time.Date(2026, time.March, 3, 15, 0, 0, 0, time.UTC),
		Recurrence: &rid,
		IsOverride: true,
	}

	out, err := Expand([]ParsedEvent{base, override}, expandWindow())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(out))
	}

	var moved bool
	for _, occ := range out {
		if occ.Start.Day() == 3 {
			moved = true
			if occ.Start.Hour() != 14 {
				t.Errorf("override start hour = %d", occ.Start.Hour())
			}
			if occ.Title != "Sync (moved)" {
				t.Errorf("override title = %q", occ.Title)
			}
		}
	}
	if !moved {
		t.Error("override instance missing")
	}
}

func TestExpandRejectsInvertedWindow(t *testing.T) {
	cfg := expandWindow()
	cfg.RangeStart, cfg.RangeEnd = cfg.RangeEnd, cfg.RangeStart
	if _, err := Expand(nil, cfg); err == nil {
		t.Error("expected error for inverted window")
	}
}
