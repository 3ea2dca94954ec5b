package agenda

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"tabcal/internal/model"
	"tabcal/internal/timeline"
)

func TestRenderListsBlocks(t *testing.T) {
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	events := []model.Event{
		{ID: "a", Title: "Standup", Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 15*time.Minute)},
		{ID: "b", Title: "Review", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
	}

	calc := timeline.NewCalculator(timeline.DefaultMetrics())
	week := calc.Compute([]timeline.DayColumn{{
		Date:  day,
		Tasks: timeline.ProcessOverlaps(events),
	}})

	var buf bytes.Buffer
	if err := Render(&buf, week.Days, day.Add(12*time.Hour)); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Standup", "Review", "Mon 2026-03-02", "09:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, nil, time.Now()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "no events in range") {
		t.Errorf("unexpected empty output: %q", buf.String())
	}
}
