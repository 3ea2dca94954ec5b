package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabcal/internal/model"
)

func singleTask(startHour, startMin, endHour, endMin int) model.TaskEvent {
	ev := at("X", startHour, startMin, endHour, endMin)
	return model.TaskEvent{
		StartTime:           ev.Start,
		EndTime:             ev.End,
		Events:              []model.Event{ev},
		MaxConcurrentEvents: 1,
	}
}

func multiTask(n, startHour, startMin, endHour, endMin int) model.TaskEvent {
	events := make([]model.Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, at("X", startHour, startMin, endHour, endMin))
	}
	return model.TaskEvent{
		StartTime:           events[0].Start,
		EndTime:             events[0].End,
		Events:              events,
		MaxConcurrentEvents: n,
	}
}

func TestComputeEmpty(t *testing.T) {
	calc := NewCalculator(DefaultMetrics())

	week := calc.Compute(nil)
	assert.Empty(t, week.Days)
	assert.Zero(t, week.TotalHeight)

	week = calc.Compute([]DayColumn{{Date: testDay}})
	require.Len(t, week.Days, 1)
	assert.Empty(t, week.Days[0].Layouts)
	// All 24 slots at the floor height.
	assert.Equal(t, 24*64.0, week.TotalHeight)
}

func TestComputeSingleEventGeometry(t *testing.T) {
	calc := NewCalculator(DefaultMetrics())

	week := calc.Compute([]DayColumn{{
		Date:  testDay,
		Tasks: []model.TaskEvent{singleTask(9, 30, 10, 30)},
	}})
	require.Len(t, week.Days, 1)
	require.Len(t, week.Days[0].Layouts, 1)

	l := week.Days[0].Layouts[0]
	// Nine full floor-height slots above, plus half of the 9 o'clock slot.
	assert.InDelta(t, 9*64+32, l.Dimensions.Top, 1e-9)
	assert.InDelta(t, 64, l.Dimensions.Height, 1e-9)
	assert.Equal(t, 9, l.Dimensions.StartHour)
	assert.Equal(t, 30, l.Dimensions.StartMinute)
	assert.Equal(t, 10, l.Dimensions.EndHour)
	assert.InDelta(t, 60, l.Dimensions.DurationMinutes, 1e-9)
	assert.Nil(t, l.Dimensions.RequiredHeight)
	assert.Equal(t, 95.0, l.WidthPct)
	assert.Equal(t, 2.5, l.LeftPct)
	assert.Equal(t, 1, l.ZIndex)
}

func TestComputeShortEventClampedToFloor(t *testing.T) {
	calc := NewCalculator(DefaultMetrics())

	week := calc.Compute([]DayColumn{{
		Date:  testDay,
		Tasks: []model.TaskEvent{singleTask(9, 0, 9, 10)},
	}})
	l := week.Days[0].Layouts[0]
	// 10 minutes would be ~10.7px; clamped to the 30px readability floor.
	assert.InDelta(t, 30, l.Dimensions.Height, 1e-9)
}

func TestComputeMultiEventExpandsSlot(t *testing.T) {
	m := DefaultMetrics()
	calc := NewCalculator(m)

	task := multiTask(5, 9, 0, 10, 0)
	week := calc.Compute([]DayColumn{{Date: testDay, Tasks: []model.TaskEvent{task}}})

	required := m.RequiredHeight(5)
	assert.Greater(t, required, m.SlotHeight)

	// Hour 9 grew to required + padding, other hours stay at the floor.
	assert.InDelta(t, required+m.SlotPadding, week.HourHeights[9], 1e-9)
	assert.InDelta(t, m.SlotHeight, week.HourHeights[8], 1e-9)
	assert.InDelta(t, m.SlotHeight, week.HourHeights[10], 1e-9)

	l := week.Days[0].Layouts[0]
	require.NotNil(t, l.Dimensions.RequiredHeight)
	assert.InDelta(t, required, *l.Dimensions.RequiredHeight, 1e-9)
	assert.InDelta(t, required, l.Dimensions.Height, 1e-9)
}

func TestComputeMultiEventHeightFloor(t *testing.T) {
	// Shrink the heuristic so a two-event block computes below the multi
	// floor and gets clamped up to it.
	m := DefaultMetrics()
	m.HeaderHeight = 1
	m.EventItemHeight = 2
	m.EventSpacing = 1
	m.PaddingHeight = 1
	m.FooterHeight = 1
	calc := NewCalculator(m)

	week := calc.Compute([]DayColumn{{
		Date:  testDay,
		Tasks: []model.TaskEvent{multiTask(2, 9, 0, 10, 0)},
	}})
	l := week.Days[0].Layouts[0]
	assert.InDelta(t, m.MinMultiHeight, l.Dimensions.Height, 1e-9)
}

func TestComputeCrossDayNormalization(t *testing.T) {
	m := DefaultMetrics()
	calc := NewCalculator(m)

	// Monday has a tall multi-event block at 9; Tuesday only a plain
	// single event at 11. Tuesday's 11 o'clock block must still sit below
	// Monday's expanded hour 9.
	monday := DayColumn{Date: testDay, Tasks: []model.TaskEvent{multiTask(4, 9, 0, 10, 0)}}
	tuesday := DayColumn{
		Date:  testDay.AddDate(0, 0, 1),
		Tasks: []model.TaskEvent{singleTask(11, 0, 12, 0)},
	}

	week := calc.Compute([]DayColumn{monday, tuesday})

	expanded := m.RequiredHeight(4) + m.SlotPadding
	assert.InDelta(t, expanded, week.HourHeights[9], 1e-9)

	// Offset for hour 11 reflects the shared expanded hour 9.
	wantOffset := 9*m.SlotHeight + expanded + m.SlotHeight
	assert.InDelta(t, wantOffset, week.HourOffsets[11], 1e-9)

	l := week.Days[1].Layouts[0]
	assert.InDelta(t, wantOffset, l.Dimensions.Top, 1e-9)
}

func TestComputeMinuteFractionUsesOwnDaySlot(t *testing.T) {
	m := DefaultMetrics()
	calc := NewCalculator(m)

	// The day owning the tall slot positions a 9:30 block using its own
	// expanded slot height for the minute fraction.
	tall := multiTask(4, 9, 0, 11, 0)
	late := singleTask(9, 30, 10, 0)
	week := calc.Compute([]DayColumn{{Date: testDay, Tasks: []model.TaskEvent{tall, late}}})

	expanded := m.RequiredHeight(4) + m.SlotPadding
	l := week.Days[0].Layouts[1]
	assert.InDelta(t, 9*m.SlotHeight+0.5*expanded, l.Dimensions.Top, 1e-9)
	assert.Equal(t, 2, l.ZIndex)
}

func TestComputeCumulativeOffsetsAreRunningSums(t *testing.T) {
	calc := NewCalculator(DefaultMetrics())
	week := calc.Compute([]DayColumn{{
		Date:  testDay,
		Tasks: []model.TaskEvent{multiTask(6, 14, 0, 15, 0)},
	}})

	assert.Zero(t, week.HourOffsets[0])
	for h := 1; h < 24; h++ {
		assert.InDelta(t, week.HourOffsets[h-1]+week.HourHeights[h-1], week.HourOffsets[h], 1e-9)
	}
	assert.InDelta(t, week.HourOffsets[23]+week.HourHeights[23], week.TotalHeight, 1e-9)
}

func TestNowOffset(t *testing.T) {
	m := DefaultMetrics()
	calc := NewCalculator(m)
	week := calc.Compute([]DayColumn{{Date: testDay}})

	noon := testDay.Add(12*time.Hour + 15*time.Minute)
	got := calc.NowOffset(week, noon)
	assert.InDelta(t, 12*m.SlotHeight+0.25*m.SlotHeight, got, 1e-9)
}

func TestMetricsNormalizeFillsDefaults(t *testing.T) {
	var m Metrics
	m.SlotHeight = 48
	m.Normalize()

	d := DefaultMetrics()
	assert.Equal(t, 48.0, m.SlotHeight)
	assert.Equal(t, d.HeaderHeight, m.HeaderHeight)
	assert.Equal(t, d.MinSingleHeight, m.MinSingleHeight)
	assert.Equal(t, d.WidthPct, m.WidthPct)
}

func TestRequiredHeightMonotonic(t *testing.T) {
	m := DefaultMetrics()
	assert.Zero(t, m.RequiredHeight(0))
	assert.Zero(t, m.RequiredHeight(1))

	prev := 0.0
	for n := 2; n <= 10; n++ {
		h := m.RequiredHeight(n)
		assert.Greater(t, h, prev)
		prev = h
	}
}
