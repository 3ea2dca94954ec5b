package timeline

import (
	"time"

	"tabcal/internal/model"
)

const hoursPerDay = 24

// Metrics groups the presentation constants used by the layout
// calculator. The multi-event heights are empirical pixel values, not
// derived from font metrics; they live here so they can be tuned from
// configuration without touching the algorithm.
type Metrics struct {
	// SlotHeight is the floor height of one hour row, in pixels.
	SlotHeight float64 `yaml:"slot_height" json:"slot_height"`

	// Required-height heuristic for a block listing N events:
	// HeaderHeight + N*EventItemHeight + (N-1)*EventSpacing +
	// PaddingHeight + FooterHeight.
	HeaderHeight    float64 `yaml:"header_height" json:"header_height"`
	EventItemHeight float64 `yaml:"event_item_height" json:"event_item_height"`
	EventSpacing    float64 `yaml:"event_spacing" json:"event_spacing"`
	PaddingHeight   float64 `yaml:"padding_height" json:"padding_height"`
	FooterHeight    float64 `yaml:"footer_height" json:"footer_height"`

	// SlotPadding is the extra room added above a multi-event block when
	// its hour slot is grown to fit it.
	SlotPadding float64 `yaml:"slot_padding" json:"slot_padding"`

	// MinSingleHeight / MinMultiHeight are clamp floors that keep
	// degenerate blocks readable.
	MinSingleHeight float64 `yaml:"min_single_height" json:"min_single_height"`
	MinMultiHeight  float64 `yaml:"min_multi_height" json:"min_multi_height"`

	// WidthPct / LeftPct are fixed for every block: concurrent blocks in
	// one column stack by z-order rather than splitting horizontally.
	WidthPct float64 `yaml:"width_pct" json:"width_pct"`
	LeftPct  float64 `yaml:"left_pct" json:"left_pct"`
}

// DefaultMetrics returns the stock presentation constants.
func DefaultMetrics() Metrics {
	return Metrics{
		SlotHeight:      64,
		HeaderHeight:    20,
		EventItemHeight: 22,
		EventSpacing:    4,
		PaddingHeight:   12,
		FooterHeight:    8,
		SlotPadding:     8,
		MinSingleHeight: 30,
		MinMultiHeight:  80,
		WidthPct:        95,
		LeftPct:         2.5,
	}
}

// Normalize fills zero fields with defaults so a partially specified
// layout config still produces sane geometry.
func (m *Metrics) Normalize() {
	d := DefaultMetrics()
	if m.SlotHeight <= 0 {
		m.SlotHeight = d.SlotHeight
	}
	if m.HeaderHeight <= 0 {
		m.HeaderHeight = d.HeaderHeight
	}
	if m.EventItemHeight <= 0 {
		m.EventItemHeight = d.EventItemHeight
	}
	if m.EventSpacing <= 0 {
		m.EventSpacing = d.EventSpacing
	}
	if m.PaddingHeight <= 0 {
		m.PaddingHeight = d.PaddingHeight
	}
	if m.FooterHeight <= 0 {
		m.FooterHeight = d.FooterHeight
	}
	if m.SlotPadding <= 0 {
		m.SlotPadding = d.SlotPadding
	}
	if m.MinSingleHeight <= 0 {
		m.MinSingleHeight = d.MinSingleHeight
	}
	if m.MinMultiHeight <= 0 {
		m.MinMultiHeight = d.MinMultiHeight
	}
	if m.WidthPct <= 0 {
		m.WidthPct = d.WidthPct
	}
	if m.LeftPct <= 0 {
		m.LeftPct = d.LeftPct
	}
}

// RequiredHeight is the heuristic pixel height a block needs to list n
// events. Returns 0 for n <= 1: single-event blocks use their natural
// duration-based height instead.
func (m Metrics) RequiredHeight(n int) float64 {
	if n <= 1 {
		return 0
	}
	nf := float64(n)
	return m.HeaderHeight + nf*m.EventItemHeight + (nf-1)*m.EventSpacing + m.PaddingHeight + m.FooterHeight
}

// DayColumn is one day's worth of processed blocks, in start order.
type DayColumn struct {
	Date  time.Time
	Tasks []model.TaskEvent
}

// DayLayout is the computed geometry for one day column.
type DayLayout struct {
	Date    time.Time           `json:"date"`
	Layouts []model.EventLayout `json:"layouts"`
}

// WeekLayout is the geometry for a full visible range. HourHeights and
// HourOffsets are shared by every column: the effective height of hour H
// is the max slot height for H across all days, so columns stay aligned
// row for row.
type WeekLayout struct {
	Days []DayLayout `json:"days"`

	HourHeights [hoursPerDay]float64 `json:"hour_heights"`
	HourOffsets [hoursPerDay]float64 `json:"hour_offsets"`
	TotalHeight float64              `json:"total_height"`
}

// Calculator maps TaskEvents onto absolute pixel geometry within a grid
// of variable-height hour slots. It holds no state between calls; every
// Compute recomputes all tables from its inputs.
type Calculator struct {
	metrics Metrics
}

// NewCalculator returns a Calculator using the given metrics.
func NewCalculator(m Metrics) *Calculator {
	m.Normalize()
	return &Calculator{metrics: m}
}

// Compute lays out all given day columns.
//
// It runs in three passes: per-day slot heights first, then the
// cross-day effective heights and cumulative offsets (the full per-hour
// max table must exist before any column can position anything), then
// per-block geometry.
func (c *Calculator) Compute(days []DayColumn) WeekLayout {
	var week WeekLayout
	if len(days) == 0 {
		week.Days = []DayLayout{}
		return week
	}

	// Pass 1: per-day slot heights. Every hour starts at the floor and
	// grows if a multi-event block starting in it needs more room.
	slots := make([][hoursPerDay]float64, len(days))
	for d := range days {
		for h := 0; h < hoursPerDay; h++ {
			slots[d][h] = c.metrics.SlotHeight
		}
		for _, task := range days[d].Tasks {
			if task.MaxConcurrentEvents <= 1 {
				continue
			}
			required := c.metrics.RequiredHeight(len(task.Events))
			h := task.StartTime.Hour()
			if want := required + c.metrics.SlotPadding; want > slots[d][h] {
				slots[d][h] = want
			}
		}
	}

	// Pass 2: effective hour heights (max across all columns) and the
	// cumulative offsets derived from them.
	for h := 0; h < hoursPerDay; h++ {
		max := 0.0
		for d := range slots {
			if slots[d][h] > max {
				max = slots[d][h]
			}
		}
		week.HourHeights[h] = max
	}
	running := 0.0
	for h := 0; h < hoursPerDay; h++ {
		week.HourOffsets[h] = running
		running += week.HourHeights[h]
	}
	week.TotalHeight = running

	// Pass 3: block geometry.
	week.Days = make([]DayLayout, len(days))
	for d := range days {
		layouts := make([]model.EventLayout, 0, len(days[d].Tasks))
		for i, task := range days[d].Tasks {
			layouts = append(layouts, c.layoutTask(task, slots[d], week.HourOffsets, i))
		}
		week.Days[d] = DayLayout{Date: days[d].Date, Layouts: layouts}
	}

	return week
}

func (c *Calculator) layoutTask(task model.TaskEvent, slots [hoursPerDay]float64, offsets [hoursPerDay]float64, index int) model.EventLayout {
	startHour := task.StartTime.Hour()
	startMinute := task.StartTime.Minute()
	duration := task.EndTime.Sub(task.StartTime).Minutes()

	top := offsets[startHour] + float64(startMinute)/60*slots[startHour]

	dims := model.Dimensions{
		Top:             top,
		StartHour:       startHour,
		StartMinute:     startMinute,
		EndHour:         task.EndTime.Hour(),
		EndMinute:       task.EndTime.Minute(),
		DurationMinutes: duration,
	}

	if task.MaxConcurrentEvents > 1 {
		required := c.metrics.RequiredHeight(len(task.Events))
		height := slots[startHour] - c.metrics.SlotPadding
		if required < height {
			height = required
		}
		if height < c.metrics.MinMultiHeight {
			height = c.metrics.MinMultiHeight
		}
		dims.Height = height
		dims.RequiredHeight = &required
	} else {
		height := duration / 60 * c.metrics.SlotHeight
		if height < c.metrics.MinSingleHeight {
			height = c.metrics.MinSingleHeight
		}
		dims.Height = height
	}

	return model.EventLayout{
		Events:     task.Events,
		WidthPct:   c.metrics.WidthPct,
		LeftPct:    c.metrics.LeftPct,
		ZIndex:     index + 1,
		Dimensions: dims,
	}
}

// NowOffset returns the vertical pixel offset of the current-time
// indicator within a computed week, using the same cumulative math as
// block positioning. The caller re-invokes this on its own tick; the
// calculator owns no timer.
func (c *Calculator) NowOffset(week WeekLayout, now time.Time) float64 {
	h := now.Hour()
	frac := (float64(now.Minute()) + float64(now.Second())/60) / 60
	return week.HourOffsets[h] + frac*week.HourHeights[h]
}
