package model

import "time"

// Event is a single concrete calendar entry shown on the timeline.
// Events come either from an ICS subscription (after recurrence
// expansion) or from the local store.
//
// An Event is considered valid for layout only when both Start and End
// are set and End is not before Start; anything else is skipped by the
// timeline processor rather than treated as an error.
type Event struct {
	// ID uniquely identifies the event within one render pass. For feed
	// events this is UID plus an instance key; for local events it is the
	// store key.
	ID string

	Title       string
	Description string
	Location    string

	// AllDay events span whole days and render in the all-day band, not
	// the timed grid.
	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Valid reports whether the event carries usable start/end instants.
func (e Event) Valid() bool {
	if e.Start.IsZero() || e.End.IsZero() {
		return false
	}
	return !e.End.Before(e.Start)
}

// TaskEvent is one visually contiguous block on a day column: either a
// single event with no neighbors in time, or one time slice of a cluster
// of overlapping events. TaskEvents produced for the same day never
// overlap each other.
type TaskEvent struct {
	StartTime time.Time
	EndTime   time.Time

	// Events are the source events active during [StartTime, EndTime),
	// ordered by their own start time.
	Events []Event

	// MaxConcurrentEvents is len(Events); kept explicit because the
	// renderer sizes blocks from it.
	MaxConcurrentEvents int
}

// Segment is a sub-interval of an overlap group during which a fixed
// subset of the group's events is active. Intermediate type; the
// processor converts each segment into a TaskEvent.
type Segment struct {
	StartTime time.Time
	EndTime   time.Time
	Events    []Event
}

// Dimensions carries the vertical geometry of one laid-out block.
type Dimensions struct {
	// Top is the pixel offset from the top of the day column.
	Top float64 `json:"top"`
	// Height is the pixel height of the block.
	Height float64 `json:"height"`

	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	EndHour     int `json:"end_hour"`
	EndMinute   int `json:"end_minute"`

	// DurationMinutes is the block's span in minutes.
	DurationMinutes float64 `json:"duration_minutes"`

	// RequiredHeight is the heuristic height a multi-event block needs to
	// list all of its events. Nil for single-event blocks, which use
	// their natural duration-based height.
	RequiredHeight *float64 `json:"required_height,omitempty"`
}

// EventLayout is the render-ready geometry for one TaskEvent inside a
// day column. Width/Left are percentages of the column width; ZIndex
// increases with block index so later blocks stack on top.
type EventLayout struct {
	Events []Event `json:"events"`

	WidthPct float64 `json:"width_pct"`
	LeftPct  float64 `json:"left_pct"`
	ZIndex   int     `json:"z_index"`

	Dimensions Dimensions `json:"dimensions"`
}
