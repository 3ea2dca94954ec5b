package timeline

import (
	"sort"
	"time"

	appLog "tabcal/internal/log"
	"tabcal/internal/model"
)

// ProcessOverlaps converts a flat, day-scoped list of events into an
// ordered sequence of TaskEvents whose time spans do not overlap.
//
// Events with unusable start/end instants are dropped, not surfaced as
// errors: a partially rendered day beats an empty one. The rest are
// stably sorted by start time (input order breaks ties) and clustered
// into transitive-closure overlap groups. A singleton group becomes one
// TaskEvent directly; a larger group is sliced into segments so that
// each output block knows exactly which events are live during it.
//
// The function is pure and deterministic; calling it twice on the same
// input yields structurally identical output.
func ProcessOverlaps(events []model.Event) []model.TaskEvent {
	valid := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if !ev.Valid() {
			appLog.Debug("timeline: skipping event with unusable times", "id", ev.ID, "title", ev.Title)
			continue
		}
		valid = append(valid, ev)
	}
	if len(valid) == 0 {
		return []model.TaskEvent{}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})

	processed := make([]bool, len(valid))
	out := make([]model.TaskEvent, 0, len(valid))

	for i := range valid {
		if processed[i] {
			continue
		}
		group := collectGroup(valid, processed, i)

		if len(group) == 1 {
			ev := group[0]
			out = append(out, model.TaskEvent{
				StartTime:           ev.Start,
				EndTime:             ev.End,
				Events:              []model.Event{ev},
				MaxConcurrentEvents: 1,
			})
			continue
		}

		for _, seg := range buildSegments(group) {
			out = append(out, model.TaskEvent{
				StartTime:           seg.StartTime,
				EndTime:             seg.EndTime,
				Events:              seg.Events,
				MaxConcurrentEvents: len(seg.Events),
			})
		}
	}

	return out
}

// collectGroup gathers every event reachable from events[start] via the
// pairwise-overlap relation, marking members as processed so no event
// lands in two groups. The returned group is ordered by position in
// events, which is already stably start-sorted, so same-start members
// keep their input order.
func collectGroup(events []model.Event, processed []bool, start int) []model.Event {
	stack := []int{start}
	processed[start] = true

	members := make([]int, 0, 2)
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		members = append(members, idx)

		for j := range events {
			if processed[j] {
				continue
			}
			if overlaps(events[idx], events[j]) {
				processed[j] = true
				stack = append(stack, j)
			}
		}
	}

	// The worklist visits members out of order; restore index order
	// rather than re-sorting by start time, which would scramble
	// same-start members.
	sort.Ints(members)

	group := make([]model.Event, len(members))
	for i, idx := range members {
		group[i] = events[idx]
	}
	return group
}

// overlaps tests whether [a.Start, a.End) and [b.Start, b.End)
// intersect: max(starts) < min(ends). Touching endpoints do not count as
// overlap, and a zero-duration event (empty interval) overlaps nothing.
func overlaps(a, b model.Event) bool {
	lo := a.Start
	if b.Start.After(lo) {
		lo = b.Start
	}
	hi := a.End
	if b.End.Before(hi) {
		hi = b.End
	}
	return lo.Before(hi)
}

// buildSegments slices an overlap group (size >= 2) into contiguous
// sub-intervals bounded by the group's distinct start/end instants. Each
// segment carries the subset of events active during it, using half-open
// containment (start <= p && end > p) so boundaries never produce false
// positives.
//
// The emitted segments cover [min(starts), max(ends)) of the group with
// no gaps, except for sub-intervals where no event is active, which are
// dropped. For transitively connected groups such holes cannot occur; the
// guard is kept because the cut-point construction does not depend on
// connectivity.
func buildSegments(group []model.Event) []model.Segment {
	points := make([]time.Time, 0, 2*len(group))
	for _, ev := range group {
		points = append(points, ev.Start, ev.End)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Before(points[j])
	})

	cuts := points[:1]
	for _, p := range points[1:] {
		if !p.Equal(cuts[len(cuts)-1]) {
			cuts = append(cuts, p)
		}
	}

	segments := make([]model.Segment, 0, len(cuts)-1)
	for i := 0; i+1 < len(cuts); i++ {
		active := make([]model.Event, 0, len(group))
		for _, ev := range group {
			if !ev.Start.After(cuts[i]) && ev.End.After(cuts[i]) {
				active = append(active, ev)
			}
		}
		if len(active) == 0 {
			continue
		}
		segments = append(segments, model.Segment{
			StartTime: cuts[i],
			EndTime:   cuts[i+1],
			Events:    active,
		})
	}

	return segments
}
