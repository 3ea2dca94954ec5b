package feed

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "tabcal/internal/log"
	"tabcal/internal/model"
)

const defaultMaxOccurrences = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the timezone all occurrences are converted to.
	// Nil means time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the expansion window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules. Zero means the default.
	MaxOccurrencesPerEvent int
}

// Expand turns parsed VEVENTs into concrete model.Events within the
// window: plain events pass through, RRULE events are expanded with
// EXDATE removal and RECURRENCE-ID overrides applied, and everything is
// normalized into the display timezone.
func Expand(events []ParsedEvent, cfg ExpandConfig) ([]model.Event, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("feed: expand range end before start")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrences
	}

	// Split base events from override instances, keyed by UID.
	base := make([]ParsedEvent, 0, len(events))
	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		} else {
			base = append(base, ev)
		}
	}

	out := make([]model.Event, 0, len(base))
	for _, ev := range base {
		if ev.RawRRule == "" {
			if occ, ok := expandSingle(ev, overrides[ev.UID], cfg); ok {
				out = append(out, occ)
			}
			continue
		}
		out = append(out, expandRecurring(ev, overrides[ev.UID], cfg)...)
	}

	return out, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) (model.Event, bool) {
	if !windowsIntersect(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return model.Event{}, false
	}

	start, end := ev.Start, ev.End
	if o, ok := overrideFor(overrides, start); ok {
		ev, start, end = o, o.Start, o.End
	}
	return toEvent(ev, start, end, cfg.DisplayLocation), true
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Event {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Warn("feed: unparseable RRULE, skipping event", "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between wants the window in the event's own location.
	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(rangeStart, rangeEnd, true)

	if len(starts) > cfg.MaxOccurrencesPerEvent {
		appLog.Warn("feed: occurrence cap hit, truncating", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		starts = starts[:cfg.MaxOccurrencesPerEvent]
	}

	duration := ev.End.Sub(ev.Start)
	out := make([]model.Event, 0, len(starts))
	for _, occStart := range starts {
		var occEnd time.Time
		if ev.AllDay {
			// All-day instances snap to [midnight, next midnight).
			day := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart, occEnd = day, day.Add(24*time.Hour)
		} else {
			occEnd = occStart.Add(duration)
		}

		instance := ev
		if o, ok := overrideFor(overrides, occStart); ok {
			instance, occStart, occEnd = o, o.Start, o.End
		}
		out = append(out, toEvent(instance, occStart, occEnd, cfg.DisplayLocation))
	}
	return out
}

// overrideFor returns the override whose RECURRENCE-ID equals the given
// instance start, if any.
func overrideFor(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(start.Location()).Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// toEvent converts one concrete instance into a model.Event in the
// display timezone. The ID combines UID and instance start so recurring
// instances stay distinct.
func toEvent(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Event {
	startLocal := start.In(loc)
	return model.Event{
		ID:          ev.UID + "@" + startLocal.Format(time.RFC3339),
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       startLocal,
		End:         end.In(loc),
	}
}

func windowsIntersect(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
