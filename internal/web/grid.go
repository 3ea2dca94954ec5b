package web

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	appLog "tabcal/internal/log"
	"tabcal/internal/model"
)

// The /calendar page is a static server-side rendering of the week
// grid: hour rows sized from the shared height table, blocks absolutely
// positioned from the computed geometry. The root element carries
// data-ready="true" once rendered so the capture step knows when to
// screenshot.
var gridTemplate = template.Must(template.New("grid").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>tabcal</title>
<style>
  body { margin: 0; font-family: sans-serif; font-size: 12px; }
  .grid { display: flex; }
  .hours { width: 48px; }
  .hour { box-sizing: border-box; border-top: 1px solid #ddd; color: #888; padding: 2px 4px; }
  .day { flex: 1; border-left: 1px solid #ddd; }
  .day-header { height: 40px; text-align: center; border-bottom: 2px solid #bbb; padding-top: 4px; }
  .day-header.today { font-weight: bold; background: #eef; }
  .allday { font-size: 11px; background: #f3f3f3; border-radius: 3px; margin: 1px 2px; padding: 1px 4px; }
  .column { position: relative; height: {{printf "%.0f" .TotalHeight}}px; }
  .block { position: absolute; box-sizing: border-box; background: #dbe7ff; border: 1px solid #7a9ee8;
           border-radius: 4px; overflow: hidden; padding: 2px 4px; }
  .block .when { color: #555; font-size: 10px; }
  .now { position: absolute; left: 0; right: 0; border-top: 2px solid #d33; }
</style>
</head>
<body>
<div class="grid" data-ready="true" data-generated="{{.Generated}}">
  <div class="hours">
    <div class="day-header"></div>
    <div class="column">
      {{range .Hours}}<div class="hour" style="height: {{printf "%.2f" .Height}}px;">{{.Label}}</div>
      {{end}}
    </div>
  </div>
  {{range $di, $day := .Days}}
  <div class="day">
    <div class="day-header{{if $day.IsToday}} today{{end}}">{{$day.Label}}</div>
    {{range $day.AllDay}}<div class="allday">{{.}}</div>{{end}}
    <div class="column">
      {{range $day.Blocks}}
      <div class="block" style="top: {{printf "%.2f" .Top}}px; height: {{printf "%.2f" .Height}}px; left: {{printf "%.2f" .Left}}%; width: {{printf "%.2f" .Width}}%; z-index: {{.ZIndex}};">
        <div class="when">{{.Times}}</div>
        <div>{{.Title}}</div>
      </div>
      {{end}}
      {{if $day.IsToday}}<div class="now" style="top: {{printf "%.2f" $.NowOffset}}px;"></div>{{end}}
    </div>
  </div>
  {{end}}
</div>
</body>
</html>
`))

type gridHour struct {
	Label  string
	Height float64
}

type gridBlock struct {
	Top, Height  float64
	Left, Width  float64
	ZIndex       int
	Title, Times string
}

type gridDay struct {
	Label   string
	IsToday bool
	AllDay  []string
	Blocks  []gridBlock
}

type gridData struct {
	Generated   string
	TotalHeight float64
	Hours       []gridHour
	Days        []gridDay
	NowOffset   float64
	NowDay      int
}

// handleCalendar renders the week grid as HTML.
//
// GET /calendar?date=2026-03-02&days=7
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	start, days, loc := s.window(r)
	events, err := s.collectEvents(r.Context(), start, days, loc)
	if err != nil {
		appLog.Error("event collection failed", err)
		http.Error(w, "failed to collect events", http.StatusInternalServerError)
		return
	}

	columns, allDay := splitByDay(events, start, days)
	week := s.calc.Compute(columns)
	now := s.now().In(loc)

	data := gridData{
		Generated:   now.Format(time.RFC3339),
		TotalHeight: week.TotalHeight,
		NowOffset:   s.calc.NowOffset(week, now),
		NowDay:      dayIndexOf(now, start, days),
	}
	for h := 0; h < 24; h++ {
		data.Hours = append(data.Hours, gridHour{
			Label:  fmt.Sprintf("%02d:00", h),
			Height: week.HourHeights[h],
		})
	}
	for d, day := range week.Days {
		gd := gridDay{
			Label:   day.Date.Format("Mon 01-02"),
			IsToday: d == data.NowDay,
		}
		for _, dto := range allDay[d] {
			gd.AllDay = append(gd.AllDay, dto.Title)
		}
		for _, l := range day.Layouts {
			gd.Blocks = append(gd.Blocks, gridBlock{
				Top:    l.Dimensions.Top,
				Height: l.Dimensions.Height,
				Left:   l.LeftPct,
				Width:  l.WidthPct,
				ZIndex: l.ZIndex,
				Title:  blockTitle(l.Events),
				Times:  blockTimes(l),
			})
		}
		data.Days = append(data.Days, gd)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := gridTemplate.Execute(w, data); err != nil {
		appLog.Error("grid template render failed", err)
	}
}

func blockTitle(events []model.Event) string {
	if len(events) == 1 {
		return events[0].Title
	}
	titles := make([]string, 0, len(events))
	for _, ev := range events {
		titles = append(titles, ev.Title)
	}
	return fmt.Sprintf("%d events: %s", len(events), strings.Join(titles, ", "))
}

func blockTimes(l model.EventLayout) string {
	end := fmt.Sprintf("%02d:%02d", l.Dimensions.EndHour, l.Dimensions.EndMinute)
	// A block ending exactly at midnight (e.g. clipped at the column
	// boundary) would otherwise read "23:00-00:00".
	if l.Dimensions.EndHour == 0 && l.Dimensions.EndMinute == 0 && l.Dimensions.DurationMinutes > 0 {
		end = "24:00"
	}
	return fmt.Sprintf("%02d:%02d-%s", l.Dimensions.StartHour, l.Dimensions.StartMinute, end)
}
