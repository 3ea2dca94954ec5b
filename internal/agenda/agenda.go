// Package agenda prints a computed week as a terminal table, for the
// -dump mode and for eyeballing layouts without a browser.
package agenda

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tabcal/internal/timeline"
)

// Render writes one row per laid-out block, grouped by day. Blocks on
// the current day are highlighted.
func Render(w io.Writer, days []timeline.DayLayout, now time.Time) error {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	table.AddRow("DAY", "TIME", "EVENTS", "CONCURRENT", "TOP(px)", "HEIGHT(px)")

	today := color.New(color.FgGreen, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	rows := 0
	for _, day := range days {
		label := day.Date.Format("Mon 2006-01-02")
		isToday := sameDay(day.Date, now)
		for _, l := range day.Layouts {
			titles := make([]string, 0, len(l.Events))
			for _, ev := range l.Events {
				titles = append(titles, ev.Title)
			}
			span := fmt.Sprintf("%02d:%02d-%02d:%02d",
				l.Dimensions.StartHour, l.Dimensions.StartMinute,
				l.Dimensions.EndHour, l.Dimensions.EndMinute)

			dayCell := label
			if isToday {
				dayCell = today(label)
			}
			table.AddRow(dayCell, span, strings.Join(titles, ", "),
				len(l.Events),
				fmt.Sprintf("%.0f", l.Dimensions.Top),
				fmt.Sprintf("%.0f", l.Dimensions.Height))
			rows++
		}
	}

	if rows == 0 {
		_, err := fmt.Fprintln(w, dim("no events in range"))
		return err
	}
	_, err := fmt.Fprintln(w, table)
	return err
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
