package timeline

import (
	"regionwatch/internal/series"
	"regionwatch/internal/types"
)

// Label layouts.
const (
	OffsetLayout = "Jan 2, 15:04"
	TickLayout   = "Jan 2"
)

// TickSpacingDays is the distance between slider tick labels.
const TickSpacingDays = 7

// Tick is one slider label.
type Tick struct {
	Hour  int    `json:"hour"`
	Label string `json:"label"`
}

// FormatOffset renders an hour offset as a wall-clock label.
func FormatOffset(w series.Window, hour int) string {
	return w.At(hour).Format(OffsetLayout)
}

// Labels returns weekly tick labels across the window.
func Labels(w series.Window) []Tick {
	days := types.WindowDaysBack + types.WindowDaysForward
	ticks := make([]Tick, 0, days/TickSpacingDays+1)
	for d := 0; d <= days; d += TickSpacingDays {
		ticks = append(ticks, Tick{
			Hour:  d * 24,
			Label: w.Start.AddDate(0, 0, d).Format(TickLayout),
		})
	}
	return ticks
}

// Describe renders the active timeline selection, e.g. "Oct 17, 00:00" or
// "Oct 14, 12:00 - Oct 19, 12:00".
func Describe(w series.Window, tl types.TimelineState) string {
	if tl.Mode == types.TimelineRange {
		return FormatOffset(w, tl.Range[0]) + " - " + FormatOffset(w, tl.Range[1])
	}
	return FormatOffset(w, tl.Instant)
}
