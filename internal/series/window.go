// Package series fetches hourly weather time series for a location, caches
// them, and extracts the scalar a region displays for a timeline position.
package series

import (
	"fmt"
	"math"
	"time"

	"regionwatch/internal/types"
)

// DateLayout is the calendar date format sent to the provider.
const DateLayout = "2006-01-02"

// Window is the fixed request window around "today": WindowDaysBack days
// before UTC midnight through WindowDaysForward days after it. Timeline hour
// offsets index into this window; they never shift it.
type Window struct {
	Base  time.Time `json:"base"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow derives the window for the UTC day containing now.
func NewWindow(now time.Time) Window {
	now = now.UTC()
	base := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Window{
		Base:  base,
		Start: base.AddDate(0, 0, -types.WindowDaysBack),
		End:   base.AddDate(0, 0, types.WindowDaysForward),
	}
}

// StartDate is the provider start_date parameter.
func (w Window) StartDate() string { return w.Start.Format(DateLayout) }

// EndDate is the provider end_date parameter.
func (w Window) EndDate() string { return w.End.Format(DateLayout) }

// At returns the wall time of an hour offset into the window.
func (w Window) At(hour int) time.Time {
	return w.Start.Add(time.Duration(hour) * time.Hour)
}

// Hours is the number of addressable hour offsets past Start.
func (w Window) Hours() int {
	return types.WindowHours
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.StartDate(), w.EndDate())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
