package timerange

import (
	"fmt"
	"time"

	"github.com/EpicMandM/space-booking/client/internal/models"
)

// Default grid used when a space has no working hours.
var (
	DefaultDayStart = WallClock{Hour: 9}
	DefaultDayEnd   = WallClock{Hour: 18}
)

const DefaultStepMinutes = 30

// WallClock is a time of day without a date or zone.
type WallClock struct {
	Hour   int
	Minute int
}

// ParseWallClock accepts "HH:MM" and "HH:MM:SS". Seconds are dropped.
func ParseWallClock(s string) (WallClock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return WallClock{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return WallClock{}, fmt.Errorf("invalid time of day %q", s)
}

// FormatWallClock renders the time of day of t as "HH:MM".
func FormatWallClock(t time.Time) string {
	return WallClock{Hour: t.Hour(), Minute: t.Minute()}.String()
}

func (w WallClock) String() string {
	return fmt.Sprintf("%02d:%02d", w.Hour, w.Minute)
}

// Minutes returns minutes since midnight.
func (w WallClock) Minutes() int {
	return w.Hour*60 + w.Minute
}

// On places the wall clock on the calendar day of date in loc.
func (w WallClock) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, w.Hour, w.Minute, 0, 0, loc)
}

func wallClockFromMinutes(total int) WallClock {
	return WallClock{Hour: total / 60, Minute: total % 60}
}

// SlotGrid lists candidate start times from dayStart in step-minute
// increments, stopping before dayEnd.
func SlotGrid(dayStart, dayEnd WallClock, step int) ([]WallClock, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	var grid []WallClock
	for m := dayStart.Minutes(); m < dayEnd.Minutes(); m += step {
		grid = append(grid, wallClockFromMinutes(m))
	}
	return grid, nil
}

// DayWindow returns the space's working hours, or the fallback window when
// the space has none or they do not parse.
func DayWindow(space models.Space, fallbackStart, fallbackEnd WallClock) (WallClock, WallClock) {
	if !space.HasWorkingHours() {
		return fallbackStart, fallbackEnd
	}
	start, err := ParseWallClock(*space.WorkStart)
	if err != nil {
		return fallbackStart, fallbackEnd
	}
	end, err := ParseWallClock(*space.WorkEnd)
	if err != nil {
		return fallbackStart, fallbackEnd
	}
	return start, end
}
