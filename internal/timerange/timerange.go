// Package timerange holds the time arithmetic shared by every booking
// surface: end instants, slot availability and the slot grid.
package timerange

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/EpicMandM/space-booking/client/internal/models"
)

var (
	ErrNegativeDuration    = errors.New("duration must not be negative")
	ErrNonPositiveDuration = errors.New("duration must be at least one minute")
	ErrInvalidStep         = errors.New("slot step must be positive")
)

// EndInstant returns start plus the given number of minutes. The result keeps
// start's location, so the offset it is encoded with does not change.
func EndInstant(start time.Time, minutes int) (time.Time, error) {
	if minutes < 0 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrNegativeDuration, minutes)
	}
	return start.Add(time.Duration(minutes) * time.Minute), nil
}

// IsSlotAvailable reports whether a candidate slot is free against the
// existing bookings of one space. The slot is taken when its start or its end
// falls inside [b.Start, b.End) of some booking.
//
// A candidate that strictly encloses a shorter booking, with neither of its
// own endpoints inside it, is reported as available. That is the current
// behavior and is kept until the product owners decide otherwise.
func IsSlotAvailable(start time.Time, minutes int, existing []models.Booking) (bool, error) {
	end, err := EndInstant(start, minutes)
	if err != nil {
		return false, err
	}
	for _, b := range existing {
		bStart := b.StartTime
		bEnd, err := EndInstant(bStart, b.Duration)
		if err != nil {
			return false, fmt.Errorf("booking %d: %w", b.ID, err)
		}
		if within(start, bStart, bEnd) || within(end, bStart, bEnd) {
			return false, nil
		}
	}
	return true, nil
}

// within reports t in [start, end).
func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// SortByStart orders bookings by start instant, earliest first. Bookings with
// the same start keep their relative order.
func SortByStart(bookings []models.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].StartTime.Before(bookings[j].StartTime)
	})
}

// ParseDuration converts "HH:MM" into minutes. Zero is rejected.
func ParseDuration(s string) (int, error) {
	hours, minutes, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid duration %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hours)
	if err != nil || h < 0 {
		return 0, fmt.Errorf("invalid duration hours %q", hours)
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid duration minutes %q", minutes)
	}
	total := h*60 + m
	if total < 1 {
		return 0, ErrNonPositiveDuration
	}
	return total, nil
}

// FormatDuration renders minutes as "HH:MM".
func FormatDuration(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
