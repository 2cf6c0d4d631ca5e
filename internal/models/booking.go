package models

import "time"

// Booking represents a reservation of a space for a start instant plus a duration.
type Booking struct {
	ID          int       `json:"id"`
	Space       int       `json:"space"`
	StartTime   time.Time `json:"start_time"`
	Duration    int       `json:"duration"` // minutes
	Description string    `json:"description"`
	User        int       `json:"user,omitempty"`
}

// End returns the instant the booking ends, in the start's location.
func (b Booking) End() time.Time {
	return b.StartTime.Add(time.Duration(b.Duration) * time.Minute)
}

// BookingDraft is the body of a create request.
type BookingDraft struct {
	Space       int       `json:"space"`
	StartTime   time.Time `json:"start_time"`
	Duration    int       `json:"duration"`
	Description string    `json:"description"`
}
