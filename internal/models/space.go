package models

// Space is a bookable room. Working hours are wall-clock strings as the
// service sends them ("09:00:00"), nil when the space has none.
type Space struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	WorkStart   *string `json:"work_start,omitempty"`
	WorkEnd     *string `json:"work_end,omitempty"`
}

// HasWorkingHours reports whether both ends of the window are set.
func (s Space) HasWorkingHours() bool {
	return s.WorkStart != nil && s.WorkEnd != nil && *s.WorkStart != "" && *s.WorkEnd != ""
}
