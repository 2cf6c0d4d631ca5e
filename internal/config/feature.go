package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/EpicMandM/space-booking/client/internal/timerange"
)

// FeatureConfig holds user-facing settings that change how the booking
// surfaces behave. Source: TOML configuration file.
type FeatureConfig struct {
	Slots    SlotsConfig    `toml:"slots"`
	Booking  BookingConfig  `toml:"booking"`
	Calendar CalendarConfig `toml:"calendar"`
}

// SlotsConfig is the fallback grid for spaces without working hours.
type SlotsConfig struct {
	DayStart    string `toml:"day_start"`
	DayEnd      string `toml:"day_end"`
	StepMinutes int    `toml:"step_minutes"`
}

type BookingConfig struct {
	DefaultDescription string `toml:"default_description"`
	DefaultDuration    string `toml:"default_duration"`
}

// CalendarConfig holds configuration for Google Calendar export
type CalendarConfig struct {
	Enabled            bool   `toml:"enabled"`
	CalendarID         string `toml:"calendar_id"`
	ServiceAccountPath string `toml:"service_account_path"`
}

// DefaultFeatureConfig mirrors the behavior of the web client.
func DefaultFeatureConfig() *FeatureConfig {
	return &FeatureConfig{
		Slots: SlotsConfig{
			DayStart:    timerange.DefaultDayStart.String(),
			DayEnd:      timerange.DefaultDayEnd.String(),
			StepMinutes: timerange.DefaultStepMinutes,
		},
		Booking: BookingConfig{
			DefaultDescription: "-",
			DefaultDuration:    "01:00",
		},
	}
}

// LoadFeatureConfig loads feature configuration from a TOML file. A missing
// file yields the defaults; keys absent from the file keep their defaults.
func LoadFeatureConfig(path string) (*FeatureConfig, error) {
	cfg := DefaultFeatureConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to load feature config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the slot window and defaults parse.
func (c *FeatureConfig) Validate() error {
	if _, _, err := c.Slots.Window(); err != nil {
		return err
	}
	if c.Slots.StepMinutes <= 0 {
		return fmt.Errorf("slots.step_minutes must be positive")
	}
	if _, err := timerange.ParseDuration(c.Booking.DefaultDuration); err != nil {
		return fmt.Errorf("booking.default_duration: %w", err)
	}
	if c.Booking.DefaultDescription == "" {
		return fmt.Errorf("booking.default_description must not be empty")
	}
	if c.Calendar.Enabled && c.Calendar.CalendarID == "" {
		return fmt.Errorf("calendar.calendar_id is required when calendar export is enabled")
	}
	return nil
}

// Window parses the fallback day window.
func (s SlotsConfig) Window() (timerange.WallClock, timerange.WallClock, error) {
	start, err := timerange.ParseWallClock(s.DayStart)
	if err != nil {
		return timerange.WallClock{}, timerange.WallClock{}, fmt.Errorf("slots.day_start: %w", err)
	}
	end, err := timerange.ParseWallClock(s.DayEnd)
	if err != nil {
		return timerange.WallClock{}, timerange.WallClock{}, fmt.Errorf("slots.day_end: %w", err)
	}
	return start, end, nil
}
