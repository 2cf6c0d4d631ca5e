package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/EpicMandM/space-booking/client/internal/config"
	"github.com/EpicMandM/space-booking/client/internal/models"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrAlreadyExported means the calendar already holds the booking's event.
var ErrAlreadyExported = errors.New("booking already exported")

type CalendarService struct {
	srv        *calendar.Service
	calendarID string
}

var _ CalendarClient = (*CalendarService)(nil)

// NewCalendarService authenticates with the service account named in cfg.
func NewCalendarService(ctx context.Context, cfg config.CalendarConfig) (*CalendarService, error) {
	tokenJSON, err := loadServiceAccount(cfg.ServiceAccountPath)
	if err != nil {
		return nil, err
	}
	return NewCalendarServiceWithOptions(ctx, cfg.CalendarID, option.WithAuthCredentialsJSON(option.ServiceAccount, tokenJSON))
}

// NewCalendarServiceWithOptions builds the service from explicit client options.
func NewCalendarServiceWithOptions(ctx context.Context, calendarID string, opts ...option.ClientOption) (*CalendarService, error) {
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &CalendarService{srv: srv, calendarID: calendarID}, nil
}

// ExportBooking inserts the booking as an event with an id derived from the
// booking id, so exporting twice is detected rather than duplicated.
func (s *CalendarService) ExportBooking(ctx context.Context, space models.Space, booking models.Booking) (*calendar.Event, error) {
	event := &calendar.Event{
		Id:          EventID(booking.ID),
		Summary:     space.Name,
		Description: booking.Description,
		Start:       &calendar.EventDateTime{DateTime: booking.StartTime.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: booking.End().Format(time.RFC3339)},
	}

	created, err := s.srv.Events.Insert(s.calendarID, event).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
			return nil, ErrAlreadyExported
		}
		return nil, fmt.Errorf("failed to export booking %d: %w", booking.ID, err)
	}
	return created, nil
}

// EventID uses only base32hex characters, as Calendar requires.
func EventID(bookingID int) string {
	return fmt.Sprintf("booking%d", bookingID)
}

func loadServiceAccount(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("service_account_path is not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}
	return data, nil
}
