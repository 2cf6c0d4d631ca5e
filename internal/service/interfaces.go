package service

import (
	"context"
	"time"

	"github.com/EpicMandM/space-booking/client/internal/models"
	"google.golang.org/api/calendar/v3"
)

// AuthAPI abstracts the authentication endpoints for testability.
type AuthAPI interface {
	Register(ctx context.Context, creds models.Credentials) error
	Login(ctx context.Context, creds models.Credentials) (string, error)
	Me(ctx context.Context) (*models.CurrentUser, error)
}

// BookingAPI abstracts the space and booking endpoints for testability.
type BookingAPI interface {
	ListSpaces(ctx context.Context) ([]models.Space, error)
	GetSpace(ctx context.Context, id int) (*models.Space, error)
	SpaceBookings(ctx context.Context, spaceID int, date time.Time) ([]models.Booking, error)
	MyBookings(ctx context.Context) ([]models.Booking, error)
	CreateBooking(ctx context.Context, draft models.BookingDraft) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id int) error
}

// CalendarClient abstracts Google Calendar operations for testability.
type CalendarClient interface {
	ExportBooking(ctx context.Context, space models.Space, booking models.Booking) (*calendar.Event, error)
}
