package workflow

import (
	"context"
	"time"

	"github.com/EpicMandM/space-booking/client/internal/logger"
	"github.com/EpicMandM/space-booking/client/internal/models"
	"github.com/EpicMandM/space-booking/client/internal/service"
	"github.com/EpicMandM/space-booking/client/internal/timerange"
)

// RoleSource reports the superuser flag of the signed-in user.
type RoleSource interface {
	IsSuperuser() bool
}

// AdminView lists and deletes any booking of a space on a date. It is only
// usable by superusers.
type AdminView struct {
	api    service.BookingAPI
	roles  RoleSource
	logger *logger.Logger

	spaceID  int
	date     time.Time
	bookings []models.Booking
}

func NewAdminView(api service.BookingAPI, roles RoleSource, log *logger.Logger) *AdminView {
	if log == nil {
		log = logger.Discard()
	}
	return &AdminView{api: api, roles: roles, logger: log}
}

// Load fetches every booking of the space on the date, earliest first.
func (v *AdminView) Load(ctx context.Context, spaceID int, date time.Time) ([]models.Booking, error) {
	if !v.roles.IsSuperuser() {
		return nil, ErrNotSuperuser
	}

	bookings, err := v.api.SpaceBookings(ctx, spaceID, date)
	if err != nil {
		return nil, err
	}
	timerange.SortByStart(bookings)

	v.spaceID = spaceID
	v.date = date
	v.bookings = bookings
	return v.Bookings(), nil
}

// Delete removes any booking, regardless of owner, and refetches the loaded
// space and date.
func (v *AdminView) Delete(ctx context.Context, bookingID int) ([]models.Booking, error) {
	if !v.roles.IsSuperuser() {
		return nil, ErrNotSuperuser
	}

	if err := v.api.DeleteBooking(ctx, bookingID); err != nil {
		return v.Bookings(), err
	}
	v.logger.Info("Booking deleted by superuser", logger.Action("admin_delete"), logger.Booking(bookingID))

	if v.spaceID == 0 {
		return nil, nil
	}
	return v.Load(ctx, v.spaceID, v.date)
}

func (v *AdminView) Bookings() []models.Booking {
	return append([]models.Booking(nil), v.bookings...)
}
