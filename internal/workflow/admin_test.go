package workflow

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/EpicMandM/space-booking/client/internal/apierr"
	"github.com/EpicMandM/space-booking/client/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRoles bool

func (r staticRoles) IsSuperuser() bool { return bool(r) }

func TestAdminView_RequiresSuperuser(t *testing.T) {
	api := &mockBookingAPI{}
	v := NewAdminView(api, staticRoles(false), nil)

	_, err := v.Load(context.Background(), 1, june1)
	assert.ErrorIs(t, err, ErrNotSuperuser)

	_, err = v.Delete(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotSuperuser)

	assert.Zero(t, api.spaceBookingsCalls)
	assert.Empty(t, api.deleteCalls)
}

func TestAdminView_LoadSorted(t *testing.T) {
	api := &mockBookingAPI{spaceBookingsFn: func(ctx context.Context, spaceID int, date time.Time) ([]models.Booking, error) {
		return []models.Booking{{ID: 2, StartTime: at(15, 0), User: 3}, {ID: 1, StartTime: at(9, 0), User: 4}}, nil
	}}
	v := NewAdminView(api, staticRoles(true), nil)

	bookings, err := v.Load(context.Background(), 1, june1)
	require.NoError(t, err)

	require.Len(t, bookings, 2)
	assert.Equal(t, 1, bookings[0].ID)
	assert.Equal(t, 2, bookings[1].ID)
}

func TestAdminView_DeleteAnyBookingRefetches(t *testing.T) {
	remaining := []models.Booking{{ID: 1, StartTime: at(9, 0)}, {ID: 2, StartTime: at(15, 0)}}
	api := &mockBookingAPI{
		spaceBookingsFn: func(ctx context.Context, spaceID int, date time.Time) ([]models.Booking, error) {
			return append([]models.Booking(nil), remaining...), nil
		},
		deleteFn: func(ctx context.Context, id int) error {
			remaining = remaining[1:]
			return nil
		},
	}
	v := NewAdminView(api, staticRoles(true), nil)
	_, err := v.Load(context.Background(), 1, june1)
	require.NoError(t, err)

	bookings, err := v.Delete(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, api.deleteCalls)
	assert.Equal(t, 2, api.spaceBookingsCalls)
	require.Len(t, bookings, 1)
	assert.Equal(t, 2, bookings[0].ID)
}

func TestAdminView_DeleteFailureKeepsList(t *testing.T) {
	api := &mockBookingAPI{
		spaceBookingsFn: func(ctx context.Context, spaceID int, date time.Time) ([]models.Booking, error) {
			return []models.Booking{{ID: 1, StartTime: at(9, 0)}}, nil
		},
		deleteFn: func(ctx context.Context, id int) error {
			return apierr.FromStatus(http.StatusNotFound, []byte(`{"detail":"Not found."}`))
		},
	}
	v := NewAdminView(api, staticRoles(true), nil)
	_, err := v.Load(context.Background(), 1, june1)
	require.NoError(t, err)

	bookings, err := v.Delete(context.Background(), 1)

	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
	assert.Len(t, bookings, 1)
	assert.Equal(t, 1, api.spaceBookingsCalls)
}
