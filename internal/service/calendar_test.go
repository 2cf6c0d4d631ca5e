package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/EpicMandM/space-booking/client/internal/config"
	"github.com/EpicMandM/space-booking/client/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func newTestCalendar(t *testing.T, handler http.HandlerFunc) *CalendarService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewCalendarServiceWithOptions(context.Background(), "rooms@example.com",
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return svc
}

func TestCalendarService_ExportBooking(t *testing.T) {
	var got calendar.Event
	svc := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/events"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(got)
	})

	start := time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC)
	event, err := svc.ExportBooking(context.Background(),
		models.Space{ID: 1, Name: "Blue room"},
		models.Booking{ID: 42, Space: 1, StartTime: start, Duration: 90, Description: "retro"})
	require.NoError(t, err)

	assert.Equal(t, "booking42", event.Id)
	assert.Equal(t, "Blue room", got.Summary)
	assert.Equal(t, "retro", got.Description)
	assert.Equal(t, "2030-06-01T10:00:00Z", got.Start.DateTime)
	assert.Equal(t, "2030-06-01T11:30:00Z", got.End.DateTime)
}

func TestCalendarService_ExportBooking_AlreadyExported(t *testing.T) {
	svc := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":409,"message":"The requested identifier already exists."}}`))
	})

	_, err := svc.ExportBooking(context.Background(), models.Space{Name: "x"}, models.Booking{ID: 1, StartTime: time.Now(), Duration: 30})
	assert.ErrorIs(t, err, ErrAlreadyExported)
}

func TestCalendarService_ExportBooking_ServerError(t *testing.T) {
	svc := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := svc.ExportBooking(context.Background(), models.Space{Name: "x"}, models.Booking{ID: 1, StartTime: time.Now(), Duration: 30})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyExported)
	assert.Contains(t, err.Error(), "failed to export booking 1")
}

func TestEventID_UsesBase32HexAlphabet(t *testing.T) {
	id := EventID(1234)
	assert.Equal(t, "booking1234", id)
	for _, r := range id {
		assert.True(t, (r >= 'a' && r <= 'v') || (r >= '0' && r <= '9'), "unexpected rune %q", r)
	}
}

func TestNewCalendarService_MissingServiceAccount(t *testing.T) {
	_, err := NewCalendarService(context.Background(), config.CalendarConfig{CalendarID: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service_account_path is not configured")

	_, err = NewCalendarService(context.Background(), config.CalendarConfig{
		CalendarID:         "c",
		ServiceAccountPath: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read service account file")
}

func TestLoadServiceAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600))

	data, err := loadServiceAccount(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(data))
}
