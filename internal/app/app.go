// Package app wires the booking client together: configuration, the token
// store, the API gateway, the session and the booking workflow.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/EpicMandM/space-booking/client/internal/config"
	"github.com/EpicMandM/space-booking/client/internal/logger"
	"github.com/EpicMandM/space-booking/client/internal/models"
	"github.com/EpicMandM/space-booking/client/internal/service"
	"github.com/EpicMandM/space-booking/client/internal/session"
	"github.com/EpicMandM/space-booking/client/internal/store"
	"github.com/EpicMandM/space-booking/client/internal/timerange"
	"github.com/EpicMandM/space-booking/client/internal/workflow"
)

// ErrCalendarDisabled is returned by ExportMyBookings when no calendar is
// configured.
var ErrCalendarDisabled = errors.New("calendar export is not enabled")

type App struct {
	config   *config.Config
	features *config.FeatureConfig
	logger   *logger.Logger

	httpClient *http.Client
	clock      workflow.Clock

	store    store.TokenStore
	gateway  *service.Gateway
	session  *session.Session
	workflow *workflow.Workflow
	admin    *workflow.AdminView
	calendar service.CalendarClient
}

type Option func(*App)

func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.httpClient = c }
}

func WithClock(c workflow.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithCalendar replaces the calendar built from the feature config.
func WithCalendar(c service.CalendarClient) Option {
	return func(a *App) { a.calendar = c }
}

func New(cfg *config.Config, features *config.FeatureConfig, log *logger.Logger, opts ...Option) *App {
	if features == nil {
		features = config.DefaultFeatureConfig()
	}
	if log == nil {
		log = logger.Discard()
	}
	a := &App{
		config:   cfg,
		features: features,
		logger:   log,
		clock:    workflow.SystemClock(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initialize opens the token store, restores the session and confirms it
// with the service. An unreachable service is logged, not fatal.
func (a *App) Initialize(ctx context.Context) error {
	st, err := store.NewSQLiteStore(a.config.StatePath)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	a.store = st

	gwOpts := []service.GatewayOption{
		service.WithAuthTimeout(a.config.AuthTimeout),
		service.WithRateLimit(a.config.RateLimit, a.config.RateBurst),
		service.WithLogger(a.logger),
	}
	if a.httpClient != nil {
		gwOpts = append(gwOpts, service.WithHTTPClient(a.httpClient))
	}

	var sess *session.Session
	tokens := func() string { return sess.Token() }
	a.gateway = service.NewGateway(a.config.APIURL, a.config.MediaURL, tokens, gwOpts...)
	sess = session.New(a.gateway, st, a.logger)
	a.session = sess

	opts, err := a.workflowOptions()
	if err != nil {
		return err
	}
	a.workflow = workflow.New(a.gateway, a.clock, opts, a.logger)
	a.admin = workflow.NewAdminView(a.gateway, a.session, a.logger)

	if a.calendar == nil && a.features.Calendar.Enabled {
		cal, err := service.NewCalendarService(ctx, a.features.Calendar)
		if err != nil {
			return fmt.Errorf("failed to initialize calendar service: %w", err)
		}
		a.calendar = cal
	}

	if err := a.session.Start(ctx); err != nil {
		return err
	}
	if err := a.session.Refresh(ctx); err != nil {
		a.logger.Warn("Could not confirm session", logger.Action("startup"), logger.State(a.session.State().String()), logger.Error(err))
	}

	a.logger.Debug("Client initialized", logger.Action("startup"), logger.Status("ready"), logger.F("API_URL", a.config.APIURL))
	return nil
}

func (a *App) workflowOptions() (workflow.Options, error) {
	start, end, err := a.features.Slots.Window()
	if err != nil {
		return workflow.Options{}, err
	}
	return workflow.Options{
		DayStart:           start,
		DayEnd:             end,
		Step:               a.features.Slots.StepMinutes,
		Location:           a.config.Location,
		DefaultDescription: a.features.Booking.DefaultDescription,
	}, nil
}

func (a *App) Session() *session.Session       { return a.session }
func (a *App) Workflow() *workflow.Workflow    { return a.workflow }
func (a *App) Admin() *workflow.AdminView      { return a.admin }
func (a *App) Gateway() *service.Gateway       { return a.gateway }
func (a *App) Config() *config.Config          { return a.config }
func (a *App) Features() *config.FeatureConfig { return a.features }

// DefaultDuration returns the configured booking length in minutes.
func (a *App) DefaultDuration() int {
	minutes, err := timerange.ParseDuration(a.features.Booking.DefaultDuration)
	if err != nil {
		return 60
	}
	return minutes
}

// ExportResult counts the outcome of a calendar export.
type ExportResult struct {
	Exported int
	Skipped  int
}

// ExportMyBookings copies the caller's bookings into the configured calendar.
// Bookings exported earlier are skipped.
func (a *App) ExportMyBookings(ctx context.Context) (ExportResult, error) {
	var res ExportResult
	if a.calendar == nil {
		return res, ErrCalendarDisabled
	}

	if err := a.workflow.LoadMyBookings(ctx); err != nil {
		return res, err
	}
	spaces, err := a.gateway.ListSpaces(ctx)
	if err != nil {
		return res, err
	}
	byID := make(map[int]models.Space, len(spaces))
	for _, s := range spaces {
		byID[s.ID] = s
	}

	for _, b := range a.workflow.MyBookings() {
		space, ok := byID[b.Space]
		if !ok {
			space = models.Space{ID: b.Space, Name: fmt.Sprintf("Space %d", b.Space)}
		}
		if _, err := a.calendar.ExportBooking(ctx, space, b); err != nil {
			if errors.Is(err, service.ErrAlreadyExported) {
				res.Skipped++
				continue
			}
			return res, err
		}
		res.Exported++
	}

	a.logger.Info("Bookings exported", logger.Action("export_calendar"), logger.Count(res.Exported), logger.F("SKIPPED", res.Skipped))
	return res, nil
}

func (a *App) Close() error {
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			return fmt.Errorf("failed to close state store: %w", err)
		}
		return nil
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
