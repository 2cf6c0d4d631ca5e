// Package workflow drives one booking interaction: pick a date, pick a
// space, choose a slot, submit, and delete own bookings. A Workflow holds the
// lists the user is looking at and is not safe for concurrent use.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/EpicMandM/space-booking/client/internal/apierr"
	"github.com/EpicMandM/space-booking/client/internal/logger"
	"github.com/EpicMandM/space-booking/client/internal/models"
	"github.com/EpicMandM/space-booking/client/internal/service"
	"github.com/EpicMandM/space-booking/client/internal/timerange"
)

var (
	ErrNotOwner        = errors.New("booking is not one of yours")
	ErrNotSuperuser    = errors.New("superuser role required")
	ErrNoSpace         = errors.New("no space selected")
	ErrNoPendingDelete = errors.New("no delete awaiting confirmation")
)

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

type State int

const (
	Idle State = iota
	DateChosen
	SpaceListOpen
	SpaceChosen
	SlotDialogOpen
	Submitting
)

func (s State) String() string {
	switch s {
	case DateChosen:
		return "date_chosen"
	case SpaceListOpen:
		return "space_list_open"
	case SpaceChosen:
		return "space_chosen"
	case SlotDialogOpen:
		return "slot_dialog_open"
	case Submitting:
		return "submitting"
	default:
		return "idle"
	}
}

// Options configures the slot grid and submission defaults.
type Options struct {
	DayStart           timerange.WallClock
	DayEnd             timerange.WallClock
	Step               int
	Location           *time.Location
	DefaultDescription string
}

func DefaultOptions() Options {
	return Options{
		DayStart:           timerange.DefaultDayStart,
		DayEnd:             timerange.DefaultDayEnd,
		Step:               timerange.DefaultStepMinutes,
		Location:           time.Local,
		DefaultDescription: "-",
	}
}

// SlotOption is one grid entry. Available is advisory; Submit does not
// consult it.
type SlotOption struct {
	Start     timerange.WallClock
	StartTime time.Time
	End       time.Time
	Available bool
}

// SlotRequest is a free-form booking request for the open space and date.
type SlotRequest struct {
	Start       timerange.WallClock
	Duration    int
	Description string
}

type Workflow struct {
	api    service.BookingAPI
	clock  Clock
	opts   Options
	logger *logger.Logger

	state    State
	date     time.Time
	spaces   []models.Space
	space    *models.Space
	bookings []models.Booking
	mine     []models.Booking

	pendingDelete int
	err           error
	errOp         apierr.Operation
}

func New(api service.BookingAPI, clock Clock, opts Options, log *logger.Logger) *Workflow {
	if clock == nil {
		clock = SystemClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Step <= 0 {
		opts.Step = timerange.DefaultStepMinutes
	}
	if opts.DayEnd.Minutes() <= opts.DayStart.Minutes() {
		opts.DayStart, opts.DayEnd = timerange.DefaultDayStart, timerange.DefaultDayEnd
	}
	if strings.TrimSpace(opts.DefaultDescription) == "" {
		opts.DefaultDescription = "-"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Workflow{api: api, clock: clock, opts: opts, logger: log}
}

// ChooseDate starts an interaction for the calendar day of date and loads
// the spaces to choose from. On failure the current view is kept.
func (w *Workflow) ChooseDate(ctx context.Context, date time.Time) error {
	day := w.day(date)

	spaces, err := w.api.ListSpaces(ctx)
	if err != nil {
		w.fail(apierr.OpLoadSpaces, err)
		return err
	}

	w.reset()
	w.date = day
	w.spaces = spaces
	w.state = SpaceListOpen
	w.err = nil
	w.logger.Info("Spaces loaded", logger.Action("choose_date"), logger.Date(w.dateString()), logger.Count(len(spaces)))
	return nil
}

// ChooseSpace opens the slot dialog for a space from the loaded list.
func (w *Workflow) ChooseSpace(ctx context.Context, spaceID int) error {
	if w.date.IsZero() {
		return fmt.Errorf("choose a date first")
	}

	var space *models.Space
	for i := range w.spaces {
		if w.spaces[i].ID == spaceID {
			s := w.spaces[i]
			space = &s
			break
		}
	}
	if space == nil {
		fetched, err := w.api.GetSpace(ctx, spaceID)
		if err != nil {
			w.fail(apierr.OpLoadSpaces, err)
			return err
		}
		space = fetched
	}

	bookings, err := w.fetchBookings(ctx, space.ID, w.date)
	if err != nil {
		return err
	}
	w.open(space, w.date, bookings)
	return nil
}

// OpenSpace skips the space list: the space is already known.
func (w *Workflow) OpenSpace(ctx context.Context, spaceID int, date time.Time) error {
	day := w.day(date)

	space, err := w.api.GetSpace(ctx, spaceID)
	if err != nil {
		w.fail(apierr.OpLoadSpaces, err)
		return err
	}
	bookings, err := w.fetchBookings(ctx, space.ID, day)
	if err != nil {
		return err
	}

	w.reset()
	w.open(space, day, bookings)
	return nil
}

func (w *Workflow) fetchBookings(ctx context.Context, spaceID int, day time.Time) ([]models.Booking, error) {
	bookings, err := w.api.SpaceBookings(ctx, spaceID, day)
	if err != nil {
		w.fail(apierr.OpLoadBookings, err)
		return nil, err
	}
	timerange.SortByStart(bookings)
	return bookings, nil
}

// open switches the view to the space once everything it shows is fetched.
func (w *Workflow) open(space *models.Space, day time.Time, bookings []models.Booking) {
	w.space = space
	w.date = day
	w.bookings = bookings
	w.state = SlotDialogOpen
	w.err = nil
	w.logger.Info("Bookings loaded",
		logger.Action("choose_space"),
		logger.Space(space.ID),
		logger.Date(w.dateString()),
		logger.Count(len(bookings)))
}

// Slots lays the grid over the open space's working hours and marks each
// start against the loaded bookings.
func (w *Workflow) Slots(durationMinutes int) ([]SlotOption, error) {
	if w.space == nil || w.state != SlotDialogOpen {
		return nil, ErrNoSpace
	}

	dayStart, dayEnd := timerange.DayWindow(*w.space, w.opts.DayStart, w.opts.DayEnd)
	grid, err := timerange.SlotGrid(dayStart, dayEnd, w.opts.Step)
	if err != nil {
		return nil, err
	}

	slots := make([]SlotOption, 0, len(grid))
	for _, wc := range grid {
		start := wc.On(w.date, w.opts.Location)
		end, err := timerange.EndInstant(start, durationMinutes)
		if err != nil {
			return nil, err
		}
		ok, err := timerange.IsSlotAvailable(start, durationMinutes, w.bookings)
		if err != nil {
			return nil, err
		}
		slots = append(slots, SlotOption{Start: wc, StartTime: start, End: end, Available: ok})
	}
	return slots, nil
}

// Submit creates a booking in the open space. A start in the past is
// rejected without calling the service.
func (w *Workflow) Submit(ctx context.Context, req SlotRequest) (*models.Booking, error) {
	if w.space == nil || w.state != SlotDialogOpen {
		return nil, ErrNoSpace
	}

	start := req.Start.On(w.date, w.opts.Location)
	if start.Before(w.clock.Now()) {
		w.fail(apierr.OpCreateBooking, apierr.ErrPastBooking)
		return nil, apierr.ErrPastBooking
	}
	if req.Duration < 1 {
		err := fmt.Errorf("%w: %d", timerange.ErrNonPositiveDuration, req.Duration)
		w.fail(apierr.OpCreateBooking, err)
		return nil, err
	}

	description := req.Description
	if strings.TrimSpace(description) == "" {
		description = w.opts.DefaultDescription
	}

	w.state = Submitting
	created, err := w.api.CreateBooking(ctx, models.BookingDraft{
		Space:       w.space.ID,
		StartTime:   start,
		Duration:    req.Duration,
		Description: description,
	})
	if err != nil {
		w.state = SlotDialogOpen
		w.fail(apierr.OpCreateBooking, err)
		return nil, err
	}

	w.bookings = append(w.bookings, *created)
	timerange.SortByStart(w.bookings)
	w.mine = append(w.mine, *created)
	timerange.SortByStart(w.mine)

	w.state = Idle
	w.err = nil
	w.logger.Info("Booking created",
		logger.Action("create_booking"),
		logger.Booking(created.ID),
		logger.Space(created.Space),
		logger.Date(w.dateString()))
	return created, nil
}

// LoadMyBookings replaces the own-bookings list.
func (w *Workflow) LoadMyBookings(ctx context.Context) error {
	mine, err := w.api.MyBookings(ctx)
	if err != nil {
		w.fail(apierr.OpLoadBookings, err)
		return err
	}
	timerange.SortByStart(mine)
	w.mine = mine
	w.err = nil
	return nil
}

// RequestDelete marks one of the caller's bookings for deletion. Nothing is
// sent until ConfirmDelete.
func (w *Workflow) RequestDelete(bookingID int) error {
	if !w.isMineID(bookingID) {
		return ErrNotOwner
	}
	w.pendingDelete = bookingID
	return nil
}

func (w *Workflow) CancelDelete() {
	w.pendingDelete = 0
}

// PendingDelete returns the booking awaiting confirmation, or 0.
func (w *Workflow) PendingDelete() int {
	return w.pendingDelete
}

// ConfirmDelete deletes the pending booking. On failure every list is left
// as it was and the request stays pending.
func (w *Workflow) ConfirmDelete(ctx context.Context) error {
	id := w.pendingDelete
	if id == 0 {
		return ErrNoPendingDelete
	}

	if err := w.api.DeleteBooking(ctx, id); err != nil {
		w.fail(apierr.OpDeleteBooking, err)
		return err
	}

	w.pendingDelete = 0
	w.mine = removeBooking(w.mine, id)
	w.bookings = removeBooking(w.bookings, id)
	w.err = nil
	w.logger.Info("Booking deleted", logger.Action("delete_booking"), logger.Booking(id))

	if w.space != nil && !w.date.IsZero() {
		bookings, err := w.api.SpaceBookings(ctx, w.space.ID, w.date)
		if err != nil {
			w.logger.Warn("Failed to refetch bookings after delete", logger.Space(w.space.ID), logger.Error(err))
			return nil
		}
		timerange.SortByStart(bookings)
		w.bookings = bookings
	}
	return nil
}

// Close closes the dialog and drops the per-date view.
func (w *Workflow) Close() {
	w.state = Idle
	w.space = nil
	w.bookings = nil
	w.pendingDelete = 0
}

// Err returns the failure of the last action, cleared by the next success.
func (w *Workflow) Err() error {
	return w.err
}

// Message renders Err for the user.
func (w *Workflow) Message() string {
	return apierr.Message(w.errOp, w.err)
}

func (w *Workflow) State() State { return w.state }

func (w *Workflow) Date() time.Time { return w.date }

// Space returns the open space, or nil.
func (w *Workflow) Space() *models.Space { return w.space }

func (w *Workflow) Spaces() []models.Space {
	return append([]models.Space(nil), w.spaces...)
}

// Bookings returns the open space's bookings for the date, earliest first.
func (w *Workflow) Bookings() []models.Booking {
	return append([]models.Booking(nil), w.bookings...)
}

// MyBookings returns the caller's bookings, earliest first.
func (w *Workflow) MyBookings() []models.Booking {
	return append([]models.Booking(nil), w.mine...)
}

// IsMine reports whether b is in the loaded own-bookings list.
func (w *Workflow) IsMine(b models.Booking) bool {
	return w.isMineID(b.ID)
}

func (w *Workflow) isMineID(id int) bool {
	for _, b := range w.mine {
		if b.ID == id {
			return true
		}
	}
	return false
}

func (w *Workflow) reset() {
	w.Close()
	w.spaces = nil
	w.date = time.Time{}
}

func (w *Workflow) fail(op apierr.Operation, err error) {
	w.err = err
	w.errOp = op
	w.logger.Warn("Booking action failed",
		logger.Reason(apierr.KindOf(err).String()),
		logger.State(w.state.String()),
		logger.Error(err))
}

func (w *Workflow) day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, w.opts.Location)
}

func (w *Workflow) dateString() string {
	return w.date.Format("2006-01-02")
}

func removeBooking(list []models.Booking, id int) []models.Booking {
	out := list[:0:0]
	for _, b := range list {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}
