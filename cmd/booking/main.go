package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/EpicMandM/space-booking/client/internal/apierr"
	"github.com/EpicMandM/space-booking/client/internal/app"
	"github.com/EpicMandM/space-booking/client/internal/config"
	"github.com/EpicMandM/space-booking/client/internal/logger"
	"github.com/EpicMandM/space-booking/client/internal/models"
	"github.com/EpicMandM/space-booking/client/internal/service"
	"github.com/EpicMandM/space-booking/client/internal/session"
	"github.com/EpicMandM/space-booking/client/internal/timerange"
	"github.com/EpicMandM/space-booking/client/internal/workflow"
)

const (
	dateLayout     = "2006-01-02"
	commandTimeout = 30 * time.Second
)

var (
	errUsage       = errors.New("usage")
	errNotLoggedIn = errors.New("not logged in, run the login command first")
)

// userError carries the message shown to the user next to the cause that is
// logged.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.err }

func fail(op apierr.Operation, err error) error {
	if err == nil {
		return nil
	}
	return &userError{msg: apierr.Message(op, err), err: err}
}

type command struct {
	summary string
	run     func(c *cli, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"login":           {"log in and remember the session", (*cli).login},
	"register":        {"create an account and log in", (*cli).register},
	"logout":          {"forget the session", (*cli).logout},
	"whoami":          {"show the signed-in user", (*cli).whoami},
	"spaces":          {"list bookable spaces", (*cli).spaces},
	"space":           {"show one space", (*cli).space},
	"bookings":        {"list bookings of a space on a date", (*cli).bookings},
	"slots":           {"show free and taken slots of a space on a date", (*cli).slots},
	"book":            {"book a space", (*cli).book},
	"mine":            {"list your bookings", (*cli).mine},
	"cancel":          {"delete one of your bookings", (*cli).cancel},
	"admin-bookings":  {"list every booking of a space on a date (superuser)", (*cli).adminBookings},
	"admin-cancel":    {"delete any booking (superuser)", (*cli).adminCancel},
	"export-calendar": {"copy your bookings into Google Calendar", (*cli).exportCalendar},
}

type cli struct {
	app    *app.App
	in     *bufio.Reader
	rawIn  io.Reader
	out    io.Writer
	errOut io.Writer
	loc    *time.Location
	now    func() time.Time
}

func main() {
	log := logger.New()

	err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr, log)
	if err == nil {
		return
	}
	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	var uerr *userError
	if errors.As(err, &uerr) {
		log.Error("Command failed", logger.Error(uerr.err))
		fmt.Fprintln(os.Stderr, uerr.msg)
	} else {
		log.Error("Command failed", logger.Error(err))
	}
	os.Exit(1)
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer, log *logger.Logger, opts ...app.Option) error {
	if len(args) < 1 {
		printUsage(errOut)
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(errOut, "unknown command: %s\n", args[0])
		printUsage(errOut)
		return errUsage
	}

	envPath := getEnvOrDefault("BOOKING_ENV_FILE", ".env")
	cfg, err := config.LoadWithFile(envPath)
	if err != nil {
		log.Error("Failed to load config", logger.Error(err), logger.F("path", envPath))
		return err
	}
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))

	features, err := config.LoadFeatureConfig(cfg.FeaturePath)
	if err != nil {
		log.Error("Failed to load feature config", logger.Error(err), logger.F("path", cfg.FeaturePath))
		return err
	}

	a := app.New(cfg, features, log, opts...)
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Error("Failed to close client", logger.Error(cerr))
		}
	}()
	if err := a.Initialize(ctx); err != nil {
		return err
	}

	c := &cli{
		app:    a,
		in:     bufio.NewReader(in),
		rawIn:  in,
		out:    out,
		errOut: errOut,
		loc:    cfg.Location,
		now:    time.Now,
	}
	return cmd.run(c, ctx, args[1:])
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: booking <command> [flags]")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, commands[name].summary)
	}
	_ = tw.Flush()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *cli) parseDate(s string) (time.Time, error) {
	if s == "" {
		return c.now().In(c.loc), nil
	}
	d, err := time.ParseInLocation(dateLayout, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

func (c *cli) requireLogin() error {
	if c.app.Session().State() != session.Authenticated {
		return errNotLoggedIn
	}
	return nil
}

func (c *cli) readPassword() (string, error) {
	if c.rawIn == os.Stdin {
		return service.ReadPassword(os.Stdin, c.errOut, "Password: ")
	}
	return service.ReadPassword(c.in, c.errOut, "Password: ")
}

func (c *cli) confirm(prompt string) bool {
	fmt.Fprintf(c.errOut, "%s [y/N]: ", prompt)
	line, _ := c.in.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func (c *cli) credentials(name string, args []string) (models.Credentials, error) {
	fs := c.flags(name)
	username := fs.String("username", "", "account name")
	if err := fs.Parse(args); err != nil {
		return models.Credentials{}, err
	}
	if *username == "" {
		return models.Credentials{}, fmt.Errorf("-username is required")
	}
	password, err := c.readPassword()
	if err != nil {
		return models.Credentials{}, err
	}
	return models.Credentials{Username: *username, Password: password}, nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	creds, err := c.credentials("login", args)
	if err != nil {
		return err
	}
	if err := c.app.Session().Login(ctx, creds); err != nil {
		return fail(apierr.OpLogin, err)
	}
	fmt.Fprintf(c.out, "Logged in as %s\n", c.app.Session().Identity().Username)
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	creds, err := c.credentials("register", args)
	if err != nil {
		return err
	}
	if err := c.app.Session().Register(ctx, creds); err != nil {
		return fail(apierr.OpRegister, err)
	}
	fmt.Fprintf(c.out, "Registered and logged in as %s\n", creds.Username)
	return nil
}

func (c *cli) logout(ctx context.Context, args []string) error {
	if err := c.app.Session().Logout(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}

func (c *cli) whoami(ctx context.Context, args []string) error {
	sess := c.app.Session()
	if sess.State() != session.Authenticated {
		fmt.Fprintln(c.out, "Not logged in")
		return nil
	}
	id := sess.Identity()
	name := id.Username
	if name == "" {
		name = "(unconfirmed)"
	}
	var roles []string
	if id.IsSuperuser {
		roles = append(roles, "superuser")
	}
	if id.IsAdmin {
		roles = append(roles, "admin")
	}
	if len(roles) == 0 {
		fmt.Fprintln(c.out, name)
		return nil
	}
	fmt.Fprintf(c.out, "%s (%s)\n", name, strings.Join(roles, ", "))
	return nil
}

func (c *cli) spaces(ctx context.Context, args []string) error {
	fs := c.flags("spaces")
	date := fs.String("date", "", "date (YYYY-MM-DD), today by default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	day, err := c.parseDate(*date)
	if err != nil {
		return err
	}

	wf := c.app.Workflow()
	if err := wf.ChooseDate(ctx, day); err != nil {
		return fail(apierr.OpLoadSpaces, err)
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tHOURS\tIMAGE")
	for _, s := range wf.Spaces() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Name, hours(s), c.app.Gateway().ImageURL(s.Image))
	}
	return tw.Flush()
}

func (c *cli) space(ctx context.Context, args []string) error {
	fs := c.flags("space")
	id := fs.Int("id", 0, "space id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}

	s, err := c.app.Gateway().GetSpace(ctx, *id)
	if err != nil {
		return fail(apierr.OpLoadSpaces, err)
	}
	fmt.Fprintf(c.out, "%s (#%d)\n", s.Name, s.ID)
	if s.Description != "" {
		fmt.Fprintln(c.out, s.Description)
	}
	fmt.Fprintf(c.out, "Hours: %s\n", hours(*s))
	if img := c.app.Gateway().ImageURL(s.Image); img != "" {
		fmt.Fprintf(c.out, "Image: %s\n", img)
	}
	return nil
}

// spaceDay parses -space and -date and opens the slot dialog for them.
func (c *cli) spaceDay(ctx context.Context, name string, args []string, extra func(fs *flag.FlagSet)) error {
	fs := c.flags(name)
	spaceID := fs.Int("space", 0, "space id")
	date := fs.String("date", "", "date (YYYY-MM-DD), today by default")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *spaceID == 0 {
		return fmt.Errorf("-space is required")
	}
	day, err := c.parseDate(*date)
	if err != nil {
		return err
	}
	if err := c.app.Workflow().OpenSpace(ctx, *spaceID, day); err != nil {
		return fail(apierr.OpLoadBookings, err)
	}
	return nil
}

func (c *cli) bookings(ctx context.Context, args []string) error {
	if err := c.spaceDay(ctx, "bookings", args, nil); err != nil {
		return err
	}
	wf := c.app.Workflow()
	if c.app.Session().State() == session.Authenticated {
		if err := wf.LoadMyBookings(ctx); err != nil {
			return fail(apierr.OpLoadBookings, err)
		}
	}

	list := wf.Bookings()
	if len(list) == 0 {
		fmt.Fprintln(c.out, "No bookings")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tDESCRIPTION\tMINE")
	for _, b := range list {
		mine := ""
		if wf.IsMine(b) {
			mine = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", b.ID, c.clock(b.StartTime), c.clock(b.End()), b.Description, mine)
	}
	return tw.Flush()
}

func (c *cli) slots(ctx context.Context, args []string) error {
	duration := c.app.Features().Booking.DefaultDuration
	err := c.spaceDay(ctx, "slots", args, func(fs *flag.FlagSet) {
		fs.StringVar(&duration, "duration", duration, "duration (HH:MM)")
	})
	if err != nil {
		return err
	}
	minutes, err := timerange.ParseDuration(duration)
	if err != nil {
		return err
	}

	options, err := c.app.Workflow().Slots(minutes)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tSTATUS")
	for _, o := range options {
		status := "free"
		if !o.Available {
			status = "taken"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Start, c.clock(o.End), status)
	}
	return tw.Flush()
}

func (c *cli) book(ctx context.Context, args []string) error {
	if err := c.requireLogin(); err != nil {
		return err
	}

	var start, description string
	duration := c.app.Features().Booking.DefaultDuration
	err := c.spaceDay(ctx, "book", args, func(fs *flag.FlagSet) {
		fs.StringVar(&start, "start", "", "start time (HH:MM)")
		fs.StringVar(&duration, "duration", duration, "duration (HH:MM)")
		fs.StringVar(&description, "description", "", "what the booking is for")
	})
	if err != nil {
		return err
	}
	if start == "" {
		return fmt.Errorf("-start is required")
	}
	wc, err := timerange.ParseWallClock(start)
	if err != nil {
		return err
	}
	minutes, err := timerange.ParseDuration(duration)
	if err != nil {
		return err
	}

	wf := c.app.Workflow()
	created, err := wf.Submit(ctx, workflow.SlotRequest{Start: wc, Duration: minutes, Description: description})
	if err != nil {
		return fail(apierr.OpCreateBooking, err)
	}
	fmt.Fprintf(c.out, "Booked #%d: %s %s-%s\n",
		created.ID, created.StartTime.In(c.loc).Format(dateLayout), c.clock(created.StartTime), c.clock(created.End()))
	return nil
}

func (c *cli) mine(ctx context.Context, args []string) error {
	if err := c.requireLogin(); err != nil {
		return err
	}
	wf := c.app.Workflow()
	if err := wf.LoadMyBookings(ctx); err != nil {
		return fail(apierr.OpLoadBookings, err)
	}

	list := wf.MyBookings()
	if len(list) == 0 {
		fmt.Fprintln(c.out, "No bookings")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSPACE\tDATE\tSTART\tEND\tDESCRIPTION")
	for _, b := range list {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			b.ID, b.Space, b.StartTime.In(c.loc).Format(dateLayout), c.clock(b.StartTime), c.clock(b.End()), b.Description)
	}
	return tw.Flush()
}

func (c *cli) cancel(ctx context.Context, args []string) error {
	if err := c.requireLogin(); err != nil {
		return err
	}
	fs := c.flags("cancel")
	id := fs.Int("id", 0, "booking id")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}

	wf := c.app.Workflow()
	if err := wf.LoadMyBookings(ctx); err != nil {
		return fail(apierr.OpLoadBookings, err)
	}
	if err := wf.RequestDelete(*id); err != nil {
		return err
	}
	if !*yes && !c.confirm(fmt.Sprintf("Delete booking #%d?", *id)) {
		wf.CancelDelete()
		fmt.Fprintln(c.out, "Cancelled")
		return nil
	}
	if err := wf.ConfirmDelete(ctx); err != nil {
		return fail(apierr.OpDeleteBooking, err)
	}
	fmt.Fprintf(c.out, "Deleted booking #%d\n", *id)
	return nil
}

func (c *cli) adminBookings(ctx context.Context, args []string) error {
	fs := c.flags("admin-bookings")
	spaceID := fs.Int("space", 0, "space id")
	date := fs.String("date", "", "date (YYYY-MM-DD), today by default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *spaceID == 0 {
		return fmt.Errorf("-space is required")
	}
	day, err := c.parseDate(*date)
	if err != nil {
		return err
	}

	list, err := c.app.Admin().Load(ctx, *spaceID, day)
	if err != nil {
		return c.adminFail(apierr.OpLoadBookings, err)
	}
	return c.printAdmin(list)
}

func (c *cli) adminCancel(ctx context.Context, args []string) error {
	fs := c.flags("admin-cancel")
	spaceID := fs.Int("space", 0, "space id")
	date := fs.String("date", "", "date (YYYY-MM-DD), today by default")
	id := fs.Int("id", 0, "booking id")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *spaceID == 0 || *id == 0 {
		return fmt.Errorf("-space and -id are required")
	}
	day, err := c.parseDate(*date)
	if err != nil {
		return err
	}

	admin := c.app.Admin()
	if _, err := admin.Load(ctx, *spaceID, day); err != nil {
		return c.adminFail(apierr.OpLoadBookings, err)
	}
	if !*yes && !c.confirm(fmt.Sprintf("Delete booking #%d?", *id)) {
		fmt.Fprintln(c.out, "Cancelled")
		return nil
	}
	list, err := admin.Delete(ctx, *id)
	if err != nil {
		return c.adminFail(apierr.OpDeleteBooking, err)
	}
	fmt.Fprintf(c.out, "Deleted booking #%d\n", *id)
	return c.printAdmin(list)
}

func (c *cli) adminFail(op apierr.Operation, err error) error {
	if errors.Is(err, workflow.ErrNotSuperuser) {
		return err
	}
	return fail(op, err)
}

func (c *cli) printAdmin(list []models.Booking) error {
	if len(list) == 0 {
		fmt.Fprintln(c.out, "No bookings")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tSTART\tEND\tDESCRIPTION")
	for _, b := range list {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", b.ID, b.User, c.clock(b.StartTime), c.clock(b.End()), b.Description)
	}
	return tw.Flush()
}

func (c *cli) exportCalendar(ctx context.Context, args []string) error {
	if err := c.requireLogin(); err != nil {
		return err
	}
	res, err := c.app.ExportMyBookings(ctx)
	if err != nil {
		if errors.Is(err, app.ErrCalendarDisabled) {
			return err
		}
		return fail(apierr.OpGeneric, err)
	}
	fmt.Fprintf(c.out, "Exported %d booking(s), %d already in the calendar\n", res.Exported, res.Skipped)
	return nil
}

func (c *cli) clock(t time.Time) string {
	return timerange.FormatWallClock(t.In(c.loc))
}

func hours(s models.Space) string {
	if !s.HasWorkingHours() {
		return "-"
	}
	start, end := timerange.DayWindow(s, timerange.DefaultDayStart, timerange.DefaultDayEnd)
	return start.String() + "-" + end.String()
}
