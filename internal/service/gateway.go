package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/EpicMandM/space-booking/client/internal/apierr"
	"github.com/EpicMandM/space-booking/client/internal/logger"
	"github.com/EpicMandM/space-booking/client/internal/models"
	"github.com/EpicMandM/space-booking/client/internal/timerange"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultAuthTimeout = 10 * time.Second
	maxResponseBytes   = 1 << 20
	dateLayout         = "2006-01-02"
)

// ErrNoToken is returned when login succeeds without a token in the body.
var ErrNoToken = errors.New("no token received")

// TokenSource returns the current credential, or "" when anonymous.
type TokenSource func() string

// Gateway is the client of the booking service REST API.
type Gateway struct {
	baseURL     string
	mediaURL    string
	tokens      TokenSource
	client      *http.Client
	authTimeout time.Duration
	limiter     *rate.Limiter
	logger      *logger.Logger
}

var (
	_ AuthAPI    = (*Gateway)(nil)
	_ BookingAPI = (*Gateway)(nil)
)

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) { g.client = c }
}

// WithAuthTimeout bounds register, login and current-user calls.
func WithAuthTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.authTimeout = d }
}

// WithRateLimit paces outbound requests; every call waits for a token.
func WithRateLimit(rps float64, burst int) GatewayOption {
	return func(g *Gateway) { g.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func WithLogger(l *logger.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway creates a client for the API rooted at baseURL (".../api").
// Relative image references are resolved against mediaURL.
func NewGateway(baseURL, mediaURL string, tokens TokenSource, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		baseURL:     strings.TrimRight(baseURL, "/"),
		mediaURL:    strings.TrimRight(mediaURL, "/"),
		tokens:      tokens,
		client:      http.DefaultClient,
		authTimeout: defaultAuthTimeout,
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register creates an account. It does not log in.
func (g *Gateway) Register(ctx context.Context, creds models.Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, g.authTimeout)
	defer cancel()
	return g.do(ctx, http.MethodPost, "/auth/register/", creds, nil)
}

// Login exchanges credentials for a token.
func (g *Gateway) Login(ctx context.Context, creds models.Credentials) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.authTimeout)
	defer cancel()

	var resp models.TokenResponse
	if err := g.do(ctx, http.MethodPost, "/auth/login/", creds, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	return resp.Token, nil
}

// Me returns the identity behind the current token.
func (g *Gateway) Me(ctx context.Context) (*models.CurrentUser, error) {
	ctx, cancel := context.WithTimeout(ctx, g.authTimeout)
	defer cancel()

	var user models.CurrentUser
	if err := g.do(ctx, http.MethodGet, "/auth/me/", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *Gateway) ListSpaces(ctx context.Context) ([]models.Space, error) {
	var spaces []models.Space
	if err := g.do(ctx, http.MethodGet, "/spaces/", nil, &spaces); err != nil {
		return nil, err
	}
	return spaces, nil
}

func (g *Gateway) GetSpace(ctx context.Context, id int) (*models.Space, error) {
	var space models.Space
	if err := g.do(ctx, http.MethodGet, fmt.Sprintf("/spaces/%d/", id), nil, &space); err != nil {
		return nil, err
	}
	return &space, nil
}

// SpaceBookings lists the bookings of a space on the calendar day of date,
// earliest first.
func (g *Gateway) SpaceBookings(ctx context.Context, spaceID int, date time.Time) ([]models.Booking, error) {
	path := fmt.Sprintf("/spaces/%d/bookings/?date=%s", spaceID, url.QueryEscape(date.Format(dateLayout)))
	var bookings []models.Booking
	if err := g.do(ctx, http.MethodGet, path, nil, &bookings); err != nil {
		return nil, err
	}
	timerange.SortByStart(bookings)
	return bookings, nil
}

// MyBookings lists the caller's bookings, earliest first.
func (g *Gateway) MyBookings(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := g.do(ctx, http.MethodGet, "/bookings/my/", nil, &bookings); err != nil {
		return nil, err
	}
	timerange.SortByStart(bookings)
	return bookings, nil
}

func (g *Gateway) CreateBooking(ctx context.Context, draft models.BookingDraft) (*models.Booking, error) {
	var booking models.Booking
	if err := g.do(ctx, http.MethodPost, "/bookings/", draft, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (g *Gateway) DeleteBooking(ctx context.Context, id int) error {
	return g.do(ctx, http.MethodDelete, fmt.Sprintf("/bookings/%d/", id), nil, nil)
}

// ImageURL resolves an image reference to an absolute URL.
func (g *Gateway) ImageURL(ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	rel := strings.TrimPrefix(ref, "/")
	if strings.HasSuffix(g.mediaURL, "/media") {
		rel = strings.TrimPrefix(rel, "media/")
	}
	return g.mediaURL + "/" + rel
}

func (g *Gateway) do(ctx context.Context, method, path string, body, out interface{}) error {
	requestID := uuid.NewString()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return apierr.FromTransport(err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.tokens != nil {
		if token := g.tokens(); token != "" {
			req.Header.Set("Authorization", "Token "+token)
		}
	}

	g.logger.Debug("API request", logger.Method(method), logger.Path(path), logger.RequestID(requestID))

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("API request failed", logger.Method(method), logger.Path(path), logger.RequestID(requestID), logger.Error(err))
		return apierr.FromTransport(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apierr.FromTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := apierr.FromStatus(resp.StatusCode, data)
		g.logger.Warn("API returned error",
			logger.Method(method),
			logger.Path(path),
			logger.RequestID(requestID),
			logger.HTTPStatus(resp.StatusCode),
			logger.Reason(apiErr.Kind.String()))
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
