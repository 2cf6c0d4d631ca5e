// Package session holds who the client is signed in as. The token is kept in
// a TokenStore across runs; role flags are always asked of the service.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/EpicMandM/space-booking/client/internal/apierr"
	"github.com/EpicMandM/space-booking/client/internal/logger"
	"github.com/EpicMandM/space-booking/client/internal/models"
	"github.com/EpicMandM/space-booking/client/internal/service"
	"github.com/EpicMandM/space-booking/client/internal/store"
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Identity is what is known about the signed-in user. Username and the role
// flags stay empty until a refresh succeeds.
type Identity struct {
	Token       string
	Username    string
	IsSuperuser bool
	IsAdmin     bool
}

type Session struct {
	auth   service.AuthAPI
	store  store.TokenStore
	logger *logger.Logger

	mu       sync.RWMutex
	state    State
	identity Identity
}

func New(auth service.AuthAPI, tokens store.TokenStore, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Discard()
	}
	return &Session{auth: auth, store: tokens, logger: log}
}

// Start restores a persisted token. The session is then Authenticated until
// Refresh proves otherwise.
func (s *Session) Start(ctx context.Context) error {
	token, err := s.store.LoadToken(store.TokenKey)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if token == "" {
		s.logger.Debug("No persisted session", logger.Action("session"), logger.State(Anonymous.String()))
		return nil
	}

	s.mu.Lock()
	s.state = Authenticated
	s.identity = Identity{Token: token}
	s.mu.Unlock()

	s.logger.Info("Restored session", logger.Action("session"), logger.State(Authenticated.String()))
	return nil
}

// Refresh asks the service who the token belongs to. A rejected token ends
// the session; any other failure leaves it as it was.
func (s *Session) Refresh(ctx context.Context) error {
	if s.State() != Authenticated {
		return nil
	}

	user, err := s.auth.Me(ctx)
	if err != nil {
		if apierr.IsAuthentication(err) {
			s.logger.Warn("Session token rejected", logger.Action("session"), logger.Error(err))
			s.clear()
		} else {
			s.logger.Warn("Identity refresh failed", logger.Action("session"), logger.Error(err))
		}
		return err
	}

	s.mu.Lock()
	s.identity.Username = user.Username
	s.identity.IsSuperuser = user.IsSuperuser
	s.identity.IsAdmin = user.IsAdmin
	s.mu.Unlock()

	s.logger.Info("Identity refreshed", logger.Action("session"), logger.User(user.Username))
	return nil
}

// Login replaces the current session on success. On failure the previous
// session, if any, is kept.
func (s *Session) Login(ctx context.Context, creds models.Credentials) error {
	restore := s.begin()

	token, err := s.auth.Login(ctx, creds)
	if err != nil {
		s.logger.Warn("Login failed", logger.Action("login"), logger.User(creds.Username), logger.Error(err))
		restore()
		return err
	}

	if err := s.store.SaveToken(store.TokenKey, token); err != nil {
		restore()
		return fmt.Errorf("failed to persist token: %w", err)
	}

	s.mu.Lock()
	s.state = Authenticated
	s.identity = Identity{Token: token, Username: creds.Username}
	s.mu.Unlock()

	s.logger.Info("Logged in", logger.Action("login"), logger.User(creds.Username))

	// Role flags come from the service only.
	if err := s.Refresh(ctx); err != nil && apierr.IsAuthentication(err) {
		return err
	}
	return nil
}

// Register creates the account and then logs in with the same credentials.
func (s *Session) Register(ctx context.Context, creds models.Credentials) error {
	restore := s.begin()

	if err := s.auth.Register(ctx, creds); err != nil {
		s.logger.Warn("Registration failed", logger.Action("register"), logger.User(creds.Username), logger.Error(err))
		restore()
		return err
	}
	s.logger.Info("Registered", logger.Action("register"), logger.User(creds.Username))
	restore()
	return s.Login(ctx, creds)
}

// begin enters Authenticating and returns a func that puts the previous
// state back. The persisted token is not touched.
func (s *Session) begin() func() {
	s.mu.Lock()
	prevState, prevIdentity := s.state, s.identity
	s.state = Authenticating
	s.identity = Identity{}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.state, s.identity = prevState, prevIdentity
		s.mu.Unlock()
	}
}

// Logout is idempotent.
func (s *Session) Logout() error {
	if err := s.clearStored(); err != nil {
		return err
	}
	s.logger.Info("Logged out", logger.Action("logout"))
	return nil
}

// Token returns the current credential or "". It matches service.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Token
}

func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsSuperuser reports the flag from the last successful refresh.
func (s *Session) IsSuperuser() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == Authenticated && s.identity.IsSuperuser
}

func (s *Session) Close() error {
	return s.store.Close()
}

func (s *Session) clear() {
	if err := s.clearStored(); err != nil {
		s.logger.Error("Failed to delete persisted token", logger.Error(err))
	}
}

func (s *Session) clearStored() error {
	s.mu.Lock()
	s.state = Anonymous
	s.identity = Identity{}
	s.mu.Unlock()

	if err := s.store.DeleteToken(store.TokenKey); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
