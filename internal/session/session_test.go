package session

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/EpicMandM/space-booking/client/internal/apierr"
	"github.com/EpicMandM/space-booking/client/internal/logger"
	"github.com/EpicMandM/space-booking/client/internal/models"
	"github.com/EpicMandM/space-booking/client/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAuth struct {
	registerFn func(ctx context.Context, creds models.Credentials) error
	loginFn    func(ctx context.Context, creds models.Credentials) (string, error)
	meFn       func(ctx context.Context) (*models.CurrentUser, error)

	registerCalls int
	meCalls       int
}

func (m *mockAuth) Register(ctx context.Context, creds models.Credentials) error {
	m.registerCalls++
	if m.registerFn != nil {
		return m.registerFn(ctx, creds)
	}
	return nil
}

func (m *mockAuth) Login(ctx context.Context, creds models.Credentials) (string, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, creds)
	}
	return "token-" + creds.Username, nil
}

func (m *mockAuth) Me(ctx context.Context) (*models.CurrentUser, error) {
	m.meCalls++
	if m.meFn != nil {
		return m.meFn(ctx)
	}
	return &models.CurrentUser{Username: "alice"}, nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func unauthorized() error {
	return apierr.FromStatus(http.StatusUnauthorized, []byte(`{"detail":"Invalid token."}`))
}

// --- tests ---

func TestSession_StartsAnonymousWithoutToken(t *testing.T) {
	sess := New(&mockAuth{}, newTestStore(t), nil)

	require.NoError(t, sess.Start(context.Background()))
	assert.Equal(t, Anonymous, sess.State())
	assert.Empty(t, sess.Token())
}

func TestSession_StartRestoresTokenOptimistically(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveToken(store.TokenKey, "persisted"))
	auth := &mockAuth{}
	sess := New(auth, st, nil)

	require.NoError(t, sess.Start(context.Background()))

	assert.Equal(t, Authenticated, sess.State())
	assert.Equal(t, "persisted", sess.Token())
	assert.Empty(t, sess.Identity().Username)
	assert.Zero(t, auth.meCalls)
}

func TestSession_RefreshEnrichesRoleFlags(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveToken(store.TokenKey, "persisted"))
	auth := &mockAuth{meFn: func(ctx context.Context) (*models.CurrentUser, error) {
		return &models.CurrentUser{Username: "root", IsSuperuser: true, IsAdmin: true}, nil
	}}
	sess := New(auth, st, nil)
	require.NoError(t, sess.Start(context.Background()))

	require.NoError(t, sess.Refresh(context.Background()))

	assert.Equal(t, Identity{Token: "persisted", Username: "root", IsSuperuser: true, IsAdmin: true}, sess.Identity())
	assert.True(t, sess.IsSuperuser())
}

func TestSession_RefreshRejectedTokenForcesAnonymous(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveToken(store.TokenKey, "expired"))
	sess := New(&mockAuth{meFn: func(ctx context.Context) (*models.CurrentUser, error) {
		return nil, unauthorized()
	}}, st, nil)
	require.NoError(t, sess.Start(context.Background()))

	err := sess.Refresh(context.Background())

	require.Error(t, err)
	assert.Equal(t, Anonymous, sess.State())
	assert.Empty(t, sess.Token())
	token, err := st.LoadToken(store.TokenKey)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestSession_RefreshNetworkErrorKeepsState(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveToken(store.TokenKey, "persisted"))
	sess := New(&mockAuth{meFn: func(ctx context.Context) (*models.CurrentUser, error) {
		return nil, apierr.FromTransport(errors.New("connection refused"))
	}}, st, nil)
	require.NoError(t, sess.Start(context.Background()))

	err := sess.Refresh(context.Background())

	require.Error(t, err)
	assert.Equal(t, Authenticated, sess.State())
	assert.Equal(t, "persisted", sess.Token())
}

func TestSession_RefreshWhenAnonymousIsNoop(t *testing.T) {
	auth := &mockAuth{}
	sess := New(auth, newTestStore(t), nil)

	require.NoError(t, sess.Refresh(context.Background()))
	assert.Zero(t, auth.meCalls)
}

func TestSession_Login(t *testing.T) {
	st := newTestStore(t)
	sess := New(&mockAuth{}, st, nil)

	require.NoError(t, sess.Login(context.Background(), models.Credentials{Username: "alice", Password: "pw"}))

	assert.Equal(t, Authenticated, sess.State())
	assert.Equal(t, "token-alice", sess.Token())
	assert.Equal(t, "alice", sess.Identity().Username)

	token, err := st.LoadToken(store.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "token-alice", token)
}

func TestSession_LoginInvalidCredentials(t *testing.T) {
	sess := New(&mockAuth{loginFn: func(ctx context.Context, creds models.Credentials) (string, error) {
		return "", unauthorized()
	}}, newTestStore(t), nil)

	err := sess.Login(context.Background(), models.Credentials{Username: "alice", Password: "wrong"})

	require.Error(t, err)
	assert.Equal(t, apierr.Authentication, apierr.KindOf(err))
	assert.Equal(t, Anonymous, sess.State())
	assert.Empty(t, sess.Token())
}

func TestSession_LoginSurvivesFailedRefresh(t *testing.T) {
	sess := New(&mockAuth{meFn: func(ctx context.Context) (*models.CurrentUser, error) {
		return nil, apierr.FromStatus(http.StatusInternalServerError, nil)
	}}, newTestStore(t), nil)

	require.NoError(t, sess.Login(context.Background(), models.Credentials{Username: "alice", Password: "pw"}))
	assert.Equal(t, Authenticated, sess.State())
	assert.False(t, sess.IsSuperuser())
}

func TestSession_FailedLoginKeepsExistingSession(t *testing.T) {
	st := newTestStore(t)
	auth := &mockAuth{}
	sess := New(auth, st, nil)
	require.NoError(t, sess.Login(context.Background(), models.Credentials{Username: "alice", Password: "pw"}))

	auth.loginFn = func(ctx context.Context, creds models.Credentials) (string, error) {
		return "", unauthorized()
	}
	err := sess.Login(context.Background(), models.Credentials{Username: "bob", Password: "wrong"})

	require.Error(t, err)
	assert.Equal(t, Authenticated, sess.State())
	assert.Equal(t, "token-alice", sess.Token())
	assert.Equal(t, "alice", sess.Identity().Username)
	token, err := st.LoadToken(store.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "token-alice", token)
}

func TestSession_FailedRegisterKeepsExistingSession(t *testing.T) {
	st := newTestStore(t)
	auth := &mockAuth{}
	sess := New(auth, st, nil)
	require.NoError(t, sess.Login(context.Background(), models.Credentials{Username: "alice", Password: "pw"}))

	auth.registerFn = func(ctx context.Context, creds models.Credentials) error {
		return apierr.FromStatus(http.StatusBadRequest, []byte(`{"username":["A user with that username already exists."]}`))
	}
	err := sess.Register(context.Background(), models.Credentials{Username: "bob", Password: "pw"})

	require.Error(t, err)
	assert.Equal(t, Authenticated, sess.State())
	assert.Equal(t, "token-alice", sess.Token())
	token, err := st.LoadToken(store.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "token-alice", token)
}

func TestSession_LoginDoesNotSendPreviousToken(t *testing.T) {
	var sess *Session
	seen := "unset"
	sess = New(&mockAuth{loginFn: func(ctx context.Context, creds models.Credentials) (string, error) {
		seen = sess.Token()
		return "token-" + creds.Username, nil
	}}, newTestStore(t), nil)
	require.NoError(t, sess.Login(context.Background(), models.Credentials{Username: "alice", Password: "pw"}))

	require.NoError(t, sess.Login(context.Background(), models.Credentials{Username: "bob", Password: "pw"}))

	assert.Empty(t, seen)
	assert.Equal(t, "token-bob", sess.Token())
}

func TestSession_RegisterThenLogin(t *testing.T) {
	auth := &mockAuth{}
	sess := New(auth, newTestStore(t), nil)

	require.NoError(t, sess.Register(context.Background(), models.Credentials{Username: "bob", Password: "pw"}))

	assert.Equal(t, 1, auth.registerCalls)
	assert.Equal(t, Authenticated, sess.State())
	assert.Equal(t, "token-bob", sess.Token())
}

func TestSession_RegisterFailureDoesNotLogin(t *testing.T) {
	loginCalled := false
	sess := New(&mockAuth{
		registerFn: func(ctx context.Context, creds models.Credentials) error {
			return apierr.FromStatus(http.StatusBadRequest, []byte(`{"username":["A user with that username already exists."]}`))
		},
		loginFn: func(ctx context.Context, creds models.Credentials) (string, error) {
			loginCalled = true
			return "x", nil
		},
	}, newTestStore(t), nil)

	err := sess.Register(context.Background(), models.Credentials{Username: "bob", Password: "pw"})

	require.Error(t, err)
	assert.False(t, loginCalled)
	assert.Equal(t, Anonymous, sess.State())
}

func TestSession_LogoutIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	sess := New(&mockAuth{}, st, nil)
	require.NoError(t, sess.Login(context.Background(), models.Credentials{Username: "alice", Password: "pw"}))

	require.NoError(t, sess.Logout())
	require.NoError(t, sess.Logout())

	assert.Equal(t, Anonymous, sess.State())
	assert.Equal(t, Identity{}, sess.Identity())
	token, err := st.LoadToken(store.TokenKey)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestSession_RoleFlagsAreNotPersisted(t *testing.T) {
	st := newTestStore(t)
	sess := New(&mockAuth{meFn: func(ctx context.Context) (*models.CurrentUser, error) {
		return &models.CurrentUser{Username: "root", IsSuperuser: true}, nil
	}}, st, nil)
	require.NoError(t, sess.Login(context.Background(), models.Credentials{Username: "root", Password: "pw"}))
	require.True(t, sess.IsSuperuser())

	restarted := New(&mockAuth{}, st, nil)
	require.NoError(t, restarted.Start(context.Background()))

	assert.Equal(t, Authenticated, restarted.State())
	assert.False(t, restarted.IsSuperuser())
}

func TestSession_LogsTransitions(t *testing.T) {
	var buf bytes.Buffer
	sess := New(&mockAuth{}, newTestStore(t), logger.NewWithWriter(&buf))

	require.NoError(t, sess.Login(context.Background(), models.Credentials{Username: "alice", Password: "pw"}))

	assert.Contains(t, buf.String(), "MESSAGE=Logged in")
	assert.Contains(t, buf.String(), "USER=alice")
	assert.NotContains(t, buf.String(), "pw")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "anonymous", Anonymous.String())
	assert.Equal(t, "authenticating", Authenticating.String())
	assert.Equal(t, "authenticated", Authenticated.String())
}
