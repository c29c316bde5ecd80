package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buker/chatlib/internal/api"
	"github.com/buker/chatlib/internal/storage"
)

type fakeBackend struct {
	loginErr error
	tokens   []string
	logins   []api.LoginRequest
}

func (b *fakeBackend) Login(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	b.logins = append(b.logins, req)
	if b.loginErr != nil {
		return nil, b.loginErr
	}
	return &api.LoginResponse{Token: "tok-" + req.Username, User: api.User{ID: "u-" + req.Username, Username: req.Username}}, nil
}

func (b *fakeBackend) Register(_ context.Context, req api.RegisterRequest) (*api.LoginResponse, error) {
	return &api.LoginResponse{Token: "new", User: api.User{ID: "u-new", Username: req.Username, Email: req.Email}}, nil
}

func (b *fakeBackend) SetToken(token string) {
	b.tokens = append(b.tokens, token)
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSession_LoginPersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	b := &fakeBackend{}

	s := NewSession(b, st)
	require.False(t, s.IsAuthenticated())
	require.Empty(t, s.UserID())

	s.PromptLogin()
	require.True(t, s.LoginPromptVisible())

	require.NoError(t, s.Login(ctx, "  alice ", "pw"))
	require.True(t, s.IsAuthenticated())
	require.Equal(t, "u-alice", s.UserID())
	require.False(t, s.LoginPromptVisible())
	require.Equal(t, "alice", b.logins[0].Username)
	require.Equal(t, []string{"tok-alice"}, b.tokens)

	restoredBackend := &fakeBackend{}
	restored := NewSession(restoredBackend, st)
	require.NoError(t, restored.Restore(ctx))
	u, ok := restored.User()
	require.True(t, ok)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, []string{"tok-alice"}, restoredBackend.tokens)
}

func TestSession_LoginFailureStaysSignedOut(t *testing.T) {
	apiErr := &api.APIError{Code: 401, Message: "bad credentials"}
	s := NewSession(&fakeBackend{loginErr: apiErr}, nil)

	err := s.Login(context.Background(), "bob", "wrong")
	require.Error(t, err)
	var target *api.APIError
	require.True(t, errors.As(err, &target))
	require.False(t, s.IsAuthenticated())
}

func TestSession_SignUp(t *testing.T) {
	s := NewSession(&fakeBackend{}, nil)
	require.NoError(t, s.SignUp(context.Background(), api.RegisterRequest{Username: "carol", Email: "c@example.com"}))
	u, ok := s.User()
	require.True(t, ok)
	require.Equal(t, "c@example.com", u.Email)
}

func TestSession_SetUserRewritesStoredSession(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	s := NewSession(&fakeBackend{}, st)

	require.NoError(t, s.SetUser(ctx, api.User{ID: "u-x"}))
	require.False(t, s.IsAuthenticated())

	require.NoError(t, s.Login(ctx, "alice", "pw"))
	require.NoError(t, s.SetUser(ctx, api.User{ID: "u-alice", Username: "alice2", Email: "a@example.com"}))
	u, _ := s.User()
	require.Equal(t, "alice2", u.Username)

	stored, ok, err := st.LoadSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-alice", stored.Token)
	require.Equal(t, "a@example.com", stored.User.Email)
}

func TestSession_LogoutResetsRegisteredComponents(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	b := &fakeBackend{}
	s := NewSession(b, st)
	require.NoError(t, s.Login(ctx, "alice", "pw"))

	var resets int
	s.Register(ResetFunc(func() { resets++ }))
	s.Register(ResetFunc(func() {
		// A reset that re-enters Logout must not recurse.
		require.NoError(t, s.Logout(ctx))
		resets++
	}))

	require.NoError(t, s.Logout(ctx))
	require.Equal(t, 2, resets)
	require.False(t, s.IsAuthenticated())
	require.Equal(t, "", b.tokens[len(b.tokens)-1])

	_, ok, err := st.LoadSession(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSession_PromptHook(t *testing.T) {
	s := NewSession(&fakeBackend{}, nil)
	var calls int
	s.OnLoginPrompt(func() { calls++ })

	s.PromptLogin()
	s.PromptLogin()
	require.Equal(t, 2, calls)

	s.HideLoginPrompt()
	require.False(t, s.LoginPromptVisible())
}
