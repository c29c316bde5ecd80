// Package auth tracks who is signed in. A Session restores the persisted user
// at start-up, signs in and out through the backend, and on logout resets
// every registered session-scoped component.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/buker/chatlib/internal/api"
	"github.com/buker/chatlib/internal/storage"
)

// Backend is the account API.
type Backend interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.LoginResponse, error)
	SetToken(token string)
}

// Persister stores the sign-in state between runs.
type Persister interface {
	SaveSession(ctx context.Context, sess storage.Session) error
	LoadSession(ctx context.Context) (storage.Session, bool, error)
	ClearSession(ctx context.Context) error
}

// Resetter is implemented by components whose state belongs to one user.
type Resetter interface {
	Reset()
}

// ResetFunc adapts a function to Resetter.
type ResetFunc func()

func (f ResetFunc) Reset() { f() }

// Session is the signed-in state of the client. It satisfies
// chat.Authenticator.
type Session struct {
	backend Backend
	persist Persister
	logger  zerolog.Logger

	mu          sync.RWMutex
	user        *api.User
	promptShown bool
	onPrompt    func()
	resetters   []Resetter
	loggingOut  bool
}

// NewSession creates a signed-out session. persist may be nil.
func NewSession(backend Backend, persist Persister) *Session {
	return &Session{
		backend: backend,
		persist: persist,
		logger:  log.With().Str("component", "auth").Logger(),
	}
}

// Restore loads the persisted user, if any. A failed read leaves the session
// signed out.
func (s *Session) Restore(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	sess, ok, err := s.persist.LoadSession(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to restore session")
	}
	if !ok {
		return nil
	}
	s.mu.Lock()
	u := sess.User
	s.user = &u
	s.mu.Unlock()
	s.backend.SetToken(sess.Token)
	s.logger.Debug().Str("user_id", u.ID).Msg("session restored")
	return nil
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// UserID returns the signed-in user's id, or "".
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// User returns a copy of the signed-in user.
func (s *Session) User() (api.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return api.User{}, false
	}
	return *s.user, true
}

// OnLoginPrompt sets a hook run whenever a login prompt is requested. The hook
// must not block.
func (s *Session) OnLoginPrompt(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPrompt = fn
}

// PromptLogin marks the login prompt visible and notifies the hook.
func (s *Session) PromptLogin() {
	s.mu.Lock()
	s.promptShown = true
	fn := s.onPrompt
	s.mu.Unlock()
	s.logger.Debug().Msg("login requested")
	if fn != nil {
		fn()
	}
}

// LoginPromptVisible reports whether a login prompt is pending.
func (s *Session) LoginPromptVisible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.promptShown
}

// HideLoginPrompt dismisses the pending login prompt.
func (s *Session) HideLoginPrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promptShown = false
}

// Register adds a component to reset on logout.
func (s *Session) Register(r Resetter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetters = append(s.resetters, r)
}

// Login signs in with username and password.
func (s *Session) Login(ctx context.Context, username, password string) error {
	res, err := s.backend.Login(ctx, api.LoginRequest{Username: strings.TrimSpace(username), Password: password})
	if err != nil {
		return errors.Wrap(err, "login failed")
	}
	return s.signIn(ctx, res)
}

// SignUp creates an account and signs in with it.
func (s *Session) SignUp(ctx context.Context, req api.RegisterRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	res, err := s.backend.Register(ctx, req)
	if err != nil {
		return errors.Wrap(err, "registration failed")
	}
	return s.signIn(ctx, res)
}

func (s *Session) signIn(ctx context.Context, res *api.LoginResponse) error {
	u := res.User
	s.mu.Lock()
	s.user = &u
	s.promptShown = false
	s.mu.Unlock()
	s.backend.SetToken(res.Token)
	s.logger.Info().Str("user_id", u.ID).Msg("signed in")

	if s.persist != nil {
		if err := s.persist.SaveSession(ctx, storage.Session{Token: res.Token, User: u}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to persist session")
		}
	}
	return nil
}

// SetUser replaces the signed-in user after a profile change and rewrites the
// persisted session. It is a no-op when signed out.
func (s *Session) SetUser(ctx context.Context, u api.User) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil
	}
	s.user = &u
	s.mu.Unlock()

	if s.persist == nil {
		return nil
	}
	sess, ok, err := s.persist.LoadSession(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to update stored session")
	}
	if !ok {
		return nil
	}
	sess.User = u
	return errors.Wrap(s.persist.SaveSession(ctx, sess), "failed to update stored session")
}

// Logout clears the user and token, removes the persisted session, and resets
// every registered component. Calls made while a logout is running are
// ignored, so a reset that triggers another 401 cannot recurse.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.loggingOut {
		s.mu.Unlock()
		return nil
	}
	s.loggingOut = true
	s.user = nil
	resetters := append([]Resetter(nil), s.resetters...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loggingOut = false
		s.mu.Unlock()
	}()

	s.backend.SetToken("")
	var persistErr error
	if s.persist != nil {
		persistErr = s.persist.ClearSession(ctx)
	}
	for _, r := range resetters {
		r.Reset()
	}
	s.logger.Info().Msg("signed out")
	return persistErr
}
