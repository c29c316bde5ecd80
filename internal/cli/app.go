package cli

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/buker/chatlib/internal/api"
	"github.com/buker/chatlib/internal/auth"
	"github.com/buker/chatlib/internal/chat"
	"github.com/buker/chatlib/internal/config"
	"github.com/buker/chatlib/internal/logging"
	"github.com/buker/chatlib/internal/storage"
)

// app holds the session-scoped objects of one command run.
type app struct {
	cfg     *config.Config
	client  *api.Client
	db      *storage.Store
	session *auth.Session
	store   *chat.Store
	logs    io.Closer
}

// newApp wires the client, local store, session and chat store. With
// interactive set and no log file configured, logging is silenced so it does
// not draw over the TUI.
func newApp(ctx context.Context, cfg *config.Config, interactive bool) (*app, error) {
	a := &app{cfg: cfg}

	var err error
	if interactive && cfg.Log.File == "" {
		logging.Discard()
	} else if a.logs, err = logging.Setup(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, err
	}

	a.client, err = api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.TimeoutDuration()),
		api.WithRetry(cfg.API.Retry.Count, cfg.API.Retry.DelayDuration()),
		api.WithToken(cfg.API.Token),
		api.WithLogger(log.With().Str("component", "api").Logger()),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.db, err = storage.Open(cfg.Storage.Path)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "failed to open local storage")
	}

	a.session = auth.NewSession(a.client, a.db)
	if err := a.session.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("starting signed out")
	}

	opts := cfg.Chat.ChatOptions()
	opts.Guest = a.db
	a.store = chat.NewStore(a.client, a.session, opts)
	a.session.Register(a.store)

	// A 401 on any JSON call ends the session everywhere.
	a.client.OnUnauthorized(func() {
		if !a.session.IsAuthenticated() {
			return
		}
		log.Info().Msg("session expired, signing out")
		if err := a.session.Logout(context.Background()); err != nil {
			log.Warn().Err(err).Msg("logout failed")
		}
	})
	return a, nil
}

// Close releases everything newApp opened.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
