package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/buker/chatlib/internal/chat"
)

// noticeBuffer bounds store and session notifications waiting for the event
// loop. Dropped notices are harmless since the model re-reads the store.
const noticeBuffer = 256

// Program wraps a Bubble Tea program to provide a higher-level API for external control.
// Store and session notifications are forwarded to the event loop through a
// buffered pump, so a callback fired from inside Update never blocks on Send.
type Program struct {
	program *tea.Program
	model   *Model
	store   ChatStore
	session Session
	notices chan tea.Msg
}

// NewProgram creates a chat TUI bound to store and session.
func NewProgram(ctx context.Context, store ChatStore, session Session, markdownStyle string, opts ...tea.ProgramOption) *Program {
	model := NewModel(ctx, store, session, markdownStyle)
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	return &Program{
		program: tea.NewProgram(model, opts...),
		model:   model,
		store:   store,
		session: session,
		notices: make(chan tea.Msg, noticeBuffer),
	}
}

// Run starts the TUI and blocks until it exits.
func (p *Program) Run(ctx context.Context) error {
	unsubscribe := p.store.Subscribe(func(ev chat.Event) {
		p.notify(MsgStoreEvent{Event: ev})
	})
	defer unsubscribe()
	p.session.OnLoginPrompt(func() {
		p.notify(MsgLoginRequested{})
	})
	defer p.session.OnLoginPrompt(nil)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-p.notices:
				p.program.Send(msg)
			}
		}
	})
	g.Go(func() error {
		defer cancel()
		_, err := p.program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

func (p *Program) notify(msg tea.Msg) {
	select {
	case p.notices <- msg:
	default:
		log.Debug().Str("component", "tui").Msg("notice dropped")
	}
}

// Send dispatches a message to the TUI for processing.
// This is thread-safe and can be called from any goroutine.
func (p *Program) Send(msg tea.Msg) {
	p.program.Send(msg)
}

// Quit quits the TUI
func (p *Program) Quit() {
	p.Send(MsgQuit{})
}

// Model returns the model, for inspection after Run returns.
func (p *Program) Model() *Model {
	return p.model
}
