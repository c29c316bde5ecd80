// Package tui provides the interactive chat interface using Bubble Tea.
// It shows the transcript of the selected conversation while replies stream
// in, a conversation picker, and a login modal raised when a send needs a
// signed-in user.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/buker/chatlib/internal/api"
	"github.com/buker/chatlib/internal/chat"
	"github.com/buker/chatlib/internal/tui/shared"
	"github.com/buker/chatlib/internal/tui/views"
)

// State represents the screen currently shown.
type State int

const (
	StateChat          State = iota // Transcript and input
	StateConversations              // Conversation picker
	StateLogin                      // Login modal
)

// ChatStore is the chat state the model drives.
type ChatStore interface {
	Send(text string)
	Stop()
	Messages() []chat.Message
	Conversations() []api.ConversationSummary
	CurrentConversationID() string
	IsTyping() bool
	IsThinking() bool
	Pending() int
	FetchConversations(ctx context.Context) error
	CreateConversation(ctx context.Context, title string) error
	SelectConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error
	Subscribe(fn func(chat.Event)) func()
}

// Session is the sign-in state the model drives.
type Session interface {
	IsAuthenticated() bool
	User() (api.User, bool)
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	HideLoginPrompt()
	OnLoginPrompt(fn func())
}

const (
	headerHeight = 2
	inputHeight  = 3
	footerHeight = 2
)

// Model is the main Bubble Tea model.
type Model struct {
	ctx     context.Context
	store   ChatStore
	session Session
	keys    KeyMap

	state    State
	previous State
	width    int
	height   int
	status   string
	err      string

	input         textarea.Model
	spinner       spinner.Model
	spinning      bool
	transcript    *views.TranscriptView
	conversations *views.ConversationsView
	login         *views.LoginModal
}

// NewModel creates the chat model. markdownStyle is passed to the transcript
// renderer.
func NewModel(ctx context.Context, store ChatStore, session Session, markdownStyle string) *Model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.ShowLineNumbers = false
	ta.Prompt = "│ "
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = shared.ThinkingStyle

	return &Model{
		ctx:           ctx,
		store:         store,
		session:       session,
		keys:          DefaultKeyMap(),
		state:         StateChat,
		input:         ta,
		spinner:       sp,
		transcript:    views.NewTranscriptView(markdownStyle),
		conversations: views.NewConversationsView(),
		login:         views.NewLoginModal(),
	}
}

// Init loads the conversation list.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.fetchConversations())
}

// State returns the screen currently shown.
func (m *Model) State() State {
	return m.state
}

// Update handles messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		switch m.state {
		case StateConversations:
			return m.updateConversations(msg)
		case StateLogin:
			return m.updateLogin(msg)
		default:
			return m.updateChat(msg)
		}

	case spinner.TickMsg:
		if !m.spinning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case MsgStoreEvent:
		if msg.Event.Kind == chat.EventError && msg.Event.Err != nil {
			m.err = msg.Event.Err.Error()
		}
		return m, m.refresh()

	case MsgLoginRequested:
		m.openLogin()
		return m, nil

	case MsgLoginDone:
		if msg.Err != nil {
			m.login.SetError(msg.Err.Error())
			return m, nil
		}
		m.state = StateChat
		m.err = ""
		if u, ok := m.session.User(); ok {
			m.status = "signed in as " + u.Username
		}
		return m, m.fetchConversations()

	case MsgLogoutDone:
		if msg.Err != nil {
			m.err = msg.Err.Error()
		}
		m.status = "signed out"
		return m, m.refresh()

	case MsgConversationsLoaded:
		if msg.Err != nil {
			m.err = msg.Err.Error()
		}
		return m, m.refresh()

	case MsgConversationOpened:
		if msg.Err != nil && !errors.Is(msg.Err, chat.ErrAuthRequired) {
			m.err = msg.Err.Error()
		}
		return m, m.refresh()

	case MsgConversationDeleted:
		if msg.Err != nil {
			m.err = msg.Err.Error()
		} else {
			m.status = "deleted " + msg.ID
		}
		return m, m.refresh()

	case MsgQuit:
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Send):
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.Reset()
		m.err = ""
		m.store.Send(text)
		return m, m.refresh()

	case key.Matches(msg, m.keys.Newline):
		m.input.InsertString("\n")
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		m.store.Stop()
		return m, nil

	case key.Matches(msg, m.keys.Conversations):
		m.state = StateConversations
		return m, m.fetchConversations()

	case key.Matches(msg, m.keys.NewChat):
		return m, m.createConversation()

	case key.Matches(msg, m.keys.Login):
		if !m.session.IsAuthenticated() {
			m.openLogin()
		}
		return m, nil

	case key.Matches(msg, m.keys.Logout):
		if m.session.IsAuthenticated() {
			return m, m.logout()
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateConversations(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.state = StateChat
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		sel := m.conversations.Selected()
		if sel == nil {
			return m, nil
		}
		m.state = StateChat
		return m, m.selectConversation(sel.ID)
	case key.Matches(msg, m.keys.Delete):
		if sel := m.conversations.Selected(); sel != nil {
			return m, m.deleteConversation(sel.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchConversations()
	}
	var cmd tea.Cmd
	m.conversations, cmd = m.conversations.Update(msg)
	return m, cmd
}

func (m *Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.session.HideLoginPrompt()
		m.state = m.previous
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		if !m.login.Ready() {
			return m, nil
		}
		m.login.SetBusy(true)
		return m, m.signIn(m.login.Credentials())
	}
	var cmd tea.Cmd
	m.login, cmd = m.login.Update(msg)
	return m, cmd
}

func (m *Model) openLogin() {
	if m.state != StateLogin {
		m.previous = m.state
	}
	m.state = StateLogin
	m.login.Reset()
}

// refresh copies the store state into the views and keeps the spinner
// running while a reply is pending.
func (m *Model) refresh() tea.Cmd {
	m.transcript.SetMessages(m.store.Messages(), m.store.IsThinking())
	m.conversations.SetConversations(m.store.Conversations(), m.store.CurrentConversationID())

	busy := m.store.IsTyping() || m.store.IsThinking()
	if busy && !m.spinning {
		m.spinning = true
		return m.spinner.Tick
	}
	if !busy {
		m.spinning = false
	}
	return nil
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	bodyHeight := max(height-headerHeight-inputHeight-footerHeight-1, 1)
	m.transcript.SetSize(width, bodyHeight)
	m.conversations.SetSize(width, height-headerHeight-footerHeight)
	m.login.SetSize(width, height-headerHeight-footerHeight)
	m.input.SetWidth(width)
}

// Background commands

func (m *Model) fetchConversations() tea.Cmd {
	return func() tea.Msg {
		return MsgConversationsLoaded{Err: m.store.FetchConversations(m.ctx)}
	}
}

func (m *Model) createConversation() tea.Cmd {
	return func() tea.Msg {
		return MsgConversationOpened{Err: m.store.CreateConversation(m.ctx, "")}
	}
}

func (m *Model) selectConversation(id string) tea.Cmd {
	return func() tea.Msg {
		return MsgConversationOpened{Err: m.store.SelectConversation(m.ctx, id)}
	}
}

func (m *Model) deleteConversation(id string) tea.Cmd {
	return func() tea.Msg {
		return MsgConversationDeleted{ID: id, Err: m.store.DeleteConversation(m.ctx, id)}
	}
}

func (m *Model) signIn(c views.Credentials) tea.Cmd {
	return func() tea.Msg {
		return MsgLoginDone{Err: m.session.Login(m.ctx, c.Username, c.Password)}
	}
}

func (m *Model) logout() tea.Cmd {
	return func() tea.Msg {
		return MsgLogoutDone{Err: m.session.Logout(m.ctx)}
	}
}

// View renders the model
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.state {
	case StateConversations:
		b.WriteString(m.conversations.View())
		b.WriteString("\n")
		b.WriteString(shared.HelpDescStyle.Render(shared.ConversationsHelp()))
		return b.String()
	case StateLogin:
		b.WriteString(m.login.View())
		return b.String()
	}

	b.WriteString(m.transcript.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(shared.InputBoxStyle.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(shared.HelpDescStyle.Render(shared.ChatHelp(m.store.IsTyping())))
	return b.String()
}

func (m *Model) renderHeader() string {
	who := shared.GuestDisplayName
	if u, ok := m.session.User(); ok {
		who = u.Username
	}
	title := "chatlib"
	if id := m.store.CurrentConversationID(); id != "" {
		for _, c := range m.store.Conversations() {
			if c.ID == id && c.Title != "" {
				title += " · " + c.Title
				break
			}
		}
	}
	header := shared.TitleStyle.Render(title) + "  " + shared.HelpDescStyle.Render(who)
	return header + "\n" + shared.RenderDivider(max(m.width, 40))
}

func (m *Model) renderStatus() string {
	switch {
	case m.store.IsThinking():
		return m.spinner.View() + shared.ThinkingStyle.Render(" thinking")
	case m.store.IsTyping():
		return m.spinner.View() + shared.ThinkingStyle.Render(" replying")
	case m.err != "":
		return shared.ErrorStyle.Render("Error: " + m.err)
	}
	status := m.status
	if n := m.store.Pending(); n > 0 {
		status = fmt.Sprintf("%d queued", n)
	}
	return shared.HelpDescStyle.Render(status)
}
