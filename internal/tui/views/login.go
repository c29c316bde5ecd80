package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buker/chatlib/internal/tui/shared"
)

// Credentials is what the login modal submits.
type Credentials struct {
	Username string
	Password string
}

// LoginModal asks for a username and password.
type LoginModal struct {
	width    int
	height   int
	username textinput.Model
	password textinput.Model
	focus    int
	err      string
	busy     bool
	keys     shared.KeyMap
}

// NewLoginModal creates the login modal with the username field focused
func NewLoginModal() *LoginModal {
	u := textinput.New()
	u.Placeholder = "username"
	u.CharLimit = 64
	u.Prompt = "User:     "

	p := textinput.New()
	p.Placeholder = "password"
	p.CharLimit = 128
	p.Prompt = "Password: "
	p.EchoMode = textinput.EchoPassword
	p.EchoCharacter = '•'

	m := &LoginModal{username: u, password: p, keys: shared.DefaultKeyMap()}
	m.Reset()
	return m
}

// Reset clears the fields and error and focuses the username field.
func (v *LoginModal) Reset() {
	v.username.SetValue("")
	v.password.SetValue("")
	v.err = ""
	v.busy = false
	v.focus = 0
	v.username.Focus()
	v.password.Blur()
}

// SetSize updates the modal dimensions
func (v *LoginModal) SetSize(width, height int) {
	v.width = width
	v.height = height
	w := min(max(width*60/100, 30), 50)
	v.username.Width = w - 12
	v.password.Width = w - 12
}

// SetError shows a failed sign-in attempt and re-enables the form.
func (v *LoginModal) SetError(msg string) {
	v.err = msg
	v.busy = false
}

// SetBusy marks a sign-in as in flight.
func (v *LoginModal) SetBusy(busy bool) {
	v.busy = busy
}

// Credentials returns the entered values.
func (v *LoginModal) Credentials() Credentials {
	return Credentials{Username: strings.TrimSpace(v.username.Value()), Password: v.password.Value()}
}

// Ready reports whether both fields are filled in.
func (v *LoginModal) Ready() bool {
	c := v.Credentials()
	return c.Username != "" && c.Password != ""
}

// Update handles field focus and text input
func (v *LoginModal) Update(msg tea.Msg) (*LoginModal, tea.Cmd) {
	if v.busy {
		return v, nil
	}
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, v.keys.NextField) {
		v.focus = (v.focus + 1) % 2
		if v.focus == 0 {
			v.password.Blur()
			return v, v.username.Focus()
		}
		v.username.Blur()
		return v, v.password.Focus()
	}

	var cmd tea.Cmd
	if v.focus == 0 {
		v.username, cmd = v.username.Update(msg)
	} else {
		v.password, cmd = v.password.Update(msg)
	}
	return v, cmd
}

// View renders the modal
func (v *LoginModal) View() string {
	var b strings.Builder
	b.WriteString(shared.ModalTitleStyle.Render("Sign in"))
	b.WriteString("\n")
	b.WriteString(v.username.View())
	b.WriteString("\n")
	b.WriteString(v.password.View())
	b.WriteString("\n")
	switch {
	case v.busy:
		b.WriteString("\n" + shared.ThinkingStyle.Render("signing in"+shared.EllipsisChar))
	case v.err != "":
		b.WriteString("\n" + shared.ErrorStyle.Render(v.err))
	}
	b.WriteString("\n\n")
	b.WriteString(shared.HelpDescStyle.Render(shared.LoginHelp()))

	box := shared.ModalBoxStyle.Render(b.String())
	if v.width == 0 || v.height == 0 {
		return box
	}
	return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, box)
}
