package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/buker/chatlib/internal/chat"
	"github.com/buker/chatlib/internal/tui/shared"
)

// TranscriptView renders the messages of the selected conversation in a
// scrollable viewport. Assistant replies are rendered as markdown.
type TranscriptView struct {
	width    int
	height   int
	style    string
	messages []chat.Message
	thinking bool
	viewport viewport.Model
	renderer *glamour.TermRenderer
	ready    bool
}

// NewTranscriptView creates a transcript view. style is a glamour style name
// such as "dark", "light" or "notty".
func NewTranscriptView(style string) *TranscriptView {
	if style == "" {
		style = "dark"
	}
	return &TranscriptView{style: style}
}

// SetSize updates the view dimensions and rebuilds the markdown renderer for
// the new wrap width.
func (v *TranscriptView) SetSize(width, height int) {
	v.width = width
	v.height = height
	if !v.ready {
		v.viewport = viewport.New(width, height)
		v.ready = true
	} else {
		v.viewport.Width = width
		v.viewport.Height = height
	}
	v.renderer, _ = glamour.NewTermRenderer(
		glamour.WithStylePath(v.style),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	v.refresh()
}

// SetMessages replaces the displayed transcript. The view follows the bottom
// if it was already there.
func (v *TranscriptView) SetMessages(msgs []chat.Message, thinking bool) {
	v.messages = msgs
	v.thinking = thinking
	v.refresh()
}

// MessageCount returns the number of displayed messages.
func (v *TranscriptView) MessageCount() int {
	return len(v.messages)
}

func (v *TranscriptView) refresh() {
	if !v.ready {
		return
	}
	atBottom := v.viewport.AtBottom()
	v.viewport.SetContent(v.renderContent())
	if atBottom {
		v.viewport.GotoBottom()
	}
}

// Update handles scrolling
func (v *TranscriptView) Update(msg tea.Msg) (*TranscriptView, tea.Cmd) {
	var cmd tea.Cmd
	if v.ready {
		v.viewport, cmd = v.viewport.Update(msg)
	}
	return v, cmd
}

// View renders the transcript
func (v *TranscriptView) View() string {
	if !v.ready {
		return v.renderContent()
	}
	return v.viewport.View()
}

func (v *TranscriptView) renderContent() string {
	if len(v.messages) == 0 {
		return shared.HelpDescStyle.Render("Start a conversation by typing below.")
	}

	var b strings.Builder
	for i, m := range v.messages {
		if i > 0 {
			b.WriteString("\n")
		}
		switch m.Role {
		case chat.RoleUser:
			b.WriteString(shared.UserLabelStyle.Render(shared.UserLabel))
			b.WriteString("\n")
			b.WriteString(m.Content)
			b.WriteString("\n")
		case chat.RoleAssistant:
			b.WriteString(shared.AssistantLabelStyle.Render(shared.AssistantLabel))
			b.WriteString("\n")
			if m.Content == "" && v.thinking && i == len(v.messages)-1 {
				b.WriteString(shared.ThinkingStyle.Render("thinking" + shared.EllipsisChar))
				b.WriteString("\n")
				continue
			}
			b.WriteString(v.renderMarkdown(m.Content))
		default:
			b.WriteString(shared.SystemLabelStyle.Render(shared.SystemLabel + ": " + m.Content))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (v *TranscriptView) renderMarkdown(md string) string {
	if v.renderer == nil {
		return md + "\n"
	}
	out, err := v.renderer.Render(md)
	if err != nil {
		return md + "\n"
	}
	return strings.TrimLeft(out, "\n")
}
