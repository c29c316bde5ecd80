package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buker/chatlib/internal/api"
	"github.com/buker/chatlib/internal/tui/shared"
)

// ConversationsView is a selectable list of conversations.
type ConversationsView struct {
	width     int
	height    int
	items     []api.ConversationSummary
	currentID string
	cursor    int
	keys      shared.KeyMap
}

// NewConversationsView creates an empty conversation list
func NewConversationsView() *ConversationsView {
	return &ConversationsView{keys: shared.DefaultKeyMap()}
}

// SetConversations replaces the list, keeping the cursor on the same
// conversation when it is still present.
func (v *ConversationsView) SetConversations(items []api.ConversationSummary, currentID string) {
	var selectedID string
	if sel := v.Selected(); sel != nil {
		selectedID = sel.ID
	}
	v.items = items
	v.currentID = currentID
	v.cursor = 0
	for i, c := range items {
		if c.ID == selectedID || (selectedID == "" && c.ID == currentID) {
			v.cursor = i
			break
		}
	}
}

// SetSize updates the view dimensions
func (v *ConversationsView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// Selected returns the conversation under the cursor.
func (v *ConversationsView) Selected() *api.ConversationSummary {
	if v.cursor >= 0 && v.cursor < len(v.items) {
		return &v.items[v.cursor]
	}
	return nil
}

// Len returns the number of conversations
func (v *ConversationsView) Len() int {
	return len(v.items)
}

// Update handles key messages for navigation
func (v *ConversationsView) Update(msg tea.Msg) (*ConversationsView, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, v.keys.Up):
			if v.cursor > 0 {
				v.cursor--
			}
		case key.Matches(msg, v.keys.Down):
			if v.cursor < len(v.items)-1 {
				v.cursor++
			}
		case key.Matches(msg, v.keys.Home):
			v.cursor = 0
		case key.Matches(msg, v.keys.End):
			v.cursor = max(len(v.items)-1, 0)
		}
	}
	return v, nil
}

// View renders the list
func (v *ConversationsView) View() string {
	var b strings.Builder
	b.WriteString(shared.TitleStyle.Render("Conversations"))
	b.WriteString("\n\n")

	if len(v.items) == 0 {
		b.WriteString(shared.HelpDescStyle.Render("No conversations yet."))
		b.WriteString("\n")
		return b.String()
	}

	// Scroll so the cursor stays visible.
	visible := max(v.height-3, 1)
	start := 0
	if v.cursor >= visible {
		start = v.cursor - visible + 1
	}
	end := min(start+visible, len(v.items))

	titleWidth := max(v.width-24, 10)
	for i := start; i < end; i++ {
		c := v.items[i]
		marker := "  "
		if i == v.cursor {
			marker = shared.SelectionMarker.Render(shared.SelectionChar) + " "
		}
		current := " "
		if c.ID == v.currentID {
			current = shared.CurrentChar
		}
		title := c.Title
		if title == "" {
			title = c.ID
		}
		line := fmt.Sprintf("%s%s %-*s %s", marker, current, titleWidth, shared.Truncate(title, titleWidth), formatUpdated(c))
		if i == v.cursor {
			line = shared.SelectedRowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func formatUpdated(c api.ConversationSummary) string {
	t := c.Updated()
	if t.IsZero() {
		return ""
	}
	return shared.HelpDescStyle.Render(t.Format("2006-01-02 15:04"))
}
