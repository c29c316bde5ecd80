package views

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buker/chatlib/internal/api"
	"github.com/buker/chatlib/internal/chat"
)

// =============================================================================
// Tests for TranscriptView
// =============================================================================

func TestTranscriptView_EmptyShowsHint(t *testing.T) {
	view := NewTranscriptView("notty")
	view.SetSize(80, 20)

	if !strings.Contains(view.View(), "Start a conversation") {
		t.Error("empty transcript should show a hint")
	}
}

func TestTranscriptView_RendersRoles(t *testing.T) {
	view := NewTranscriptView("notty")
	view.SetSize(80, 40)
	view.SetMessages([]chat.Message{
		{Role: chat.RoleUser, Content: "what is go?"},
		{Role: chat.RoleAssistant, Content: "A **language**."},
	}, false)

	out := view.View()
	for _, want := range []string{"You", "what is go?", "Assistant", "language"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() should contain %q, got:\n%s", want, out)
		}
	}
	if view.MessageCount() != 2 {
		t.Errorf("MessageCount() = %d, want 2", view.MessageCount())
	}
}

func TestTranscriptView_ThinkingPlaceholder(t *testing.T) {
	view := NewTranscriptView("notty")
	view.SetSize(80, 20)
	view.SetMessages([]chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant},
	}, true)

	if !strings.Contains(view.View(), "thinking") {
		t.Error("empty reply should show thinking while thinking")
	}

	view.SetMessages([]chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant},
	}, false)
	if strings.Contains(view.View(), "thinking") {
		t.Error("thinking indicator should clear")
	}
}

func TestTranscriptView_WithoutSizeStillRenders(t *testing.T) {
	view := NewTranscriptView("")
	view.SetMessages([]chat.Message{{Role: chat.RoleUser, Content: "raw"}}, false)
	if !strings.Contains(view.View(), "raw") {
		t.Error("unsized view should render content")
	}
}

// =============================================================================
// Tests for ConversationsView
// =============================================================================

func testConversations() []api.ConversationSummary {
	return []api.ConversationSummary{
		{ID: "c1", Title: "first", UpdateTime: "2025-01-02T10:00:00"},
		{ID: "c2", Title: "second"},
		{ID: "c3", Title: ""},
	}
}

func TestConversationsView_Navigation(t *testing.T) {
	view := NewConversationsView()
	view.SetSize(80, 20)
	view.SetConversations(testConversations(), "")

	if got := view.Selected(); got == nil || got.ID != "c1" {
		t.Fatalf("Selected() = %v, want c1", got)
	}

	view, _ = view.Update(tea.KeyMsg{Type: tea.KeyDown})
	view, _ = view.Update(tea.KeyMsg{Type: tea.KeyDown})
	view, _ = view.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := view.Selected(); got.ID != "c3" {
		t.Errorf("cursor should stop at the last item, got %s", got.ID)
	}

	view, _ = view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("g")})
	if got := view.Selected(); got.ID != "c1" {
		t.Errorf("Home should jump to the first item, got %s", got.ID)
	}
}

func TestConversationsView_CursorStartsOnCurrent(t *testing.T) {
	view := NewConversationsView()
	view.SetConversations(testConversations(), "c2")

	if got := view.Selected(); got.ID != "c2" {
		t.Errorf("Selected() = %s, want c2", got.ID)
	}
}

func TestConversationsView_KeepsSelectionAcrossRefresh(t *testing.T) {
	view := NewConversationsView()
	view.SetConversations(testConversations(), "")
	view, _ = view.Update(tea.KeyMsg{Type: tea.KeyDown})

	reordered := []api.ConversationSummary{{ID: "c2"}, {ID: "c1"}}
	view.SetConversations(reordered, "")
	if got := view.Selected(); got.ID != "c2" {
		t.Errorf("Selected() = %s, want c2", got.ID)
	}
}

func TestConversationsView_View(t *testing.T) {
	view := NewConversationsView()
	view.SetSize(80, 20)

	if !strings.Contains(view.View(), "No conversations") {
		t.Error("empty list should say so")
	}

	view.SetConversations(testConversations(), "c1")
	out := view.View()
	for _, want := range []string{"first", "second", "c3", "2025-01-02 10:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() should contain %q", want)
		}
	}
}

// =============================================================================
// Tests for LoginModal
// =============================================================================

func typeText(v *LoginModal, s string) *LoginModal {
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return v
}

func TestLoginModal_CollectsCredentials(t *testing.T) {
	modal := NewLoginModal()
	modal.SetSize(80, 24)

	if modal.Ready() {
		t.Error("empty modal should not be ready")
	}

	modal = typeText(modal, "alice")
	modal, _ = modal.Update(tea.KeyMsg{Type: tea.KeyTab})
	modal = typeText(modal, "secret")

	if !modal.Ready() {
		t.Fatal("modal should be ready after both fields are filled")
	}
	c := modal.Credentials()
	if c.Username != "alice" || c.Password != "secret" {
		t.Errorf("Credentials() = %+v", c)
	}
	if strings.Contains(modal.View(), "secret") {
		t.Error("password must not be echoed")
	}
}

func TestLoginModal_BusyIgnoresInput(t *testing.T) {
	modal := NewLoginModal()
	modal.SetBusy(true)
	modal = typeText(modal, "x")
	if modal.Credentials().Username != "" {
		t.Error("input should be ignored while busy")
	}

	modal.SetError("bad credentials")
	if !strings.Contains(modal.View(), "bad credentials") {
		t.Error("error should be shown")
	}
	modal = typeText(modal, "y")
	if modal.Credentials().Username != "y" {
		t.Error("SetError should re-enable input")
	}

	modal.Reset()
	if modal.Credentials().Username != "" {
		t.Error("Reset should clear the fields")
	}
}
