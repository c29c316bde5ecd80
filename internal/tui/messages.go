package tui

import "github.com/buker/chatlib/internal/chat"

// Messages for updating the TUI from outside the event loop.

// MsgStoreEvent is sent when the chat store reports a state change. The model
// re-reads the store rather than trusting the event payload.
type MsgStoreEvent struct {
	Event chat.Event
}

// MsgLoginRequested is sent when a send needs a signed-in user.
type MsgLoginRequested struct{}

// MsgQuit is sent to quit the application
type MsgQuit struct{}

// Results of background commands started by the model.

// MsgLoginDone reports the outcome of a sign-in attempt.
type MsgLoginDone struct {
	Err error
}

// MsgLogoutDone reports the outcome of a sign-out.
type MsgLogoutDone struct {
	Err error
}

// MsgConversationsLoaded reports a conversation list refresh.
type MsgConversationsLoaded struct {
	Err error
}

// MsgConversationOpened reports a conversation switch or creation.
type MsgConversationOpened struct {
	Err error
}

// MsgConversationDeleted reports a deletion.
type MsgConversationDeleted struct {
	ID  string
	Err error
}
