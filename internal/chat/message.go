package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/buker/chatlib/internal/api"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageType is the upper-case role tag the backend stores alongside Role.
func (r Role) MessageType() string {
	return strings.ToUpper(string(r))
}

// Message is one transcript entry. Content is only mutated while the message
// is the target of its own streaming exchange.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	CreatedAt      time.Time
}

// newMessage stamps a message with a time-ordered id. UUIDv7 values generated
// by one process are monotonic, so ids sort in creation order.
func newMessage(conversationID string, role Role, content string) *Message {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Message{
		ID:             id.String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
}

// fromAPI converts a stored history message.
func fromAPI(m api.Message) *Message {
	role := Role(strings.ToLower(m.Role))
	if role == "" {
		role = Role(strings.ToLower(m.MessageType))
	}
	created, err := time.Parse(time.RFC3339Nano, m.CreateTime)
	if err != nil {
		created, _ = time.ParseInLocation("2006-01-02T15:04:05", m.CreateTime, time.Local)
	}
	return &Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           role,
		Content:        m.Content,
		CreatedAt:      created,
	}
}
