package api

import "time"

// CodeOK is the envelope code the backend uses for logical success.
const CodeOK = 200

// Result is the envelope wrapping every non-streaming response.
// HTTP success and Code == CodeOK are separate layers and both must hold.
type Result[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// ChatRequest is the body of the streaming chat call.
type ChatRequest struct {
	Prompt string `json:"prompt"`
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// ConversationSummary is one entry of the conversation list.
type ConversationSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	LastMessage string `json:"lastMessage,omitempty"`
	UpdateTime  string `json:"updateTime"`
}

// Updated parses UpdateTime. Unparseable or empty values sort as the zero time.
func (s ConversationSummary) Updated() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s.UpdateTime); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Message is a persisted chat message as returned by the history endpoint.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Role           string `json:"role"`
	MessageType    string `json:"messageType"`
	Content        string `json:"content"`
	CreateTime     string `json:"createTime"`
}

// User is the authenticated account.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Role       string `json:"role,omitempty"`
	CreateTime string `json:"createTime,omitempty"`
	UpdateTime string `json:"updateTime,omitempty"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// RegisterRequest carries sign-up data.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Email    string `json:"email,omitempty"`
}

// LoginResponse is returned by login and register.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
