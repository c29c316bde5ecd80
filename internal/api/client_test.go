package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithRetry(2, time.Millisecond)}, opts...)
	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	require.Error(t, err)
	_, err = NewClient("localhost:8080")
	require.Error(t, err)
}

func TestCreateConversation_SendsQueryParams(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/ai/conversation", r.URL.Path)
		require.Equal(t, "u1", r.URL.Query().Get("userId"))
		require.Equal(t, "Hello world, this is", r.URL.Query().Get("title"))
		writeJSON(w, Result[string]{Code: CodeOK, Data: "c42"})
	}))

	id, err := c.CreateConversation(context.Background(), "u1", "Hello world, this is")
	require.NoError(t, err)
	require.Equal(t, "c42", id)
}

func TestCall_LogicalErrorIsAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, Result[any]{Code: 500, Message: "会话不存在"})
	}))

	err := c.DeleteConversation(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 500, apiErr.Code)
	require.Equal(t, "会话不存在", apiErr.Message)
}

func TestListConversations_NullDataIsEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ai/conversations", r.URL.Path)
		_, _ = w.Write([]byte(`{"code":200,"message":"ok","data":null}`))
	}))

	list, err := c.ListConversations(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
}

func TestConversationHistory_DecodesMessages(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ai/conversation/history/c1", r.URL.Path)
		writeJSON(w, Result[[]Message]{Code: CodeOK, Data: []Message{
			{ID: "1", ConversationID: "c1", Role: "user", MessageType: "USER", Content: "hi"},
			{ID: "2", ConversationID: "c1", Role: "assistant", MessageType: "ASSISTANT", Content: "hello"},
		}})
	}))

	msgs, err := c.ConversationHistory(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hello", msgs[1].Content)
}

func TestCall_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, Result[[]ConversationSummary]{Code: CodeOK, Data: []ConversationSummary{{ID: "c1"}}})
	}))

	list, err := c.ListConversations(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.EqualValues(t, 3, calls.Load())
}

func TestCall_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))

	_, err := c.ListConversations(context.Background(), "u1")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	require.Equal(t, "bad", httpErr.Body)
	require.EqualValues(t, 1, calls.Load())
}

func TestCall_UnauthorizedInvokesHook(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	var fired atomic.Int32
	c.OnUnauthorized(func() { fired.Add(1) })

	_, err := c.ListConversations(context.Background(), "u1")
	require.Error(t, err)
	require.EqualValues(t, 1, fired.Load())
}

func TestLogin_TokenAndCookiesSentAfterwards(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "alice", req.Username)
		http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "s1", Path: "/"})
		writeJSON(w, Result[LoginResponse]{Code: CodeOK, Data: LoginResponse{Token: "t1", User: User{ID: "u1", Username: "alice"}}})
	})
	mux.HandleFunc("/ai/conversations", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("SESSION")
		require.NoError(t, err)
		require.Equal(t, "s1", cookie.Value)
		require.Equal(t, "Bearer t1", r.Header.Get("Authorization"))
		writeJSON(w, Result[[]ConversationSummary]{Code: CodeOK})
	})
	c := newTestClient(t, mux)

	resp, err := c.Login(context.Background(), LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "u1", resp.User.ID)

	c.SetToken(resp.Token)
	_, err = c.ListConversations(context.Background(), "u1")
	require.NoError(t, err)
}

func TestConversationSummary_Updated(t *testing.T) {
	s := ConversationSummary{UpdateTime: "2025-01-02T03:04:05"}
	require.Equal(t, 2025, s.Updated().Year())
	require.True(t, ConversationSummary{UpdateTime: "garbage"}.Updated().IsZero())
}
