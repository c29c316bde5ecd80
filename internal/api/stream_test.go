package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder collects callbacks from one exchange.
type recorder struct {
	mu        sync.Mutex
	fragments []string
	errs      []error
	completes int
}

func (r *recorder) handler() StreamHandler {
	return StreamHandler{
		OnFragment: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.fragments = append(r.fragments, text)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
		OnComplete: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes++
		},
	}
}

func (r *recorder) snapshot() ([]string, []error, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fragments...), append([]error(nil), r.errs...), r.completes
}

func waitStream(t *testing.T, s *Stream) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
	}
}

func TestStreamChat_DeliversFragmentsInOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/ai/chat", r.URL.Path)
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, ChatRequest{Prompt: "hi", ChatID: "c1", UserID: "u1"}, req)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, part := range []string{"data:Hel", "lo\n\n", "data: wor", "ld\n", "tail"} {
			_, _ = io.WriteString(w, part)
			flusher.Flush()
		}
	}))

	rec := &recorder{}
	s := c.StreamChat(context.Background(), ChatRequest{Prompt: "hi", ChatID: "c1", UserID: "u1"}, rec.handler())
	waitStream(t, s)

	frags, errs, completes := rec.snapshot()
	require.Equal(t, []string{"Hello", " world", "tail"}, frags)
	require.Empty(t, errs)
	require.Equal(t, 1, completes)
}

func TestStreamChat_NonSuccessStatusReportsBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))

	rec := &recorder{}
	waitStream(t, c.StreamChat(context.Background(), ChatRequest{Prompt: "hi"}, rec.handler()))

	frags, errs, completes := rec.snapshot()
	require.Empty(t, frags)
	require.Zero(t, completes)
	require.Len(t, errs, 1)
	var httpErr *HTTPError
	require.ErrorAs(t, errs[0], &httpErr)
	require.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	require.Equal(t, "model overloaded", httpErr.Body)
}

func TestStreamChat_NotRetried(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := &recorder{}
	waitStream(t, c.StreamChat(context.Background(), ChatRequest{Prompt: "hi"}, rec.handler()))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestStreamChat_ReadErrorAfterFragments(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = io.WriteString(w, "data:Hel\ndata:lo\n")
	}))

	rec := &recorder{}
	waitStream(t, c.StreamChat(context.Background(), ChatRequest{Prompt: "hi"}, rec.handler()))

	frags, errs, completes := rec.snapshot()
	require.Equal(t, []string{"Hel", "lo"}, frags)
	require.Len(t, errs, 1)
	require.Zero(t, completes)
}

func TestStreamChat_StopSuppressesCallbacks(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data:first\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer close(release)

	first := make(chan struct{})
	var once sync.Once
	rec := &recorder{}
	h := rec.handler()
	inner := h.OnFragment
	h.OnFragment = func(text string) {
		inner(text)
		once.Do(func() { close(first) })
	}

	s := c.StreamChat(context.Background(), ChatRequest{Prompt: "hi"}, h)
	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("no fragment received")
	}
	s.Stop()
	waitStream(t, s)

	frags, errs, completes := rec.snapshot()
	require.Equal(t, []string{"first"}, frags)
	require.Empty(t, errs)
	require.Zero(t, completes)
	require.True(t, s.Stopped())
}

func TestStreamChat_ParentContextCancelReportsError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	s := c.StreamChat(ctx, ChatRequest{Prompt: "hi"}, rec.handler())
	time.Sleep(20 * time.Millisecond)
	cancel()
	waitStream(t, s)

	_, errs, completes := rec.snapshot()
	require.Len(t, errs, 1)
	require.True(t, strings.Contains(errs[0].Error(), "context canceled"))
	require.Zero(t, completes)
}
