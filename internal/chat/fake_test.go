package chat

import (
	"context"
	"sync"
	"time"

	"github.com/buker/chatlib/internal/api"
)

// fakeAuth is a scripted Authenticator.
type fakeAuth struct {
	mu      sync.Mutex
	userID  string
	prompts int
}

func (a *fakeAuth) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID != ""
}

func (a *fakeAuth) UserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID
}

func (a *fakeAuth) PromptLogin() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts++
}

func (a *fakeAuth) signOut() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userID = ""
}

func (a *fakeAuth) promptCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prompts
}

// script describes how the fake transport answers one exchange.
type script struct {
	fragments []string
	err       error
	delay     time.Duration
	block     bool // wait for ctx cancellation after the fragments
}

// fakeBackend records calls and plays scripts through api.NewStream. It also
// measures overlap between exchanges.
type fakeBackend struct {
	mu            sync.Mutex
	creates       []string
	createID      string
	createErr     error
	list          []api.ConversationSummary
	history       map[string][]api.Message
	deletes       []string
	requests      []api.ChatRequest
	scripts       []script
	active        int
	overlaps      int
	fragmentsSeen chan string

	// When set, CreateConversation and StreamChat signal started and then
	// wait for release before answering.
	createStarted chan struct{}
	createRelease chan struct{}
	streamStarted chan struct{}
	streamRelease chan struct{}
	streams       []*api.Stream
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{createID: "c-new", history: map[string][]api.Message{}}
}

func (b *fakeBackend) CreateConversation(_ context.Context, userID, title string) (string, error) {
	if b.createRelease != nil {
		b.createStarted <- struct{}{}
		<-b.createRelease
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates = append(b.creates, title)
	if b.createErr != nil {
		return "", b.createErr
	}
	b.list = append(b.list, api.ConversationSummary{ID: b.createID, Title: title})
	return b.createID, nil
}

func (b *fakeBackend) ListConversations(context.Context, string) ([]api.ConversationSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.ConversationSummary(nil), b.list...), nil
}

func (b *fakeBackend) ConversationHistory(_ context.Context, id string) ([]api.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history[id], nil
}

func (b *fakeBackend) DeleteConversation(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, id)
	kept := b.list[:0]
	for _, c := range b.list {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	b.list = kept
	return nil
}

func (b *fakeBackend) StreamChat(ctx context.Context, req api.ChatRequest, h api.StreamHandler) *api.Stream {
	if b.streamRelease != nil {
		b.streamStarted <- struct{}{}
		<-b.streamRelease
	}
	b.mu.Lock()
	b.requests = append(b.requests, req)
	sc := script{fragments: []string{"ok"}}
	if len(b.scripts) > 0 {
		sc = b.scripts[0]
		b.scripts = b.scripts[1:]
	}
	b.mu.Unlock()

	stream := api.NewStream(ctx, func(ctx context.Context, emit func(string)) error {
		b.enter()
		defer b.leave()
		for _, f := range sc.fragments {
			if sc.delay > 0 {
				select {
				case <-time.After(sc.delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			emit(f)
			if b.fragmentsSeen != nil {
				b.fragmentsSeen <- f
			}
		}
		if sc.block {
			<-ctx.Done()
			return ctx.Err()
		}
		return sc.err
	}, h)
	b.mu.Lock()
	b.streams = append(b.streams, stream)
	b.mu.Unlock()
	return stream
}

func (b *fakeBackend) lastStream() *api.Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.streams) == 0 {
		return nil
	}
	return b.streams[len(b.streams)-1]
}

func (b *fakeBackend) enter() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active++
	if b.active > 1 {
		b.overlaps++
	}
}

func (b *fakeBackend) leave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active--
}

func (b *fakeBackend) requestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *fakeBackend) prompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.requests))
	for i, r := range b.requests {
		out[i] = r.Prompt
	}
	return out
}

// fakeGuest serves a fixed guest list.
type fakeGuest struct {
	list []api.ConversationSummary
}

func (g *fakeGuest) GuestConversations(context.Context) ([]api.ConversationSummary, error) {
	return g.list, nil
}
