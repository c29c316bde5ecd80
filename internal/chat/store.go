// Package chat holds the state of one chat session: the conversation list,
// the transcript of the selected conversation, and the send pipeline that
// validates input, queues it, and applies streamed replies to the transcript.
package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/buker/chatlib/internal/api"
)

var (
	// ErrAuthRequired is returned when an operation needs a signed-in user.
	ErrAuthRequired = errors.New("authentication required")
	// ErrSessionReset is returned when a Reset lands while an operation is
	// waiting on the backend. Its result belongs to the previous session.
	ErrSessionReset = errors.New("session reset")
)

// Backend is the subset of the API client the store uses.
type Backend interface {
	CreateConversation(ctx context.Context, userID, title string) (string, error)
	ListConversations(ctx context.Context, userID string) ([]api.ConversationSummary, error)
	ConversationHistory(ctx context.Context, conversationID string) ([]api.Message, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	StreamChat(ctx context.Context, req api.ChatRequest, h api.StreamHandler) *api.Stream
}

// Authenticator exposes the signed-in state of the session.
type Authenticator interface {
	IsAuthenticated() bool
	UserID() string
	// PromptLogin asks the user to sign in. It must not block.
	PromptLogin()
}

// GuestStore lists conversations kept locally for signed-out use.
type GuestStore interface {
	GuestConversations(ctx context.Context) ([]api.ConversationSummary, error)
}

// EventKind tells subscribers which part of the state changed.
type EventKind int

const (
	EventMessages EventKind = iota
	EventConversations
	EventStatus
	EventError
)

// Event is delivered to subscribers after a state change.
type Event struct {
	Kind EventKind
	Err  error
}

// Options tune the store. Zero values fall back to defaults.
type Options struct {
	TitleLength int
	Denylist    []string
	Refusal     string
	ErrorMarker string
	Guest       GuestStore
	Logger      *zerolog.Logger
}

// DefaultErrorMarker is appended to a reply whose stream failed.
const DefaultErrorMarker = "\n[Error: 消息生成失败]"

const defaultTitleLength = 20

// Store is the session-scoped chat state. All fields are guarded by mu; the
// send queue runs on its own goroutine and streamed fragments arrive on the
// transport goroutine.
type Store struct {
	backend   Backend
	auth      Authenticator
	guest     GuestStore
	validator *Validator
	queue     *Queue
	logger    zerolog.Logger

	titleLength int
	refusal     string
	errorMarker string

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	conversations []api.ConversationSummary
	currentID     string
	messages      []*Message
	typing        bool
	thinking      bool
	lastErr       error
	active        *api.Stream
	stopPending   bool
	generation    uint64 // bumped by Reset

	subMu     sync.Mutex
	subs      map[int]func(Event)
	nextSubID int
}

// NewStore creates the chat state for one session.
func NewStore(backend Backend, auth Authenticator, opts Options) *Store {
	if opts.TitleLength <= 0 {
		opts.TitleLength = defaultTitleLength
	}
	if opts.Denylist == nil {
		opts.Denylist = DefaultDenylist
	}
	if opts.Refusal == "" {
		opts.Refusal = DefaultRefusal
	}
	if opts.ErrorMarker == "" {
		opts.ErrorMarker = DefaultErrorMarker
	}
	logger := log.With().Str("component", "chat").Logger()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "chat").Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		backend:     backend,
		auth:        auth,
		guest:       opts.Guest,
		validator:   NewValidator(opts.Denylist),
		logger:      logger,
		titleLength: opts.TitleLength,
		refusal:     opts.Refusal,
		errorMarker: opts.ErrorMarker,
		ctx:         ctx,
		cancel:      cancel,
		subs:        map[int]func(Event){},
	}
	s.queue = NewQueue(s.processMessage)
	return s
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. fn runs on whichever goroutine made the change and must
// not call back into the store synchronously while holding its own locks.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Messages returns a copy of the transcript.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

// Conversations returns the conversation list, most recently updated first.
func (s *Store) Conversations() []api.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.ConversationSummary(nil), s.conversations...)
}

// CurrentConversationID returns the selected conversation, or "".
func (s *Store) CurrentConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// IsTyping reports whether a reply is being generated.
func (s *Store) IsTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// IsThinking reports whether a reply is pending its first fragment.
func (s *Store) IsThinking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thinking
}

// LastError returns the most recent failure from a queued send.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError forgets the last failure.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Pending returns the number of queued sends not yet started.
func (s *Store) Pending() int {
	return s.queue.Len()
}

// FetchConversations reloads the conversation list. Signed-out sessions read
// the local guest list instead of the backend.
func (s *Store) FetchConversations(ctx context.Context) error {
	gen := s.currentGeneration()
	var (
		list []api.ConversationSummary
		err  error
	)
	if s.auth.IsAuthenticated() && s.auth.UserID() != "" {
		list, err = s.backend.ListConversations(ctx, s.auth.UserID())
		if err != nil {
			return errors.Wrap(err, "failed to fetch conversations")
		}
	} else {
		s.logger.Debug().Msg("guest mode, reading local conversations")
		if s.guest != nil {
			list, err = s.guest.GuestConversations(ctx)
			if err != nil {
				return errors.Wrap(err, "failed to read guest conversations")
			}
		}
	}
	list = append([]api.ConversationSummary(nil), list...)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Updated().After(list[j].Updated())
	})

	s.mu.Lock()
	stale := s.generation != gen
	if !stale {
		s.conversations = list
	}
	s.mu.Unlock()
	if stale {
		s.logger.Debug().Msg("session reset during fetch, list discarded")
		return nil
	}
	s.notify(Event{Kind: EventConversations})
	return nil
}

// CreateConversation creates a conversation, selects it, and clears the
// transcript. Signed-out sessions get a login prompt and ErrAuthRequired.
func (s *Store) CreateConversation(ctx context.Context, title string) error {
	return s.createConversation(ctx, title, s.currentGeneration())
}

// createConversation selects the new conversation only if no Reset happened
// since gen was read. Otherwise it returns ErrSessionReset.
func (s *Store) createConversation(ctx context.Context, title string, gen uint64) error {
	if !s.auth.IsAuthenticated() || s.auth.UserID() == "" {
		s.auth.PromptLogin()
		return ErrAuthRequired
	}
	if title == "" {
		title = "New Chat"
	}
	id, err := s.backend.CreateConversation(ctx, s.auth.UserID(), title)
	if err != nil {
		return errors.Wrap(err, "failed to create conversation")
	}
	if err := s.FetchConversations(ctx); err != nil {
		return errors.Wrap(err, "failed to create conversation")
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return ErrSessionReset
	}
	s.currentID = id
	s.messages = nil
	s.mu.Unlock()
	s.logger.Info().Str("conversation_id", id).Msg("conversation created")
	s.notify(Event{Kind: EventMessages})
	return nil
}

// DeleteConversation deletes a conversation. Deleting the selected one
// clears the selection and transcript. Signed-out sessions are a no-op.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if !s.auth.IsAuthenticated() {
		return nil
	}
	if err := s.backend.DeleteConversation(ctx, id); err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	if err := s.FetchConversations(ctx); err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}

	s.mu.Lock()
	cleared := s.currentID == id
	if cleared {
		s.currentID = ""
		s.messages = nil
	}
	s.mu.Unlock()
	if cleared {
		s.notify(Event{Kind: EventMessages})
	}
	return nil
}

// SelectConversation switches to id and replaces the transcript with its
// history. A reply still streaming into the previous conversation keeps
// writing to its own message, which is no longer displayed.
func (s *Store) SelectConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	s.currentID = id
	s.messages = nil
	s.mu.Unlock()

	if s.auth.IsAuthenticated() {
		history, err := s.backend.ConversationHistory(ctx, id)
		if err != nil {
			s.notify(Event{Kind: EventMessages})
			return errors.Wrap(err, "failed to fetch conversation history")
		}
		msgs := make([]*Message, 0, len(history))
		for _, m := range history {
			msgs = append(msgs, fromAPI(m))
		}
		s.mu.Lock()
		if s.currentID == id {
			s.messages = msgs
		}
		s.mu.Unlock()
	}
	s.notify(Event{Kind: EventMessages})
	return nil
}

// Stop aborts the reply being streamed, keeping what has arrived so far.
func (s *Store) Stop() {
	s.mu.Lock()
	active := s.takeActiveLocked()
	s.mu.Unlock()
	active.Stop()
}

// takeActiveLocked returns the running stream. A stop requested between
// dispatch and the stream handle being recorded is remembered instead.
func (s *Store) takeActiveLocked() *api.Stream {
	if s.active == nil && s.typing {
		s.stopPending = true
	}
	return s.active
}

func (s *Store) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Wait blocks until every queued send has been processed.
func (s *Store) Wait() {
	s.queue.Wait()
}

// Reset drops all session state: queued sends, the active stream, the
// conversation list, and the transcript. It is called on logout.
func (s *Store) Reset() {
	s.queue.Reset()
	s.mu.Lock()
	s.generation++
	active := s.takeActiveLocked()
	s.conversations = nil
	s.currentID = ""
	s.messages = nil
	s.typing = false
	s.thinking = false
	s.lastErr = nil
	s.mu.Unlock()
	active.Stop()
	s.notify(Event{Kind: EventConversations})
	s.notify(Event{Kind: EventMessages})
	s.notify(Event{Kind: EventStatus})
}

// Close stops the active stream, drops queued sends, and cancels in-flight
// backend calls made by the queue.
func (s *Store) Close() {
	s.queue.Reset()
	s.Stop()
	s.cancel()
}
