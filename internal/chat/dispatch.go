package chat

import (
	"github.com/pkg/errors"

	"github.com/buker/chatlib/internal/api"
)

// Send is the entry point for user input. Blank input is ignored; blocked
// input is answered locally with a refusal; anything else is queued and
// processed after every earlier send. Results are observed through the
// store's state and subscriptions.
func (s *Store) Send(text string) {
	if err := s.validator.Check(text); err != nil {
		if errors.Is(err, ErrDenied) {
			s.reject(text)
		}
		return
	}
	s.queue.Enqueue(text)
}

// reject appends the user's input and the canned refusal without touching
// the network.
func (s *Store) reject(text string) {
	s.mu.Lock()
	convID := s.currentID
	if convID == "" {
		convID = "temp"
	}
	s.messages = append(s.messages,
		newMessage(convID, RoleUser, text),
		newMessage(convID, RoleAssistant, s.refusal),
	)
	s.mu.Unlock()
	s.logger.Info().Msg("input rejected by denylist")
	s.notify(Event{Kind: EventMessages})
}

// title returns the first titleLength runes of text.
func (s *Store) title(text string) string {
	r := []rune(text)
	if len(r) > s.titleLength {
		r = r[:s.titleLength]
	}
	return string(r)
}

// processMessage runs one queued send to completion. It is only called from
// the queue's drain goroutine.
func (s *Store) processMessage(text string) {
	ctx := s.ctx
	gen := s.currentGeneration()

	if s.CurrentConversationID() == "" {
		if err := s.createConversation(ctx, s.title(text), gen); err != nil {
			switch {
			case errors.Is(err, ErrAuthRequired):
				s.logger.Info().Msg("send needs login, dropped")
			case errors.Is(err, ErrSessionReset):
				s.logger.Info().Msg("session reset before send, dropped")
			default:
				s.fail(err)
			}
			return
		}
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.logger.Info().Msg("session reset before send, dropped")
		return
	}
	convID := s.currentID
	s.messages = append(s.messages, newMessage(convID, RoleUser, text))
	s.mu.Unlock()
	s.notify(Event{Kind: EventMessages})

	if !s.auth.IsAuthenticated() || s.auth.UserID() == "" {
		s.auth.PromptLogin()
		s.setStatus(false, false)
		return
	}

	reply := newMessage(convID, RoleAssistant, "")
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, reply)
	s.typing = true
	s.thinking = true
	s.stopPending = false
	s.mu.Unlock()
	s.notify(Event{Kind: EventMessages})
	s.notify(Event{Kind: EventStatus})

	logger := s.logger.With().Str("conversation_id", convID).Str("message_id", reply.ID).Logger()
	logger.Debug().Msg("dispatching message")

	stream := s.backend.StreamChat(ctx, api.ChatRequest{
		Prompt: text,
		ChatID: convID,
		UserID: s.auth.UserID(),
	}, api.StreamHandler{
		OnFragment: func(frag string) {
			s.applyFragment(reply, frag)
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("reply failed")
			s.finalize(reply, err)
		},
		OnComplete: func() {
			s.finalize(reply, nil)
		},
	})

	s.mu.Lock()
	s.active = stream
	stop := s.stopPending || s.generation != gen
	s.stopPending = false
	s.mu.Unlock()
	if stop {
		stream.Stop()
	}

	<-stream.Done()

	s.mu.Lock()
	if s.active == stream {
		s.active = nil
	}
	s.mu.Unlock()

	if stream.Stopped() {
		logger.Info().Msg("reply stopped")
		s.setStatus(false, false)
	}
}

// applyFragment appends text to the reply it was dispatched for, whether or
// not that reply is still in the displayed transcript.
func (s *Store) applyFragment(reply *Message, text string) {
	s.mu.Lock()
	wasThinking := s.thinking
	s.thinking = false
	reply.Content += text
	s.mu.Unlock()
	if wasThinking {
		s.notify(Event{Kind: EventStatus})
	}
	s.notify(Event{Kind: EventMessages})
}

// finalize closes the reply. On failure the partial content is kept and the
// error marker appended.
func (s *Store) finalize(reply *Message, err error) {
	s.mu.Lock()
	s.typing = false
	s.thinking = false
	if err != nil {
		reply.Content += s.errorMarker
		s.lastErr = err
	}
	s.mu.Unlock()
	s.notify(Event{Kind: EventMessages})
	s.notify(Event{Kind: EventStatus})
	if err != nil {
		s.notify(Event{Kind: EventError, Err: err})
	}
}

func (s *Store) setStatus(typing, thinking bool) {
	s.mu.Lock()
	s.typing = typing
	s.thinking = thinking
	s.mu.Unlock()
	s.notify(Event{Kind: EventStatus})
}

// fail records an error from a queued send. The queue carries on with the
// next item.
func (s *Store) fail(err error) {
	s.logger.Error().Err(err).Msg("send failed")
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.notify(Event{Kind: EventError, Err: err})
}
