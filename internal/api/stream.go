package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/buker/chatlib/internal/sse"
)

// ErrNoBody is reported when a streaming response carries no readable body.
var ErrNoBody = errors.New("response body is unavailable")

// StreamHandler receives the outcome of one streaming exchange. Fragments are
// delivered synchronously, in arrival order, on the stream goroutine. Exactly
// one of OnError and OnComplete fires unless the stream was stopped first.
type StreamHandler struct {
	OnFragment func(text string)
	OnError    func(err error)
	OnComplete func()
}

// Stream is the handle of a running exchange.
type Stream struct {
	cancel  context.CancelFunc
	done    chan struct{}
	stopped atomic.Bool
}

// Stop aborts the exchange, closing the connection. No callback is delivered
// after Stop returns, except one already executing.
func (s *Stream) Stop() {
	if s == nil {
		return
	}
	s.stopped.Store(true)
	s.cancel()
}

// Stopped reports whether Stop was called.
func (s *Stream) Stopped() bool {
	return s != nil && s.stopped.Load()
}

// Done is closed once the exchange has ended and no more callbacks will run.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the exchange has ended.
func (s *Stream) Wait() {
	<-s.done
}

// Producer performs one exchange, passing each decoded fragment to emit in
// arrival order. It must return when ctx is done.
type Producer func(ctx context.Context, emit func(text string)) error

// NewStream runs produce on its own goroutine and reports its outcome to h.
func NewStream(ctx context.Context, produce Producer, h StreamHandler) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer cancel()

		err := produce(ctx, func(frag string) {
			if !s.stopped.Load() && h.OnFragment != nil {
				h.OnFragment(frag)
			}
		})
		if s.stopped.Load() {
			return
		}
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			return
		}
		if h.OnComplete != nil {
			h.OnComplete()
		}
	}()

	return s
}

// StreamChat posts req to the chat endpoint and decodes the event stream in
// the background. Streaming exchanges are never retried.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, h StreamHandler) *Stream {
	logger := c.logger.With().Str("chat_id", req.ChatID).Logger()
	logger.Debug().Int("prompt_len", len(req.Prompt)).Msg("stream: sending message")

	return NewStream(ctx, func(ctx context.Context, emit func(string)) error {
		err := c.runStream(ctx, req, emit)
		switch {
		case ctx.Err() != nil && errors.Is(err, context.Canceled):
			logger.Debug().Msg("stream: canceled")
		case err != nil:
			logger.Error().Err(err).Msg("stream: failed")
		default:
			logger.Debug().Msg("stream: complete")
		}
		return err
	}, h)
}

func (c *Client) runStream(ctx context.Context, req ChatRequest, emit func(string)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "failed to encode chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/ai/chat", nil), bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.stream.Do(httpReq)
	if err != nil {
		return err
	}
	if resp.Body == nil {
		return ErrNoBody
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	for frag, err := range sse.Fragments(resp.Body) {
		if err != nil {
			return errors.Wrap(err, "failed to read stream")
		}
		emit(frag)
	}
	return nil
}
