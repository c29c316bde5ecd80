// Package api is the HTTP client for the chat library backend. It wraps the
// JSON endpoints (conversations, history, accounts) behind an envelope-aware
// request helper with bounded retries, and exposes the streaming chat call as
// a cancellable Stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client talks to the backend. Cookies set by the server are kept in a jar and
// sent back on every call, including the streaming one.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	stream     *http.Client
	retries    int
	retryDelay time.Duration
	logger     zerolog.Logger

	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every non-streaming request. Streaming requests are
// bounded only by their context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetry sets the retry count and the fixed delay between attempts.
func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.retryDelay = delay
	}
}

// WithToken attaches a bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the transport used for both request kinds. The
// client's jar is kept if the replacement has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		jar := c.http.Jar
		c.http = hc
		if c.http.Jar == nil {
			c.http.Jar = jar
		}
		c.stream = &http.Client{Transport: hc.Transport, Jar: c.http.Jar}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid base url %q: scheme and host required", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cookie jar")
	}

	c := &Client{
		baseURL:    u,
		http:       &http.Client{Jar: jar, Timeout: 60 * time.Second},
		stream:     &http.Client{Jar: jar},
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		logger:     log.With().Str("component", "api").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken replaces the bearer token, e.g. after login. An empty token removes it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// OnUnauthorized registers a hook invoked when a JSON call is answered with 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// endpoint joins path to the base URL. Segments in path must already be
// escaped with url.PathEscape.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	raw := strings.TrimRight(u.EscapedPath(), "/") + path
	if p, err := url.PathUnescape(raw); err == nil {
		u.Path, u.RawPath = p, raw
	} else {
		u.Path, u.RawPath = raw, ""
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) authorize(req *http.Request) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// call performs one JSON request with retries and decodes the envelope.
// The envelope code is not checked here; see unwrap.
func call[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (*Result[T], error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
	}

	var result Result[T]
	err := executeWithRetry(ctx, c.retries, c.retryDelay, func(attempt int) error {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), rd)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.authorize(req)

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn().Err(err).Str("path", path).Int("attempt", attempt+1).Int("attempts", c.retries+1).Msg("request failed")
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			text, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			if resp.StatusCode == http.StatusUnauthorized {
				c.unauthorized()
			}
			httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
			c.logger.Warn().Err(httpErr).Str("path", path).Int("attempt", attempt+1).Int("attempts", c.retries+1).Msg("request failed")
			return httpErr
		}

		result = Result[T]{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return errors.Wrap(err, "failed to decode response")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// unwrap checks the logical layer of the envelope.
func unwrap[T any](res *Result[T]) (T, error) {
	if res.Code != CodeOK {
		var zero T
		return zero, &APIError{Code: res.Code, Message: res.Message}
	}
	return res.Data, nil
}

// CreateConversation creates a conversation and returns its id.
func (c *Client) CreateConversation(ctx context.Context, userID, title string) (string, error) {
	q := url.Values{"userId": {userID}}
	if title != "" {
		q.Set("title", title)
	}
	res, err := call[string](ctx, c, http.MethodPost, "/ai/conversation", q, nil)
	if err != nil {
		return "", err
	}
	return unwrap(res)
}

// ListConversations returns the user's conversations in server order.
// A null or missing list is returned as empty.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	res, err := call[[]ConversationSummary](ctx, c, http.MethodGet, "/ai/conversations", url.Values{"userId": {userID}}, nil)
	if err != nil {
		return nil, err
	}
	list, err := unwrap(res)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []ConversationSummary{}
	}
	return list, nil
}

// ConversationHistory returns the stored messages of a conversation.
func (c *Client) ConversationHistory(ctx context.Context, conversationID string) ([]Message, error) {
	res, err := call[[]Message](ctx, c, http.MethodGet, "/ai/conversation/history/"+url.PathEscape(conversationID), nil, nil)
	if err != nil {
		return nil, err
	}
	list, err := unwrap(res)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Message{}
	}
	return list, nil
}

// DeleteConversation removes a conversation and its history.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	res, err := call[json.RawMessage](ctx, c, http.MethodDelete, "/ai/conversation/history/"+url.PathEscape(conversationID), nil, nil)
	if err != nil {
		return err
	}
	_, err = unwrap(res)
	return err
}

// Login authenticates and returns the session token and user.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	res, err := call[LoginResponse](ctx, c, http.MethodPost, "/user/login", nil, req)
	if err != nil {
		return nil, err
	}
	out, err := unwrap(res)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns the session token and user.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	res, err := call[LoginResponse](ctx, c, http.MethodPost, "/user/register", nil, req)
	if err != nil {
		return nil, err
	}
	out, err := unwrap(res)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
