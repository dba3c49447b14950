// Package chat is the real-time chat client (STOMP over websocket) and the
// conversation manager backed by the chat REST endpoints.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/session"
	"github.com/rgq/edabank-console/ui"
)

// State is the connection lifecycle.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

var (
	ErrNotConnected    = errors.New("chat not connected")
	errTransportClosed = errors.New("chat transport closed")
)

// DefaultInboxSize bounds the displayed message list.
const DefaultInboxSize = 500

// SendRequest holds the compose form. Empty fields take defaults.
type SendRequest struct {
	Content        string
	Sender         string
	Type           MessageType
	ConversationID *int64
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithInboxSize caps the number of displayed messages.
func WithInboxSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.inboxSize = n
		}
	}
}

// WithCloseTimeout bounds how long Disconnect waits on the transport.
func WithCloseTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.closeTimeout = d
		}
	}
}

// OnMessage registers a callback for every displayed message. Callbacks run
// on the transport goroutine.
func OnMessage(fn func(Message)) ClientOption {
	return func(c *Client) { c.listeners = append(c.listeners, fn) }
}

// Client owns the single chat connection and its subscription.
type Client struct {
	dialer       Dialer
	session      *session.Session
	notify       ui.Notifier
	inboxSize    int
	closeTimeout time.Duration
	listeners    []func(Message)

	mu     sync.Mutex
	state  State
	broker Broker
	sub    Subscription
	gen    uint64
	inbox  []Message // newest first
}

func NewClient(dialer Dialer, sess *session.Session, notify ui.Notifier, opts ...ClientOption) *Client {
	c := &Client{
		dialer:       dialer,
		session:      sess,
		notify:       notify,
		inboxSize:    DefaultInboxSize,
		closeTimeout: 3 * time.Second,
	}
	if c.notify == nil {
		c.notify = ui.NotifierFunc(func(ui.Kind, string) {})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Connected() bool { return c.State() == Connected }

func (c *Client) authHeaders() map[string]string {
	if tok := c.session.Token(); tok != "" {
		return map[string]string{"Authorization": "Bearer " + tok}
	}
	return map[string]string{}
}

// Connect dials the broker and subscribes to the public topic. A second
// call while connected or connecting only notifies.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		st := c.state
		c.mu.Unlock()
		ui.Info(c.notify, "chat already %s", st)
		return nil
	}
	c.state = Connecting
	c.mu.Unlock()

	broker, err := c.dialer.Dial(ctx, c.authHeaders())
	if err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("connect chat: %w", err)
	}
	sub, err := broker.Subscribe(ctx, api.ChatTopic)
	if err != nil {
		_ = bounded(ctx, c.closeTimeout, func() error { return broker.Disconnect(ctx) })
		c.setState(Disconnected)
		return fmt.Errorf("connect chat: %w", err)
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = Connected
	c.broker = broker
	c.sub = sub
	c.mu.Unlock()

	go c.pump(gen, sub)
	ui.Success(c.notify, "chat connected")
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// pump drains the subscription until it closes. Frames from a connection
// that was since replaced or closed are discarded.
func (c *Client) pump(gen uint64, sub Subscription) {
	for f := range sub.Frames() {
		if !c.current(gen) {
			continue
		}
		if f.Err != nil {
			c.fail(gen, f.Err)
			continue
		}
		c.deliver(decodeMessage(f.Body))
	}
	c.fail(gen, errTransportClosed)
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && c.state == Connected
}

// fail moves a live connection to Disconnected after a transport error.
func (c *Client) fail(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen || c.state != Connected {
		c.mu.Unlock()
		return
	}
	broker := c.broker
	c.gen++
	c.state = Disconnected
	c.broker = nil
	c.sub = nil
	c.mu.Unlock()

	log.Warn().Err(err).Msg("[chat] connection lost")
	ui.Error(c.notify, "chat connection lost: %v", err)
	if broker != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.closeTimeout)
			defer cancel()
			_ = broker.Disconnect(ctx)
		}()
	}
}

// deliver applies the active conversation filter and records the message.
func (c *Client) deliver(m Message) {
	if conv, ok := c.session.Conversation(); ok {
		if m.ConversationID == nil || *m.ConversationID != conv {
			log.Debug().Int64("conversation", conv).Msg("[chat] message filtered")
			return
		}
	}
	c.mu.Lock()
	c.inbox = append([]Message{m}, c.inbox...)
	if len(c.inbox) > c.inboxSize {
		c.inbox = c.inbox[:c.inboxSize]
	}
	c.mu.Unlock()
	for _, fn := range c.listeners {
		fn(m)
	}
}

// Disconnect unsubscribes and closes the session. Both steps are best
// effort; the client ends up Disconnected either way.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	broker, sub := c.broker, c.sub
	c.gen++
	c.state = Disconnected
	c.broker = nil
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		if err := bounded(ctx, c.closeTimeout, func() error { return sub.Unsubscribe(ctx) }); err != nil {
			log.Debug().Err(err).Msg("[chat] unsubscribe")
		}
	}
	if broker != nil {
		if err := bounded(ctx, c.closeTimeout, func() error { return broker.Disconnect(ctx) }); err != nil {
			log.Debug().Err(err).Msg("[chat] disconnect")
		}
	}
	ui.Info(c.notify, "chat disconnected")
	return nil
}

// Compose fills the defaults of req: content "Hello", the session identity
// (or "web") as sender, CHAT as type and the active conversation.
func (c *Client) Compose(req SendRequest) Message {
	m := Message{
		Content:        req.Content,
		Sender:         req.Sender,
		Type:           req.Type,
		ConversationID: req.ConversationID,
	}
	if m.Content == "" {
		m.Content = "Hello"
	}
	if m.Sender == "" {
		m.Sender = c.session.EmailOr("web")
	}
	if m.Type == "" {
		m.Type = TypeChat
	}
	if m.ConversationID == nil {
		if id, ok := c.session.Conversation(); ok {
			m.ConversationID = int64Ptr(id)
		}
	}
	return m
}

// Send publishes a message. It fails with ErrNotConnected before touching
// the transport when there is no connection.
func (c *Client) Send(ctx context.Context, req SendRequest) (Message, error) {
	c.mu.Lock()
	broker := c.broker
	connected := c.state == Connected
	c.mu.Unlock()
	if !connected || broker == nil {
		return Message{}, ErrNotConnected
	}

	m := c.Compose(req)
	body, err := json.Marshal(m)
	if err != nil {
		return m, err
	}
	if err := broker.Send(ctx, api.ChatDestination, body, c.authHeaders()); err != nil {
		return m, err
	}
	ui.Success(c.notify, "message sent")
	return m, nil
}

// Inbox returns displayed messages, newest first.
func (c *Client) Inbox() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.inbox...)
}

// ClearInbox empties the displayed list.
func (c *Client) ClearInbox() {
	c.mu.Lock()
	c.inbox = nil
	c.mu.Unlock()
}
