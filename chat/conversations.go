package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/session"
	"github.com/rgq/edabank-console/ui"
	"github.com/rgq/edabank-console/users"
)

var ErrNoConversation = errors.New("no conversation selected")

// Conversation is one entry of the conversation selector.
type Conversation struct {
	ID        int64           `json:"id"`
	CreatedAt json.RawMessage `json:"createdAt,omitempty"`
}

// Label is how the conversation appears in the selector.
func (c Conversation) Label() string { return "Conv " + strconv.FormatInt(c.ID, 10) }

// HistoryMessage is a stored message of a conversation.
type HistoryMessage struct {
	ID             int64           `json:"id"`
	Content        string          `json:"content"`
	Sender         string          `json:"sender"`
	ConversationID *int64          `json:"conversationId"`
	SentAt         json.RawMessage `json:"sentAt,omitempty"`
}

type sendResponse struct {
	ConversationID *int64 `json:"conversationId"`
}

// UserSource lists users for the chat user selector.
type UserSource interface {
	Fetch(ctx context.Context) ([]users.User, error)
}

// Conversations manages the conversation selector and the active
// conversation kept in the session.
type Conversations struct {
	client  *api.Client
	session *session.Session
	users   UserSource
	notify  ui.Notifier

	mu      sync.RWMutex
	options []Conversation
	people  []users.Option
	history []HistoryMessage
}

func NewConversations(client *api.Client, sess *session.Session, src UserSource, notify ui.Notifier) *Conversations {
	if notify == nil {
		notify = ui.NotifierFunc(func(ui.Kind, string) {})
	}
	return &Conversations{client: client, session: sess, users: src, notify: notify}
}

// List repopulates the conversation options.
func (c *Conversations) List(ctx context.Context) ([]Conversation, error) {
	var list []Conversation
	if err := c.client.GetJSON(ctx, api.PathConversations, &list); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.options = list
	c.mu.Unlock()
	ui.Info(c.notify, "conversations loaded")
	return list, nil
}

// Options returns the conversation selector entries.
func (c *Conversations) Options() []Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Conversation(nil), c.options...)
}

// Select makes id the active conversation; an empty id clears it.
func (c *Conversations) Select(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		c.session.ClearConversation()
		ui.Info(c.notify, "no conversation selected")
		return nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("conversation id %q: %w", id, err)
	}
	c.session.SetConversation(n)
	ui.Info(c.notify, "using conversation %d", n)
	return nil
}

// Current returns the active conversation label or "-".
func (c *Conversations) Current() string {
	if id, ok := c.session.Conversation(); ok {
		return strconv.FormatInt(id, 10)
	}
	return "-"
}

// Create opens a new conversation with a JOIN message.
func (c *Conversations) Create(ctx context.Context) (int64, error) {
	id, err := c.join(ctx, "New conversation")
	if err != nil {
		return 0, err
	}
	ui.Success(c.notify, "conversation created: %d", id)
	_, _ = c.refresh(ctx)
	return id, nil
}

// CreateWithUser opens a conversation named after the selected user. label
// falls back to the option label for userID, then userID, then "user".
func (c *Conversations) CreateWithUser(ctx context.Context, userID, label string) (int64, error) {
	if label == "" {
		label = c.userLabel(userID)
	}
	id, err := c.join(ctx, "Conversation with "+label)
	if err != nil {
		return 0, err
	}
	ui.Success(c.notify, "conversation with user created: %d", id)
	_, _ = c.refresh(ctx)
	return id, nil
}

func (c *Conversations) userLabel(userID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, o := range c.people {
		if o.Value == userID && o.Label != "" {
			return o.Label
		}
	}
	if userID != "" {
		return userID
	}
	return "user"
}

func (c *Conversations) join(ctx context.Context, content string) (int64, error) {
	msg := Message{
		Content: content,
		Sender:  c.session.EmailOr("web"),
		Type:    TypeJoin,
	}
	resp, err := c.client.Post(ctx, api.PathChatSend, msg)
	if err != nil {
		return 0, err
	}
	var out sendResponse
	if err := resp.Decode(&out); err != nil {
		return 0, err
	}
	if out.ConversationID == nil {
		return 0, errors.New("backend returned no conversation id")
	}
	c.session.SetConversation(*out.ConversationID)
	return *out.ConversationID, nil
}

// refresh reloads the options, reporting failures as a toast since the
// conversation was already created.
func (c *Conversations) refresh(ctx context.Context) ([]Conversation, error) {
	list, err := c.List(ctx)
	if err != nil {
		ui.Error(c.notify, "list conversations failed: %v", err)
	}
	return list, err
}

// LoadUsers fills the chat user selector.
func (c *Conversations) LoadUsers(ctx context.Context) ([]users.Option, error) {
	list, err := c.users.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	opts := users.Options(list)
	c.mu.Lock()
	c.people = opts
	c.mu.Unlock()
	ui.Info(c.notify, "chat users loaded")
	return opts, nil
}

// People returns the chat user selector entries.
func (c *Conversations) People() []users.Option {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]users.Option(nil), c.people...)
}

// CopyCurrentID returns the active id as text for the clipboard.
func (c *Conversations) CopyCurrentID() (string, error) {
	id, ok := c.session.Conversation()
	if !ok {
		return "", ErrNoConversation
	}
	return strconv.FormatInt(id, 10), nil
}

// History fetches the stored messages of conversation id.
func (c *Conversations) History(ctx context.Context, id int64) ([]HistoryMessage, error) {
	var list []HistoryMessage
	if err := c.client.GetJSON(ctx, api.ConversationMessagesPath(id), &list); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.history = list
	c.mu.Unlock()
	return list, nil
}

// LastHistory returns the most recently fetched history.
func (c *Conversations) LastHistory() []HistoryMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]HistoryMessage(nil), c.history...)
}

// Line renders one stored message.
func (h HistoryMessage) Line() string {
	m := Message{Content: h.Content, Sender: h.Sender, Type: TypeChat, ConversationID: h.ConversationID, SentAt: h.SentAt}
	if at := m.sentAtText(); at != "" {
		return at + " " + m.Line()
	}
	return m.Line()
}
