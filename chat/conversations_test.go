package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/session"
	"github.com/rgq/edabank-console/ui"
	"github.com/rgq/edabank-console/users"
)

type chatBackend struct {
	mu        sync.Mutex
	joins     []map[string]any
	listCalls int
	nextID    int64
}

func (b *chatBackend) router() http.Handler {
	r := chi.NewRouter()
	r.Get(api.PathConversations, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.listCalls++
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"createdAt":"2024-03-01T10:00:00"},{"id":7}]`))
	})
	r.Post(api.PathChatSend, func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		b.mu.Lock()
		b.joins = append(b.joins, m)
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int64{"conversationId": b.nextID})
	})
	r.Get(api.PathConversations+"/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":3,"content":"hi","sender":"bob","conversationId":` + chi.URLParam(r, "id") + `,"sentAt":"2024-03-01T10:00:00"}]`))
	})
	r.Get(api.PathUsers, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":4,"email":"","firstName":"Dana","lastName":"K"}]`))
	})
	return r
}

func newConversations(t *testing.T, b *chatBackend) (*Conversations, *session.Session) {
	t.Helper()
	srv := httptest.NewServer(b.router())
	t.Cleanup(srv.Close)
	sess := session.New(nil)
	c, err := api.New(srv.URL, sess)
	require.NoError(t, err)
	rec := &ui.Recorder{}
	return NewConversations(c, sess, users.NewPanel(c, rec), rec), sess
}

func TestListAndSelect(t *testing.T) {
	b := &chatBackend{}
	cv, sess := newConversations(t, b)

	list, err := cv.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Conv 7", cv.Options()[1].Label())

	require.NoError(t, cv.Select("7"))
	id, ok := sess.Conversation()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, "7", cv.Current())

	require.NoError(t, cv.Select(""))
	_, ok = sess.Conversation()
	assert.False(t, ok)
	assert.Equal(t, "-", cv.Current())

	assert.Error(t, cv.Select("seven"))
}

func TestCreateSendsJoinWithNullConversation(t *testing.T) {
	b := &chatBackend{nextID: 42}
	cv, sess := newConversations(t, b)

	id, err := cv.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	active, ok := sess.Conversation()
	require.True(t, ok)
	assert.Equal(t, int64(42), active)
	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, 1, b.listCalls)

	require.Len(t, b.joins, 1)
	j := b.joins[0]
	assert.Equal(t, "JOIN", j["type"])
	assert.Equal(t, "New conversation", j["content"])
	assert.Equal(t, "web", j["sender"])
	v, present := j["conversationId"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestCreateWithUserUsesSelectorLabel(t *testing.T) {
	b := &chatBackend{nextID: 8}
	cv, _ := newConversations(t, b)
	opts, err := cv.LoadUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []users.Option{{Value: "4", Label: "Dana K"}}, opts)

	_, err = cv.CreateWithUser(context.Background(), "4", "")
	require.NoError(t, err)
	_, err = cv.CreateWithUser(context.Background(), "", "")
	require.NoError(t, err)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.joins, 2)
	assert.Equal(t, "Conversation with Dana K", b.joins[0]["content"])
	assert.Equal(t, "Conversation with user", b.joins[1]["content"])
}

func TestCopyCurrentID(t *testing.T) {
	cv, sess := newConversations(t, &chatBackend{})
	_, err := cv.CopyCurrentID()
	assert.ErrorIs(t, err, ErrNoConversation)

	sess.SetConversation(12)
	id, err := cv.CopyCurrentID()
	require.NoError(t, err)
	assert.Equal(t, "12", id)
}

func TestHistory(t *testing.T) {
	cv, _ := newConversations(t, &chatBackend{})
	list, err := cv.History(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2024-03-01T10:00:00 bob · conv 5 · CHAT: hi", list[0].Line())
	assert.Len(t, cv.LastHistory(), 1)
}
