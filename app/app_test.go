package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/chat"
	"github.com/rgq/edabank-console/session"
	"github.com/rgq/edabank-console/ui"
)

const scenarioToken = "h.eyJzdWIiOiJhQGIuY29tIn0.s"

type upstream struct {
	mu        sync.Mutex
	userLists int
	convLists int
	deletes   int
	auth      []string
}

func (u *upstream) count(n *int) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return *n
}

func (u *upstream) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u.mu.Lock()
			u.auth = append(u.auth, r.Header.Get("Authorization"))
			u.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	writeJSON := func(w http.ResponseWriter, body string) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
	r.Post(api.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		var c map[string]string
		_ = json.NewDecoder(r.Body).Decode(&c)
		if c["password"] != "x" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		writeJSON(w, `{"token":"`+scenarioToken+`"}`)
	})
	r.Get(api.PathUsers, func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.userLists++
		u.mu.Unlock()
		writeJSON(w, `[{"id":1,"email":"a@b.com","firstName":"Ann","lastName":"B","role":"ADMIN"}]`)
	})
	r.Delete(api.PathUsers+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.deletes++
		u.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get(api.PathConversations, func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.convLists++
		u.mu.Unlock()
		writeJSON(w, `[{"id":7}]`)
	})
	r.Get(api.PathAlerts, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `[]`)
	})
	r.Post(api.PathEventsPayment, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"ok":true}`)
	})
	r.Get(api.PathHealth, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"status":"UP"}`)
	})
	return r
}

type nopSub struct{ ch chan chat.Frame }

func (s *nopSub) Frames() <-chan chat.Frame { return s.ch }
func (s *nopSub) Unsubscribe(context.Context) error { close(s.ch); return nil }

type recordingBroker struct {
	mu   sync.Mutex
	sent [][]byte
}

func (b *recordingBroker) Subscribe(context.Context, string) (chat.Subscription, error) {
	return &nopSub{ch: make(chan chat.Frame)}, nil
}

func (b *recordingBroker) Send(_ context.Context, _ string, body []byte, _ map[string]string) error {
	b.mu.Lock()
	b.sent = append(b.sent, body)
	b.mu.Unlock()
	return nil
}

func (b *recordingBroker) Disconnect(context.Context) error { return nil }

func newApp(t *testing.T, store session.Store) (*App, *upstream, *ui.Recorder, *recordingBroker) {
	t.Helper()
	up := &upstream{}
	srv := httptest.NewServer(up.router())
	t.Cleanup(srv.Close)

	if store == nil {
		var err error
		store, err = session.NewStore(session.StoreTypeMemory)
		require.NoError(t, err)
	}
	broker := &recordingBroker{}
	rec := &ui.Recorder{}
	cfg := DefaultConfig()
	cfg.APIBase = srv.URL
	cfg.Location = time.UTC
	a, err := New(context.Background(), cfg, Deps{
		Store:    store,
		Notifier: rec,
		Dialer: chat.DialerFunc(func(context.Context, map[string]string) (chat.Broker, error) {
			return broker, nil
		}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, up, rec, broker
}

func TestLoginClosesModalAndShowsUsers(t *testing.T) {
	a, up, rec, _ := newApp(t, nil)
	ctx := context.Background()
	require.NoError(t, a.Start(ctx, "#home"))

	require.NoError(t, a.Dispatch(ctx, "auth", "open", nil))
	require.NoError(t, a.Dispatch(ctx, "auth", "login", ui.Fields{"email": "a@b.com", "password": "x"}))

	open, _ := a.Modal.State()
	assert.False(t, open)
	assert.Equal(t, ui.ViewUsers, a.Router.Current())
	assert.Equal(t, 1, up.count(&up.userLists))
	assert.Len(t, a.Users.Rows(), 1)

	st := a.Snapshot()
	assert.Equal(t, "a@b.com", st.Email)
	assert.True(t, st.LogoutVisible)

	for _, ts := range rec.Toasts() {
		assert.NotEqual(t, ui.KindError, ts.Kind, ts.Message)
	}
}

func TestLoginFailureToast(t *testing.T) {
	a, _, rec, _ := newApp(t, nil)
	err := a.Dispatch(context.Background(), "auth", "login", ui.Fields{"email": "a@b.com", "password": "nope"})
	require.Error(t, err)
	toasts := rec.Toasts()
	require.NotEmpty(t, toasts)
	last := toasts[len(toasts)-1]
	assert.Equal(t, ui.KindError, last.Kind)
	assert.Equal(t, "login failed: HTTP 401: bad credentials", last.Message)
	assert.Equal(t, ui.ViewHome, a.Router.Current())
}

func TestEnterChatReloadsConversationsAndUsers(t *testing.T) {
	a, up, _, _ := newApp(t, nil)
	require.NoError(t, a.Dispatch(context.Background(), "nav", "go", ui.Fields{"view": "chat"}))
	assert.Equal(t, 1, up.count(&up.convLists))
	assert.Equal(t, 1, up.count(&up.userLists))
	assert.Len(t, a.Conversations.People(), 1)
}

func TestLogoutGoesHome(t *testing.T) {
	a, _, _, _ := newApp(t, nil)
	ctx := context.Background()
	require.NoError(t, a.Dispatch(ctx, "auth", "login", ui.Fields{"email": "a@b.com", "password": "x"}))
	require.NoError(t, a.Dispatch(ctx, "auth", "logout", nil))
	assert.Equal(t, ui.ViewHome, a.Router.Current())
	assert.False(t, a.Session.Authenticated())
	assert.False(t, a.Router.LogoutVisible())
}

func TestTokenRestoredOnStart(t *testing.T) {
	fs := vfs.NewMem()
	store, err := session.NewStore(session.StoreTypePebble, session.WithFS(fs), session.WithDataPath("db"))
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), scenarioToken))

	a, up, _, _ := newApp(t, store)
	require.NoError(t, a.Start(context.Background(), "#users"))
	assert.True(t, a.Session.Authenticated())
	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Contains(t, up.auth, "Bearer "+scenarioToken)
}

func TestDeleteNeverConfirmedOverDispatch(t *testing.T) {
	a, up, _, _ := newApp(t, nil)
	ctx := context.Background()
	require.NoError(t, a.Dispatch(ctx, "users", "delete", ui.Fields{"id": "1"}))
	assert.Zero(t, up.count(&up.deletes))
	require.NoError(t, a.Dispatch(ctx, "users", "delete", ui.Fields{"id": "1", "confirm": "yes"}))
	assert.Equal(t, 1, up.count(&up.deletes))
}

func TestChatSendUsesActiveConversation(t *testing.T) {
	a, _, _, broker := newApp(t, nil)
	ctx := context.Background()

	err := a.Dispatch(ctx, "chat", "send", nil)
	assert.ErrorIs(t, err, chat.ErrNotConnected)

	require.NoError(t, a.Dispatch(ctx, "chat", "connect", nil))
	require.NoError(t, a.Dispatch(ctx, "conversations", "use", ui.Fields{"id": "7"}))
	require.NoError(t, a.Dispatch(ctx, "chat", "send", ui.Fields{"content": "hi"}))

	broker.mu.Lock()
	defer broker.mu.Unlock()
	require.Len(t, broker.sent, 1)
	var m map[string]any
	require.NoError(t, json.Unmarshal(broker.sent[0], &m))
	assert.Equal(t, float64(7), m["conversationId"])
}

func TestEventsViewRender(t *testing.T) {
	a, _, _, _ := newApp(t, nil)
	ctx := context.Background()
	require.NoError(t, a.Dispatch(ctx, "events", "payment", ui.Fields{"amount": "15"}))
	require.NoError(t, a.Dispatch(ctx, "alerts", "broker", nil))
	require.NoError(t, a.Dispatch(ctx, "nav", "go", ui.Fields{"arg0": "events"}))

	var buf bytes.Buffer
	require.NoError(t, a.Render(&buf))
	out := buf.String()
	assert.Contains(t, out, `payment response: {"ok":true}`)
	assert.Contains(t, out, "(no results)")
	assert.Contains(t, out, "read-alerts")
	assert.Contains(t, out, "amount: 15")
	assert.Len(t, a.History.Entries(), 2)
}

func TestSystemHealth(t *testing.T) {
	a, _, rec, _ := newApp(t, nil)
	require.NoError(t, a.Dispatch(context.Background(), "system", "health", nil))
	assert.Equal(t, `{"status":"UP"}`, a.Snapshot().Status["health"])
	assert.NotEmpty(t, rec.Toasts())
}

func TestUnknownEvent(t *testing.T) {
	a, _, _, _ := newApp(t, nil)
	assert.ErrorIs(t, a.Dispatch(context.Background(), "bogus", "x", nil), ui.ErrNoHandler)
}
