package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/app"
	"github.com/rgq/edabank-console/session"
	"github.com/rgq/edabank-console/ui"
)

type usersBackend struct {
	mu      sync.Mutex
	lists   int
	deletes []string
}

func (b *usersBackend) router() http.Handler {
	r := chi.NewRouter()
	r.Get(api.PathUsers, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.lists++
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"email":"a@b.com","firstName":"Ann","lastName":"B","role":"ADMIN"}]`))
	})
	r.Delete(api.PathUsers+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.deletes = append(b.deletes, chi.URLParam(r, "id"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func (b *usersBackend) counts() (int, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lists, append([]string(nil), b.deletes...)
}

// newConsole builds an app whose confirmations read answers from the
// returned channel, as the REPL does with stdin lines.
func newConsole(t *testing.T) (*app.App, *usersBackend, *ui.Recorder, chan string, *bytes.Buffer) {
	t.Helper()
	b := &usersBackend{}
	srv := httptest.NewServer(b.router())
	t.Cleanup(srv.Close)

	store, err := session.NewStore(session.StoreTypeMemory)
	require.NoError(t, err)
	cfg := app.DefaultConfig()
	cfg.APIBase = srv.URL
	cfg.Location = time.UTC

	answers := make(chan string, 1)
	out := &bytes.Buffer{}
	rec := &ui.Recorder{}
	a, err := app.New(context.Background(), cfg, app.Deps{
		Store:     store,
		Notifier:  rec,
		Confirmer: &lineConfirmer{lines: answers, out: out},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, b, rec, answers, out
}

func TestRunLineFragmentEntersView(t *testing.T) {
	a, b, _, _, out := newConsole(t)
	quit, err := runLine(context.Background(), a, out, "#users")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, ui.ViewUsers, a.Router.Current())
	lists, _ := b.counts()
	assert.Equal(t, 1, lists)
	assert.Contains(t, out.String(), "a@b.com")
}

func TestRunLineDeleteConfirmed(t *testing.T) {
	a, b, _, answers, out := newConsole(t)
	answers <- "y"
	_, err := runLine(context.Background(), a, out, "users.delete id=1")
	require.NoError(t, err)
	_, deletes := b.counts()
	assert.Equal(t, []string{"1"}, deletes)
	assert.Contains(t, out.String(), "Delete user 1? [y/N]")
}

func TestRunLineDeleteDeclined(t *testing.T) {
	a, b, rec, answers, out := newConsole(t)
	answers <- "n"
	_, err := runLine(context.Background(), a, out, "users.delete 1")
	require.NoError(t, err)
	lists, deletes := b.counts()
	assert.Empty(t, deletes)
	assert.Zero(t, lists)
	assert.Empty(t, rec.Toasts())
}

func TestRunLineUnknownCommand(t *testing.T) {
	for _, line := range []string{"bogus.x", "nonsense"} {
		t.Run(line, func(t *testing.T) {
			a, _, rec, _, out := newConsole(t)
			_, err := runLine(context.Background(), a, out, line)
			require.Error(t, err)
			toasts := rec.Toasts()
			require.Len(t, toasts, 1)
			assert.Equal(t, ui.KindError, toasts[0].Kind)
			assert.Contains(t, toasts[0].Message, "unknown command")
		})
	}
}

func TestRunLineQuitAndBlank(t *testing.T) {
	a, _, rec, _, out := newConsole(t)
	quit, err := runLine(context.Background(), a, out, "   ")
	require.NoError(t, err)
	assert.False(t, quit)

	quit, err = runLine(context.Background(), a, out, "exit")
	require.NoError(t, err)
	assert.True(t, quit)
	assert.Empty(t, rec.Toasts())
}

func TestLineConfirmerStopsOnClosedInput(t *testing.T) {
	lines := make(chan string)
	close(lines)
	c := &lineConfirmer{lines: lines, out: &bytes.Buffer{}}
	assert.False(t, c.Confirm(context.Background(), "Delete?"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, (&lineConfirmer{lines: make(chan string), out: &bytes.Buffer{}}).Confirm(ctx, "Delete?"))
}
