package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/app"
	"github.com/rgq/edabank-console/session"
	"github.com/rgq/edabank-console/ui"
)

func newSurface(t *testing.T) (*httptest.Server, *hub) {
	t.Helper()
	up := chi.NewRouter()
	up.Get(api.PathHealth, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"UP"}`))
	})
	backend := httptest.NewServer(up)
	t.Cleanup(backend.Close)

	store, err := session.NewStore(session.StoreTypeMemory)
	require.NoError(t, err)
	cfg := app.DefaultConfig()
	cfg.APIBase = backend.URL
	cfg.Location = time.UTC

	h := newHub()
	tp := &tap{}
	a, err := app.New(context.Background(), cfg, app.Deps{Store: store, Notifier: ui.Multi{h, tp}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(NewHandler(a, h, tp))
	t.Cleanup(srv.Close)
	return srv, h
}

func postDispatch(t *testing.T, base, path, body string) (int, dispatchResult) {
	t.Helper()
	resp, err := http.Post(base+"/api/dispatch/"+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var res dispatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return resp.StatusCode, res
}

func TestHealthz(t *testing.T) {
	srv, _ := newSurface(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDispatchReturnsToasts(t *testing.T) {
	srv, _ := newSurface(t)

	status, res := postDispatch(t, srv.URL, "system/health", "")
	assert.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, res.Toasts)
	assert.Empty(t, res.Error)

	status, res = postDispatch(t, srv.URL, "nav/go", `{"view":"events"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, ui.ViewEvents, res.View)
}

func TestDispatchUnknownEvent(t *testing.T) {
	srv, _ := newSurface(t)
	status, res := postDispatch(t, srv.URL, "bogus/x", "{}")
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Toasts)
}

func TestDispatchRejectsNonObject(t *testing.T) {
	srv, _ := newSurface(t)
	resp, err := http.Post(srv.URL+"/api/dispatch/system/health", "application/json", strings.NewReader(`[1]`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStateAndView(t *testing.T) {
	srv, _ := newSurface(t)

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	var st app.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.Equal(t, ui.ViewHome, st.View)
	assert.False(t, st.Authenticated)

	resp, err = http.Get(srv.URL + "/api/view")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	assert.NotEmpty(t, body)
}

func TestWebSocketStreamsToasts(t *testing.T) {
	srv, _ := newSurface(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	status, _ := postDispatch(t, srv.URL, "system/health", "")
	require.Equal(t, http.StatusOK, status)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var u update
	require.NoError(t, conn.ReadJSON(&u))
	assert.Equal(t, "toast", u.Type)
	require.NotNil(t, u.Toast)
	assert.NotEmpty(t, u.Toast.Message)
}

