package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/rgq/edabank-console/app"
	"github.com/rgq/edabank-console/chat"
	"github.com/rgq/edabank-console/ui"
)

// maxFieldsBody bounds a dispatch request body.
const maxFieldsBody = 64 << 10

// writeJSON writes v as one websocket text message without HTML escaping.
func writeJSON(conn *websocket.Conn, v any) error {
	w, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return w.Close()
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Debug().Err(err).Msg("[serve] write response")
	}
}

// update is one item pushed to websocket clients.
type update struct {
	Type    string        `json:"type"` // "toast" | "message"
	Toast   *ui.Toast     `json:"toast,omitempty"`
	Message *chat.Message `json:"message,omitempty"`
}

// hub fans toasts and chat messages out to websocket clients and keeps a
// short backlog for late joiners.
type hub struct {
	mu         sync.RWMutex
	backlog    []update
	maxBacklog int
	conns      map[*websocket.Conn]*sync.Mutex // per-connection write locks
	wg         sync.WaitGroup
}

func newHub() *hub {
	return &hub{
		backlog:    make([]update, 0, 64),
		maxBacklog: 100,
		conns:      map[*websocket.Conn]*sync.Mutex{},
	}
}

// Notify implements ui.Notifier.
func (h *hub) Notify(kind ui.Kind, message string) {
	h.broadcast(update{Type: "toast", Toast: &ui.Toast{Kind: kind, Message: message, At: time.Now().UTC()}})
}

func (h *hub) message(m chat.Message) {
	h.broadcast(update{Type: "message", Message: &m})
}

func (h *hub) broadcast(u update) {
	h.mu.Lock()
	h.backlog = append(h.backlog, u)
	if h.maxBacklog > 0 && len(h.backlog) > h.maxBacklog {
		copy(h.backlog, h.backlog[len(h.backlog)-h.maxBacklog:])
		h.backlog = h.backlog[:h.maxBacklog]
	}
	type target struct {
		c  *websocket.Conn
		mu *sync.Mutex
	}
	targets := make([]target, 0, len(h.conns))
	for c, mu := range h.conns {
		targets = append(targets, target{c, mu})
	}
	h.mu.Unlock()

	for _, t := range targets {
		t.mu.Lock()
		_ = t.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := writeJSON(t.c, u); err != nil {
			log.Debug().Err(err).Msg("[serve] push update")
		}
		t.mu.Unlock()
	}
}

// closeAll sends a going-away close frame to every client.
func (h *hub) closeAll() {
	h.mu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.conns))
	for c, mu := range h.conns {
		conns[c] = mu
	}
	h.mu.RUnlock()
	for c, mu := range conns {
		mu.Lock()
		_ = c.SetWriteDeadline(time.Now().Add(10 * time.Second))
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
		mu.Unlock()
	}
}

func (h *hub) wait() { h.wg.Wait() }

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin:      func(r *http.Request) bool { return true },
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	mu := &sync.Mutex{}
	h.mu.Lock()
	h.conns[conn] = mu
	backlog := append([]update(nil), h.backlog...)
	h.mu.Unlock()

	mu.Lock()
	for _, u := range backlog {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		_ = writeJSON(conn, u)
	}
	mu.Unlock()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				mu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	h.wg.Add(1)
	defer func() {
		close(done)
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		mu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
		mu.Unlock()
		h.wg.Done()
	}()
	// clients only listen; reads keep the deadline and pongs flowing
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if _, _, err := conn.NextReader(); err != nil {
			log.Debug().Err(err).Msg("[serve] websocket closed")
			return
		}
	}
}

// tap collects the toasts raised while one HTTP dispatch runs.
type tap struct {
	serial sync.Mutex
	mu     sync.Mutex
	rec    *ui.Recorder
}

// Notify implements ui.Notifier.
func (t *tap) Notify(kind ui.Kind, message string) {
	t.mu.Lock()
	rec := t.rec
	t.mu.Unlock()
	if rec != nil {
		rec.Notify(kind, message)
	}
}

func (t *tap) capture(fn func() error) ([]ui.Toast, error) {
	t.serial.Lock()
	defer t.serial.Unlock()
	rec := &ui.Recorder{}
	t.mu.Lock()
	t.rec = rec
	t.mu.Unlock()
	err := fn()
	t.mu.Lock()
	t.rec = nil
	t.mu.Unlock()
	return rec.Toasts(), err
}

type dispatchResult struct {
	View   string     `json:"view"`
	Toasts []ui.Toast `json:"toasts"`
	Error  string     `json:"error,omitempty"`
}

// NewHandler exposes the console state and dispatch table over HTTP.
func NewHandler(a *app.App, h *hub, t *tap) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/api/state", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, a.Snapshot())
	})

	r.Get("/api/view", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		if err := a.Render(&b); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, b.String())
	})

	r.Post("/api/dispatch/{component}/{event}", func(w http.ResponseWriter, r *http.Request) {
		fields := ui.Fields{}
		body := http.MaxBytesReader(w, r.Body, maxFieldsBody)
		if err := json.NewDecoder(body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "fields must be a JSON object of strings", http.StatusBadRequest)
			return
		}
		component, event := chi.URLParam(r, "component"), chi.URLParam(r, "event")
		toasts, err := t.capture(func() error {
			return a.Dispatch(r.Context(), component, event, fields)
		})
		res := dispatchResult{View: a.Router.Current(), Toasts: toasts}
		status := http.StatusOK
		if err != nil {
			res.Error = err.Error()
			status = http.StatusUnprocessableEntity
			if errors.Is(err, ui.ErrNoHandler) {
				status = http.StatusNotFound
			}
		}
		respondJSON(w, status, res)
	})

	r.Get("/ws", h.handleWS)
	return r
}
