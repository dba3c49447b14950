package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/ui"
)

func TestHistoryCapNewestFirst(t *testing.T) {
	h := NewHistory(time.UTC)
	for i := 0; i < 25; i++ {
		h.Add(Entry{Kind: "payment", ID: fmt.Sprintf("id-%02d", i)})
	}
	entries := h.Entries()
	require.Len(t, entries, HistoryCap)
	assert.Equal(t, "id-24", entries[0].ID)
	assert.Equal(t, "id-05", entries[HistoryCap-1].ID)
}

func TestHistoryRender(t *testing.T) {
	h := NewHistory(time.UTC)
	h.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	amount := 12.5
	count := 3
	h.Add(Entry{Kind: "payment", Amount: &amount, ID: "0123456789abcdef"})
	h.Add(Entry{Type: "read-alerts", Source: "broker", Count: &count})
	h.Add(Entry{})

	var buf bytes.Buffer
	require.NoError(t, h.Render(&buf))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "2024-03-01 10:00:00 · event", lines[0])
	assert.Equal(t, "  -", lines[1])
	assert.Equal(t, "2024-03-01 10:00:00 · read-alerts", lines[2])
	assert.Equal(t, "  items: 3", lines[3])
	assert.Equal(t, "2024-03-01 10:00:00 · payment", lines[4])
	assert.Equal(t, "  amount: 12.5 · id: 01234567", lines[5])
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, 15.0, ParseAmount("15"))
	assert.Equal(t, 2.75, ParseAmount(" 2.75 "))
	assert.Zero(t, ParseAmount(""))
	assert.Zero(t, ParseAmount("abc"))
	assert.Zero(t, ParseAmount("NaN"))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Transfer")
	require.NoError(t, err)
	assert.Equal(t, KindTransfer, k)
	_, err = ParseKind("refund")
	assert.Error(t, err)
}

func TestPublishPostsAndRecords(t *testing.T) {
	var got Event
	var gotPath string
	r := chi.NewRouter()
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{\n  \"status\": \"accepted\"\n}"))
	}
	r.Post(api.PathEventsPayment, handler)
	r.Post(api.PathEventsTransfer, handler)
	srv := httptest.NewServer(r)
	defer srv.Close()

	c, err := api.New(srv.URL, nil)
	require.NoError(t, err)
	h := NewHistory(time.UTC)
	rec := &ui.Recorder{}
	n := 0
	p := NewPublisher(c, h, rec,
		WithIDs(func() string { n++; return fmt.Sprintf("uuid-%d-0000", n) }),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)

	ev, err := p.Publish(context.Background(), KindTransfer, "40")
	require.NoError(t, err)
	assert.Equal(t, api.PathEventsTransfer, gotPath)
	assert.Equal(t, ev, got)
	assert.Equal(t, Event{ID: "uuid-1-0000", UserID: "uuid-2-0000", Amount: 40, Type: KindTransfer, Timestamp: 1700000000}, got)
	assert.Equal(t, `{"status":"accepted"}`, p.Output(KindTransfer))
	assert.Empty(t, p.Output(KindPayment))

	entries := h.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "transfer", entries[0].Kind)
	require.NotNil(t, entries[0].Amount)
	assert.Equal(t, 40.0, *entries[0].Amount)
	assert.Equal(t, "uuid-1-0000", entries[0].ID)

	toasts := rec.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, ui.KindSuccess, toasts[0].Kind)
}

func TestPublishFailureLeavesHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broker down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c, err := api.New(srv.URL, nil)
	require.NoError(t, err)
	h := NewHistory(nil)
	p := NewPublisher(c, h, nil)

	ev, err := p.Publish(context.Background(), KindPayment, "oops")
	require.Error(t, err)
	assert.Zero(t, ev.Amount)
	assert.Equal(t, http.StatusServiceUnavailable, api.StatusOf(err))
	assert.Zero(t, h.Len())
}
