package events

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rgq/edabank-console/ui"
)

// HistoryCap bounds the history ring.
const HistoryCap = 20

// Entry is one history line: a published event or an alert read.
type Entry struct {
	Kind   string   `json:"kind,omitempty"`
	Type   string   `json:"type,omitempty"`
	Source string   `json:"source,omitempty"`
	Amount *float64 `json:"amount,omitempty"`
	Count  *int     `json:"count,omitempty"`
	ID     string   `json:"id,omitempty"`
	Time   int64    `json:"time"`
}

// Label is the entry kind, falling back to its type, then its source.
func (e Entry) Label() string {
	for _, s := range []string{e.Kind, e.Type, e.Source} {
		if s != "" {
			return s
		}
	}
	return "event"
}

// Details renders amount, count and short id, or "-" when none is set.
func (e Entry) Details() string {
	var parts []string
	if e.Amount != nil {
		parts = append(parts, "amount: "+ui.FormatNumber(*e.Amount))
	}
	if e.Count != nil {
		parts = append(parts, fmt.Sprintf("items: %d", *e.Count))
	}
	if e.ID != "" {
		parts = append(parts, "id: "+ui.Short(e.ID, 8))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " · ")
}

// History keeps the newest HistoryCap entries, newest first.
type History struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
	loc     *time.Location
}

// NewHistory returns an empty ring rendering times in loc.
func NewHistory(loc *time.Location) *History {
	return &History{now: time.Now, loc: loc}
}

// Add stamps e with the current time and puts it at the front, dropping
// the oldest entry beyond the cap.
func (h *History) Add(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e.Time = h.now().UnixMilli()
	h.entries = append([]Entry{e}, h.entries...)
	if len(h.entries) > HistoryCap {
		h.entries = h.entries[:HistoryCap]
	}
}

// Entries returns a copy, newest first.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Entry(nil), h.entries...)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Render writes two lines per entry: "time · kind" then the details.
func (h *History) Render(w io.Writer) error {
	for _, e := range h.Entries() {
		if _, err := fmt.Fprintf(w, "%s · %s\n  %s\n", ui.FormatMillis(e.Time, h.loc), e.Label(), e.Details()); err != nil {
			return err
		}
	}
	return nil
}
