// Package events publishes synthetic payment and transfer events and keeps
// the shared history of console activity.
package events

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/ui"
)

// Kind is the event type tag.
type Kind string

const (
	KindPayment  Kind = "payment"
	KindTransfer Kind = "transfer"
)

// ParseKind accepts "payment" or "transfer".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPayment, KindTransfer:
		return k, nil
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

func (k Kind) path() string {
	if k == KindTransfer {
		return api.PathEventsTransfer
	}
	return api.PathEventsPayment
}

// Event is the body posted to the ingestion endpoint.
type Event struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	Amount    float64 `json:"amount"`
	Type      Kind    `json:"type"`
	Timestamp int64   `json:"timestamp"`
}

// ParseAmount reads a decimal amount; empty or invalid input is 0.
func ParseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// PublisherOption customises a Publisher.
type PublisherOption func(*Publisher)

// WithIDs replaces the uuid generator.
func WithIDs(fn func() string) PublisherOption {
	return func(p *Publisher) { p.newID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) PublisherOption {
	return func(p *Publisher) { p.now = fn }
}

// Publisher posts events and records them in the history.
type Publisher struct {
	client  *api.Client
	history *History
	notify  ui.Notifier
	newID   func() string
	now     func() time.Time

	mu     sync.RWMutex
	output map[Kind]string
}

func NewPublisher(client *api.Client, history *History, notify ui.Notifier, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client:  client,
		history: history,
		notify:  notify,
		newID:   func() string { return uuid.NewString() },
		now:     time.Now,
		output:  map[Kind]string{},
	}
	if p.notify == nil {
		p.notify = ui.NotifierFunc(func(ui.Kind, string) {})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Build makes a fresh event of kind for amountInput.
func (p *Publisher) Build(kind Kind, amountInput string) Event {
	return Event{
		ID:        p.newID(),
		UserID:    p.newID(),
		Amount:    ParseAmount(amountInput),
		Type:      kind,
		Timestamp: p.now().Unix(),
	}
}

// Publish posts a new event. On success the response text is kept as the
// kind's output and a history entry is added.
func (p *Publisher) Publish(ctx context.Context, kind Kind, amountInput string) (Event, error) {
	ev := p.Build(kind, amountInput)
	resp, err := p.client.Post(ctx, kind.path(), ev)
	if err != nil {
		return ev, err
	}
	p.mu.Lock()
	p.output[kind] = resp.Text()
	p.mu.Unlock()

	amount := ev.Amount
	p.history.Add(Entry{Kind: string(kind), Amount: &amount, ID: ev.ID})
	log.Debug().Str("id", ev.ID).Str("type", string(kind)).Msg("[events] published")
	ui.Success(p.notify, "%s published", kind)
	return ev, nil
}

// Output returns the last response shown for kind.
func (p *Publisher) Output(kind Kind) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.output[kind]
}
