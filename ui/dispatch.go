package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNoHandler is returned for an event nobody registered.
var ErrNoHandler = errors.New("no handler")

// Key identifies a UI event: which component raised it and what happened.
type Key struct {
	Component string
	Event     string
}

func (k Key) String() string { return k.Component + "." + k.Event }

// ParseKey splits "component.event".
func ParseKey(s string) (Key, bool) {
	comp, ev, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || comp == "" || ev == "" {
		return Key{}, false
	}
	return Key{Component: comp, Event: ev}, true
}

// Event is one UI event with its form fields.
type Event struct {
	Key
	Fields Fields
}

// Handler reacts to an event. Success toasts are the handler's business;
// a returned error becomes an error toast.
type Handler func(ctx context.Context, ev Event) error

type entry struct {
	label   string
	handler Handler
	help    string
}

// Dispatcher is the table mapping (component, event) to handlers.
// Dispatch calls are serialised: handlers never run in parallel.
type Dispatcher struct {
	run      sync.Mutex
	mu       sync.RWMutex
	handlers map[Key]entry
	notify   Notifier
}

// NewDispatcher reports handler failures to notify.
func NewDispatcher(notify Notifier) *Dispatcher {
	return &Dispatcher{handlers: map[Key]entry{}, notify: notify}
}

// Handle registers h for component.event. label names the action in
// failure toasts ("<label>: <error>").
func (d *Dispatcher) Handle(component, event, label string, h Handler) {
	d.HandleHelp(component, event, label, "", h)
}

// HandleHelp is Handle with a one-line usage string.
func (d *Dispatcher) HandleHelp(component, event, label, help string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[Key{Component: component, Event: event}] = entry{label: label, handler: h, help: help}
}

// Has reports whether component.event is registered.
func (d *Dispatcher) Has(k Key) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[k]
	return ok
}

// Dispatch runs the handler for ev. Handler errors are turned into an error
// toast and also returned so non-interactive callers can exit non-zero.
// ErrNoHandler is returned without a toast.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	e, ok := d.handlers[ev.Key]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w for %s", ErrNoHandler, ev.Key)
	}
	if ev.Fields == nil {
		ev.Fields = Fields{}
	}

	d.run.Lock()
	defer d.run.Unlock()
	if err := e.handler(ctx, ev); err != nil {
		log.Debug().Err(err).Str("event", ev.Key.String()).Msg("[ui] handler failed")
		if d.notify != nil {
			Error(d.notify, "%s: %v", e.label, err)
		}
		return err
	}
	return nil
}

// Usage lists registered events sorted by key.
func (d *Dispatcher) Usage() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for k, e := range d.handlers {
		line := k.String()
		if e.help != "" {
			line += "  " + e.help
		}
		out = append(out, line)
	}
	sort.Strings(out)
	return out
}
