// Package ui models the console's presentation state (views, navigation,
// auth modal, toasts) and the dispatch table that maps UI events to handlers.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// View names.
const (
	ViewHome   = "home"
	ViewUsers  = "users"
	ViewEvents = "events"
	ViewChat   = "chat"
)

// ErrUnknownView is returned when navigating to a view that does not exist.
var ErrUnknownView = errors.New("unknown view")

// NavItem is one entry of the navigation bar.
type NavItem struct {
	View    string `json:"view"`
	Label   string `json:"label"`
	Active  bool   `json:"active"`
	Visible bool   `json:"visible"`
}

// EnterHook runs after a view becomes visible.
type EnterHook func(ctx context.Context) error

// Router switches the single visible view.
type Router struct {
	mu      sync.RWMutex
	views   []string
	labels  map[string]string
	gated   map[string]bool
	current string
	authed  func() bool
	hooks   map[string][]EnterHook
}

// NewRouter builds a router over the console's four views. authed tells
// whether gated entries are shown.
func NewRouter(authed func() bool) *Router {
	if authed == nil {
		authed = func() bool { return false }
	}
	return &Router{
		views: []string{ViewHome, ViewUsers, ViewEvents, ViewChat},
		labels: map[string]string{
			ViewHome:   "Home",
			ViewUsers:  "Users",
			ViewEvents: "Events",
			ViewChat:   "Chat",
		},
		gated:   map[string]bool{ViewUsers: true, ViewEvents: true, ViewChat: true},
		current: ViewHome,
		authed:  authed,
		hooks:   map[string][]EnterHook{},
	}
}

// OnEnter registers a hook run by Enter for view.
func (r *Router) OnEnter(view string, h EnterHook) {
	r.mu.Lock()
	r.hooks[view] = append(r.hooks[view], h)
	r.mu.Unlock()
}

// ParseFragment turns "#users" (or "users") into a view name, defaulting
// to home.
func ParseFragment(fragment string) string {
	v := strings.TrimPrefix(strings.TrimSpace(fragment), "#")
	if v == "" {
		return ViewHome
	}
	return v
}

// Navigate makes view the visible one without running hooks.
func (r *Router) Navigate(view string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.labels[view]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, view)
	}
	r.current = view
	return nil
}

// Enter navigates to view and runs its enter hooks. Every hook runs; the
// first error is returned.
func (r *Router) Enter(ctx context.Context, view string) error {
	if err := r.Navigate(view); err != nil {
		return err
	}
	r.mu.RLock()
	hooks := append([]EnterHook(nil), r.hooks[view]...)
	r.mu.RUnlock()
	var first error
	for _, h := range hooks {
		if err := h(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Current returns the visible view.
func (r *Router) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Nav returns the navigation entries with the active one marked.
func (r *Router) Nav() []NavItem {
	authed := r.authed()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NavItem, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, NavItem{
			View:    v,
			Label:   r.labels[v],
			Active:  v == r.current,
			Visible: !r.gated[v] || authed,
		})
	}
	return out
}

// LogoutVisible reports whether the logout control is shown.
func (r *Router) LogoutVisible() bool {
	return r.authed()
}
