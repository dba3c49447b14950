package app

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rgq/edabank-console/alerts"
	"github.com/rgq/edabank-console/chat"
	"github.com/rgq/edabank-console/events"
	"github.com/rgq/edabank-console/ui"
	"github.com/rgq/edabank-console/users"
)

// ModalState is the auth modal in a snapshot.
type ModalState struct {
	Open bool   `json:"open"`
	Tab  string `json:"tab"`
}

// ChatState is the chat view in a snapshot.
type ChatState struct {
	State         string              `json:"state"`
	Conversation  *int64              `json:"conversationId"`
	Conversations []chat.Conversation `json:"conversations"`
	Users         []users.Option      `json:"users"`
	Messages      []chat.Message      `json:"messages"`
}

// State is a JSON-friendly snapshot of everything the views show.
type State struct {
	View          string            `json:"view"`
	Nav           []ui.NavItem      `json:"nav"`
	LogoutVisible bool              `json:"logoutVisible"`
	Authenticated bool              `json:"authenticated"`
	Email         string            `json:"email,omitempty"`
	ExpiresAt     *time.Time        `json:"expiresAt,omitempty"`
	Modal         ModalState        `json:"modal"`
	Users         []users.User      `json:"users"`
	Form          users.Form        `json:"form"`
	History       []events.Entry    `json:"history"`
	Outputs       map[string]string `json:"outputs"`
	Alerts        []string          `json:"alerts,omitempty"`
	Chat          ChatState         `json:"chat"`
	Status        map[string]string `json:"status,omitempty"`
}

// Snapshot captures the current state.
func (a *App) Snapshot() State {
	open, tab := a.Modal.State()
	st := State{
		View:          a.Router.Current(),
		Nav:           a.Router.Nav(),
		LogoutVisible: a.Router.LogoutVisible(),
		Authenticated: a.Session.Authenticated(),
		Modal:         ModalState{Open: open, Tab: tab},
		Users:         a.Users.Rows(),
		Form:          a.Users.Form(),
		History:       a.History.Entries(),
		Outputs: map[string]string{
			string(events.KindPayment):  a.Publisher.Output(events.KindPayment),
			string(events.KindTransfer): a.Publisher.Output(events.KindTransfer),
		},
		Chat: ChatState{
			State:         a.Chat.State().String(),
			Conversations: a.Conversations.Options(),
			Users:         a.Conversations.People(),
			Messages:      a.Chat.Inbox(),
		},
	}
	if email, ok := a.Session.Email(); ok {
		st.Email = email
	}
	if exp, ok := a.Session.ExpiresAt(); ok {
		st.ExpiresAt = &exp
	}
	if id, ok := a.Session.Conversation(); ok {
		st.Chat.Conversation = &id
	}
	if res, ok := a.Alerts.Last(); ok {
		st.Alerts = alerts.Lines(res.Alerts, a.cfg.Location)
	}
	a.mu.RLock()
	if len(a.status) > 0 {
		st.Status = make(map[string]string, len(a.status))
		for k, v := range a.status {
			st.Status[k] = v
		}
	}
	a.mu.RUnlock()
	return st
}

// Render writes the navigation bar and the current view as text.
func (a *App) Render(w io.Writer) error {
	var b strings.Builder
	a.renderNav(&b)
	switch a.Router.Current() {
	case ui.ViewUsers:
		if err := a.Users.Render(&b); err != nil {
			return err
		}
	case ui.ViewEvents:
		a.renderEvents(&b)
	case ui.ViewChat:
		a.renderChat(&b)
	default:
		a.renderHome(&b)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (a *App) renderNav(b *strings.Builder) {
	var items []string
	for _, n := range a.Router.Nav() {
		if !n.Visible {
			continue
		}
		label := n.Label
		if n.Active {
			label = "[" + label + "]"
		}
		items = append(items, label)
	}
	if a.Router.LogoutVisible() {
		items = append(items, "Logout")
	}
	fmt.Fprintf(b, "%s\n", strings.Join(items, "  "))
	if open, tab := a.Modal.State(); open {
		fmt.Fprintf(b, "auth dialog open (%s)\n", tab)
	}
	b.WriteString("\n")
}

func (a *App) renderHome(b *strings.Builder) {
	b.WriteString("EDA bank console\n")
	if !a.Session.Authenticated() {
		b.WriteString("not signed in: auth.open, auth.login email= password=, auth.demo\n")
		return
	}
	fmt.Fprintf(b, "signed in as %s\n", a.Session.EmailOr("(unknown)"))
	if exp, ok := a.Session.ExpiresAt(); ok {
		fmt.Fprintf(b, "token expires %s\n", exp.In(a.location()).Format(ui.TimeLayout))
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.status))
	for k := range a.status {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s: %s\n", k, a.status[k])
	}
}

func (a *App) renderEvents(b *strings.Builder) {
	for _, k := range []events.Kind{events.KindPayment, events.KindTransfer} {
		out := a.Publisher.Output(k)
		if out == "" {
			out = "-"
		}
		fmt.Fprintf(b, "%s response: %s\n", k, out)
	}
	b.WriteString("\n")
	_ = a.Alerts.Render(b)
	b.WriteString("history:\n")
	if a.History.Len() == 0 {
		b.WriteString("  (empty)\n")
		return
	}
	_ = a.History.Render(b)
}

func (a *App) renderChat(b *strings.Builder) {
	fmt.Fprintf(b, "chat: %s · conversation %s\n", a.Chat.State(), a.Conversations.Current())
	if opts := a.Conversations.Options(); len(opts) > 0 {
		labels := make([]string, 0, len(opts))
		for _, c := range opts {
			labels = append(labels, c.Label())
		}
		fmt.Fprintf(b, "conversations: %s\n", strings.Join(labels, ", "))
	}
	if people := a.Conversations.People(); len(people) > 0 {
		labels := make([]string, 0, len(people))
		for _, p := range people {
			labels = append(labels, p.Value+"="+p.Label)
		}
		fmt.Fprintf(b, "users: %s\n", strings.Join(labels, ", "))
	}
	if hist := a.Conversations.LastHistory(); len(hist) > 0 {
		b.WriteString("history:\n")
		for _, m := range hist {
			fmt.Fprintf(b, "  %s\n", m.Line())
		}
	}
	b.WriteString("messages:\n")
	msgs := a.Chat.Inbox()
	if len(msgs) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, m := range msgs {
		fmt.Fprintf(b, "  %s\n", m.Line())
	}
}

func (a *App) location() *time.Location {
	if a.cfg.Location != nil {
		return a.cfg.Location
	}
	return time.Local
}
