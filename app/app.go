// Package app wires the console components around one explicit application
// state and exposes the dispatch table every surface drives.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rgq/edabank-console/alerts"
	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/auth"
	"github.com/rgq/edabank-console/chat"
	"github.com/rgq/edabank-console/events"
	"github.com/rgq/edabank-console/session"
	"github.com/rgq/edabank-console/ui"
	"github.com/rgq/edabank-console/users"
)

// App is the console. Every field is owned here; handlers reach state only
// through it.
type App struct {
	cfg     Config
	notify  ui.Notifier
	confirm ui.Confirmer

	Session       *session.Session
	API           *api.Client
	Router        *ui.Router
	Modal         *ui.AuthModal
	Dispatcher    *ui.Dispatcher
	Auth          *auth.Service
	Users         *users.Panel
	History       *events.History
	Publisher     *events.Publisher
	Alerts        *alerts.Viewer
	Chat          *chat.Client
	Conversations *chat.Conversations

	mu     sync.RWMutex
	status map[string]string
}

// New restores the session and builds every component.
func New(ctx context.Context, cfg Config, deps Deps) (*App, error) {
	notify := deps.Notifier
	if notify == nil {
		notify = ui.NotifierFunc(func(ui.Kind, string) {})
	}
	confirm := deps.Confirmer
	if confirm == nil {
		confirm = ui.NeverConfirm
	}

	store := deps.Store
	if store == nil {
		var err error
		if store, err = openStore(cfg); err != nil {
			return nil, fmt.Errorf("open token store: %w", err)
		}
	}
	sess, err := session.Restore(ctx, store)
	if err != nil {
		log.Warn().Err(err).Msg("[console] token not restored")
	}

	var apiOpts []api.Option
	if deps.HTTPClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(deps.HTTPClient))
	}
	apiOpts = append(apiOpts, api.WithTimeout(cfg.HTTPTimeout))
	client, err := api.New(cfg.APIBase, sess, apiOpts...)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}

	dialer := deps.Dialer
	if dialer == nil {
		d, err := chat.NewStompDialer(client.BaseURL(), cfg.WSPaths)
		if err != nil {
			_ = sess.Close()
			return nil, err
		}
		dialer = d
	}

	history := events.NewHistory(cfg.Location)
	var pubOpts []events.PublisherOption
	if deps.Now != nil {
		pubOpts = append(pubOpts, events.WithClock(deps.Now))
	}
	panel := users.NewPanel(client, notify)
	chatOpts := []chat.ClientOption{chat.WithInboxSize(cfg.InboxSize)}
	if deps.OnMessage != nil {
		chatOpts = append(chatOpts, chat.OnMessage(deps.OnMessage))
	}

	a := &App{
		cfg:           cfg,
		notify:        notify,
		confirm:       confirm,
		Session:       sess,
		API:           client,
		Router:        ui.NewRouter(sess.Authenticated),
		Modal:         &ui.AuthModal{},
		Dispatcher:    ui.NewDispatcher(notify),
		Auth:          auth.NewService(client, sess),
		Users:         panel,
		History:       history,
		Publisher:     events.NewPublisher(client, history, notify, pubOpts...),
		Alerts:        alerts.NewViewer(client, history, notify, cfg.Location),
		Chat:          chat.NewClient(dialer, sess, notify, chatOpts...),
		Conversations: chat.NewConversations(client, sess, panel, notify),
		status:        map[string]string{},
	}
	a.hooks()
	a.register()
	return a, nil
}

// Notifier returns the toast sink the app reports to.
func (a *App) Notifier() ui.Notifier { return a.notify }

// Start routes to the view named by fragment ("#users"), running its enter
// hooks.
func (a *App) Start(ctx context.Context, fragment string) error {
	view := ui.ParseFragment(fragment)
	if err := a.Router.Enter(ctx, view); err != nil {
		if errors.Is(err, ui.ErrUnknownView) {
			return a.Router.Enter(ctx, ui.ViewHome)
		}
		return err
	}
	return nil
}

// Dispatch runs one UI event through the dispatch table.
func (a *App) Dispatch(ctx context.Context, component, event string, fields ui.Fields) error {
	return a.Dispatcher.Dispatch(ctx, ui.Event{Key: ui.Key{Component: component, Event: event}, Fields: fields})
}

// Close drops the chat connection and the token store.
func (a *App) Close() error {
	if a.Chat.State() != chat.Disconnected {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = a.Chat.Disconnect(ctx)
		cancel()
	}
	return a.Session.Close()
}

// guard turns a failing enter hook into an error toast and lets navigation
// complete.
func (a *App) guard(label string, fn func(ctx context.Context) error) ui.EnterHook {
	return func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			ui.Error(a.notify, "%s: %v", label, err)
		}
		return nil
	}
}

func (a *App) hooks() {
	a.Router.OnEnter(ui.ViewUsers, a.guard("list users failed", a.Users.List))
	a.Router.OnEnter(ui.ViewChat, a.guard("list conversations failed", func(ctx context.Context) error {
		_, err := a.Conversations.List(ctx)
		return err
	}))
	a.Router.OnEnter(ui.ViewChat, a.guard("load chat users failed", func(ctx context.Context) error {
		_, err := a.Conversations.LoadUsers(ctx)
		return err
	}))
}

// signedIn finishes a successful auth flow: close the modal, show users.
func (a *App) signedIn(ctx context.Context) error {
	a.Modal.Close()
	return a.Router.Enter(ctx, ui.ViewUsers)
}

func (a *App) setStatus(key, value string) {
	a.mu.Lock()
	a.status[key] = value
	a.mu.Unlock()
}
