package app

import (
	"context"
	"errors"
	"strconv"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/auth"
	"github.com/rgq/edabank-console/chat"
	"github.com/rgq/edabank-console/events"
	"github.com/rgq/edabank-console/ui"
	"github.com/rgq/edabank-console/users"
)

// first returns the first non-empty field among keys.
func first(f ui.Fields, keys ...string) string {
	for _, k := range keys {
		if v := f.Trim(k); v != "" {
			return v
		}
	}
	return ""
}

func (a *App) register() {
	d := a.Dispatcher

	d.HandleHelp("nav", "go", "navigation failed", "view=home|users|events|chat", func(ctx context.Context, ev ui.Event) error {
		return a.Router.Enter(ctx, ui.ParseFragment(first(ev.Fields, "view", "arg0")))
	})

	d.HandleHelp("auth", "open", "open login failed", "", func(context.Context, ui.Event) error {
		a.Modal.Open()
		return nil
	})
	d.HandleHelp("auth", "close", "close login failed", "", func(context.Context, ui.Event) error {
		a.Modal.Close()
		return nil
	})
	d.HandleHelp("auth", "tab", "switch tab failed", "tab=login|register", func(_ context.Context, ev ui.Event) error {
		a.Modal.SwitchTab(first(ev.Fields, "tab", "arg0"))
		return nil
	})
	d.HandleHelp("auth", "login", "login failed", "email= password=", func(ctx context.Context, ev ui.Event) error {
		creds := auth.Credentials{Email: first(ev.Fields, "email", "arg0"), Password: ev.Fields.Get("password")}
		if creds.Password == "" {
			creds.Password = ev.Fields.Get("arg1")
		}
		if err := a.Auth.Login(ctx, creds); err != nil {
			return err
		}
		ui.Success(a.notify, "logged in")
		return a.signedIn(ctx)
	})
	d.HandleHelp("auth", "demo", "demo token failed", "[sub=] [scope=]", func(ctx context.Context, ev ui.Event) error {
		if err := a.Auth.DemoToken(ctx, ev.Fields.Trim("sub"), ev.Fields.Trim("scope")); err != nil {
			return err
		}
		ui.Success(a.notify, "demo token issued")
		return a.signedIn(ctx)
	})
	d.HandleHelp("auth", "register", "registration failed", "email= password= [firstName=] [lastName=] [role=]", func(ctx context.Context, ev ui.Event) error {
		reg := auth.Registration{
			Email:     ev.Fields.Trim("email"),
			Password:  ev.Fields.Get("password"),
			FirstName: ev.Fields.Trim("firstName"),
			LastName:  ev.Fields.Trim("lastName"),
			Role:      ev.Fields.Trim("role"),
		}
		err := a.Auth.Register(ctx, reg)
		if errors.Is(err, auth.ErrAutoLogin) {
			ui.Success(a.notify, "registered")
		}
		if err != nil {
			return err
		}
		ui.Success(a.notify, "registered and logged in")
		return a.signedIn(ctx)
	})
	d.HandleHelp("auth", "logout", "logout failed", "", func(ctx context.Context, _ ui.Event) error {
		err := a.Auth.Logout(ctx)
		ui.Info(a.notify, "logged out")
		if navErr := a.Router.Enter(ctx, ui.ViewHome); navErr != nil {
			return navErr
		}
		return err
	})

	a.registerUsers()
	a.registerEvents()
	a.registerChat()
	a.registerSystem()
}

func (a *App) registerUsers() {
	d := a.Dispatcher
	d.HandleHelp("users", "reload", "list users failed", "", func(ctx context.Context, _ ui.Event) error {
		return a.Users.List(ctx)
	})
	d.HandleHelp("users", "create", "create user failed", "email= firstName= lastName= role= password=", func(ctx context.Context, ev ui.Event) error {
		return a.Users.Create(ctx, users.FormFromFields(ev.Fields))
	})
	d.HandleHelp("users", "update", "update user failed", "id= email= firstName= lastName= role= password=", func(ctx context.Context, ev ui.Event) error {
		return a.Users.Update(ctx, users.FormFromFields(ev.Fields))
	})
	d.HandleHelp("users", "delete", "delete user failed", "id= [confirm=yes]", func(ctx context.Context, ev ui.Event) error {
		_, err := a.Users.Delete(ctx, first(ev.Fields, "id", "arg0"), ui.FieldConfirmer{Fields: ev.Fields, Fallback: a.confirm})
		return err
	})
	d.HandleHelp("users", "edit", "edit user failed", "id=", func(_ context.Context, ev ui.Event) error {
		_, err := a.Users.Edit(first(ev.Fields, "id", "arg0"))
		return err
	})
	d.HandleHelp("users", "clear", "clear form failed", "", func(context.Context, ui.Event) error {
		a.Users.ClearForm()
		return nil
	})
}

func (a *App) registerEvents() {
	d := a.Dispatcher
	publish := func(kind events.Kind) ui.Handler {
		return func(ctx context.Context, ev ui.Event) error {
			_, err := a.Publisher.Publish(ctx, kind, first(ev.Fields, "amount", "arg0"))
			return err
		}
	}
	d.HandleHelp("events", "payment", "publish payment failed", "amount=", publish(events.KindPayment))
	d.HandleHelp("events", "transfer", "publish transfer failed", "amount=", publish(events.KindTransfer))
	d.HandleHelp("alerts", "broker", "read broker alerts failed", "", func(ctx context.Context, _ ui.Event) error {
		_, err := a.Alerts.ReadBroker(ctx)
		return err
	})
	d.HandleHelp("alerts", "database", "read database alerts failed", "", func(ctx context.Context, _ ui.Event) error {
		_, err := a.Alerts.ReadDatabase(ctx)
		return err
	})
}

func (a *App) registerChat() {
	d := a.Dispatcher
	d.HandleHelp("chat", "connect", "chat connection failed", "", func(ctx context.Context, _ ui.Event) error {
		return a.Chat.Connect(ctx)
	})
	d.HandleHelp("chat", "disconnect", "chat disconnect failed", "", func(ctx context.Context, _ ui.Event) error {
		return a.Chat.Disconnect(ctx)
	})
	d.HandleHelp("chat", "send", "send message failed", "[content=] [sender=] [type=] [conversationId=]", func(ctx context.Context, ev ui.Event) error {
		req := chat.SendRequest{
			Content: ev.Fields.Get("content"),
			Sender:  ev.Fields.Trim("sender"),
			Type:    chat.MessageType(ev.Fields.Trim("type")),
		}
		if s := ev.Fields.Trim("conversationId"); s != "" {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return err
			}
			req.ConversationID = &id
		}
		_, err := a.Chat.Send(ctx, req)
		return err
	})
	d.HandleHelp("chat", "clear", "clear messages failed", "", func(context.Context, ui.Event) error {
		a.Chat.ClearInbox()
		return nil
	})
	d.HandleHelp("chat", "users", "load chat users failed", "", func(ctx context.Context, _ ui.Event) error {
		_, err := a.Conversations.LoadUsers(ctx)
		return err
	})

	d.HandleHelp("conversations", "reload", "list conversations failed", "", func(ctx context.Context, _ ui.Event) error {
		_, err := a.Conversations.List(ctx)
		return err
	})
	d.HandleHelp("conversations", "use", "select conversation failed", "id=", func(_ context.Context, ev ui.Event) error {
		return a.Conversations.Select(first(ev.Fields, "id", "arg0"))
	})
	d.HandleHelp("conversations", "new", "create conversation failed", "", func(ctx context.Context, _ ui.Event) error {
		_, err := a.Conversations.Create(ctx)
		return err
	})
	d.HandleHelp("conversations", "with-user", "create conversation with user failed", "userId= [label=]", func(ctx context.Context, ev ui.Event) error {
		_, err := a.Conversations.CreateWithUser(ctx, first(ev.Fields, "userId", "arg0"), ev.Fields.Trim("label"))
		return err
	})
	d.HandleHelp("conversations", "copy", "copy failed", "", func(context.Context, ui.Event) error {
		id, err := a.Conversations.CopyCurrentID()
		if err != nil {
			return err
		}
		a.setStatus("clipboard", id)
		ui.Success(a.notify, "conversation id: %s", id)
		return nil
	})
	d.HandleHelp("conversations", "history", "load messages failed", "[id=]", func(ctx context.Context, ev ui.Event) error {
		s := first(ev.Fields, "id", "arg0")
		var id int64
		if s == "" {
			cur, ok := a.Session.Conversation()
			if !ok {
				return chat.ErrNoConversation
			}
			id = cur
		} else {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return err
			}
			id = n
		}
		list, err := a.Conversations.History(ctx, id)
		if err != nil {
			return err
		}
		ui.Info(a.notify, "%d messages in conversation %d", len(list), id)
		return nil
	})
}

func (a *App) registerSystem() {
	d := a.Dispatcher
	probe := func(key, path string) ui.Handler {
		return func(ctx context.Context, _ ui.Event) error {
			resp, err := a.API.Get(ctx, path)
			if err != nil {
				a.setStatus(key, err.Error())
				return err
			}
			a.setStatus(key, resp.Text())
			ui.Info(a.notify, "%s: %s", key, resp.Text())
			return nil
		}
	}
	d.HandleHelp("system", "health", "health check failed", "", probe("health", api.PathHealth))
	d.HandleHelp("system", "failover", "failover status failed", "", probe("failover", api.PathFailover))
}
