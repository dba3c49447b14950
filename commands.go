package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rgq/edabank-console/app"
	"github.com/rgq/edabank-console/ui"
)

// oneShot runs fn against a fresh app and closes it afterwards.
func oneShot(fn func(ctx context.Context, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		a, err := newApp(ctx, app.Deps{})
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, args)
	}
}

// dispatchThen runs component.event with fields and renders the view.
func dispatchThen(ctx context.Context, a *app.App, component, event string, fields ui.Fields) error {
	if err := a.Dispatch(ctx, component, event, fields); err != nil {
		return err
	}
	return a.Render(os.Stdout)
}

func addOneShots(root *cobra.Command) {
	var email, password string
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token",
		RunE: oneShot(func(ctx context.Context, a *app.App, _ []string) error {
			return a.Dispatch(ctx, "auth", "login", ui.Fields{"email": email, "password": password})
		}),
	}
	login.Flags().StringVar(&email, "email", "", "account email")
	login.Flags().StringVar(&password, "password", "", "account password")

	var sub, scope string
	demo := &cobra.Command{
		Use:   "demo-token",
		Short: "Fetch a demo token",
		RunE: oneShot(func(ctx context.Context, a *app.App, _ []string) error {
			return a.Dispatch(ctx, "auth", "demo", ui.Fields{"sub": sub, "scope": scope})
		}),
	}
	demo.Flags().StringVar(&sub, "sub", "", "token subject (default demo-user)")
	demo.Flags().StringVar(&scope, "scope", "", "token scope (default alerts.read)")

	var reg struct{ email, password, first, last, role string }
	register := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: oneShot(func(ctx context.Context, a *app.App, _ []string) error {
			return a.Dispatch(ctx, "auth", "register", ui.Fields{
				"email": reg.email, "password": reg.password,
				"firstName": reg.first, "lastName": reg.last, "role": reg.role,
			})
		}),
	}
	register.Flags().StringVar(&reg.email, "email", "", "account email")
	register.Flags().StringVar(&reg.password, "password", "", "account password")
	register.Flags().StringVar(&reg.first, "first-name", "", "first name")
	register.Flags().StringVar(&reg.last, "last-name", "", "last name")
	register.Flags().StringVar(&reg.role, "role", "", "role (default PATIENT)")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: oneShot(func(ctx context.Context, a *app.App, _ []string) error {
			return a.Dispatch(ctx, "auth", "logout", nil)
		}),
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the session identity",
		RunE: oneShot(func(_ context.Context, a *app.App, _ []string) error {
			st := a.Snapshot()
			return printJSON(os.Stdout, map[string]any{
				"authenticated": st.Authenticated,
				"email":         st.Email,
				"expiresAt":     st.ExpiresAt,
			})
		}),
	}

	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		RunE: oneShot(func(ctx context.Context, a *app.App, _ []string) error {
			return dispatchThen(ctx, a, "nav", "go", ui.Fields{"view": ui.ViewUsers})
		}),
	}

	var amount string
	eventsCmd := &cobra.Command{
		Use:       "events payment|transfer",
		Short:     "Publish a payment or transfer event",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"payment", "transfer"},
		RunE: oneShot(func(ctx context.Context, a *app.App, args []string) error {
			if err := a.Router.Navigate(ui.ViewEvents); err != nil {
				return err
			}
			return dispatchThen(ctx, a, "events", strings.ToLower(args[0]), ui.Fields{"amount": amount})
		}),
	}
	eventsCmd.Flags().StringVar(&amount, "amount", "", "event amount")

	alertsCmd := &cobra.Command{
		Use:       "alerts broker|database",
		Short:     "Read alerts",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"broker", "database"},
		RunE: oneShot(func(ctx context.Context, a *app.App, args []string) error {
			src := "broker"
			if len(args) == 1 {
				src = strings.ToLower(args[0])
			}
			if err := a.Router.Navigate(ui.ViewEvents); err != nil {
				return err
			}
			return dispatchThen(ctx, a, "alerts", src, nil)
		}),
	}

	convs := &cobra.Command{
		Use:   "conversations",
		Short: "List chat conversations",
		RunE: oneShot(func(ctx context.Context, a *app.App, _ []string) error {
			return dispatchThen(ctx, a, "nav", "go", ui.Fields{"view": ui.ViewChat})
		}),
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show backend health and failover state",
		RunE: oneShot(func(ctx context.Context, a *app.App, _ []string) error {
			hErr := a.Dispatch(ctx, "system", "health", nil)
			fErr := a.Dispatch(ctx, "system", "failover", nil)
			if err := printJSON(os.Stdout, a.Snapshot().Status); err != nil {
				return err
			}
			if hErr != nil {
				return hErr
			}
			return fErr
		}),
	}

	dispatch := &cobra.Command{
		Use:   "dispatch component.event [key=value...]",
		Short: "Run any console event once",
		Args:  cobra.MinimumNArgs(1),
		RunE: oneShot(func(ctx context.Context, a *app.App, args []string) error {
			key, ok := ui.ParseKey(args[0])
			if !ok {
				return fmt.Errorf("expected component.event, got %q", args[0])
			}
			return dispatchThen(ctx, a, key.Component, key.Event, ui.ParseArgs(args[1:]))
		}),
	}

	root.AddCommand(login, demo, register, logout, whoami, usersCmd, eventsCmd, alertsCmd, convs, status, dispatch)
}
