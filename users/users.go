// Package users is the user administration panel: a table of rows from the
// last list call and an edit form.
package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/ui"
)

var (
	ErrNoID       = errors.New("user id is required")
	ErrUnknownRow = errors.New("user not in the last listing")
)

// ID is a user id as the backend sends it: a JSON number or string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// User is one row of the users table.
type User struct {
	ID        ID     `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Label is how the user appears in selectors: the email, else the name.
func (u User) Label() string {
	if u.Email != "" {
		return u.Email
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Form holds the edit form fields. Password is write-only.
type Form struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	Password  string `json:"password"`
}

// FormFromFields reads the form out of dispatched event fields.
func FormFromFields(f ui.Fields) Form {
	return Form{
		ID:        f.Trim("id"),
		Email:     f.Trim("email"),
		FirstName: f.Trim("firstName"),
		LastName:  f.Trim("lastName"),
		Role:      f.Trim("role"),
		Password:  f.Get("password"),
	}
}

type payload struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	Password  string `json:"password"`
}

func (f Form) payload() payload {
	return payload{Email: f.Email, FirstName: f.FirstName, LastName: f.LastName, Role: f.Role, Password: f.Password}
}

// Option is an entry of the chat user selector.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Panel is safe for concurrent use.
type Panel struct {
	client *api.Client
	notify ui.Notifier

	mu   sync.RWMutex
	rows []User
	form Form
}

func NewPanel(client *api.Client, notify ui.Notifier) *Panel {
	if notify == nil {
		notify = ui.NotifierFunc(func(ui.Kind, string) {})
	}
	return &Panel{client: client, notify: notify}
}

// Fetch returns the current user list without touching the panel.
func (p *Panel) Fetch(ctx context.Context) ([]User, error) {
	var list []User
	if err := p.client.GetJSON(ctx, api.PathUsers, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// List replaces the table rows with a fresh listing.
func (p *Panel) List(ctx context.Context) error {
	list, err := p.Fetch(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.rows = list
	p.mu.Unlock()
	ui.Info(p.notify, "users loaded")
	return nil
}

// Create posts the form as a new user, clears the form and reloads.
func (p *Panel) Create(ctx context.Context, f Form) error {
	if _, err := p.client.Post(ctx, api.PathUsers, f.payload()); err != nil {
		return err
	}
	ui.Success(p.notify, "user created")
	p.ClearForm()
	return p.List(ctx)
}

// Update sends every editable field, password included, to /users/{id}.
func (p *Panel) Update(ctx context.Context, f Form) error {
	if f.ID == "" {
		return ErrNoID
	}
	if _, err := p.client.Put(ctx, api.UserPath(f.ID), f.payload()); err != nil {
		return err
	}
	ui.Success(p.notify, "user updated")
	p.ClearForm()
	return p.List(ctx)
}

// Delete removes user id after confirm agrees. A declined confirmation
// returns (false, nil) without any request.
func (p *Panel) Delete(ctx context.Context, id string, confirm ui.Confirmer) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, ErrNoID
	}
	if confirm == nil || !confirm.Confirm(ctx, "Delete user "+id+"?") {
		return false, nil
	}
	if _, err := p.client.Delete(ctx, api.UserPath(id)); err != nil {
		return false, err
	}
	ui.Success(p.notify, "user deleted")
	return true, p.List(ctx)
}

// Edit fills the form from the last rendered row for id. The rows may be
// stale; no request is made.
func (p *Panel) Edit(id string) (Form, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.rows {
		if string(u.ID) != id {
			continue
		}
		p.form = Form{
			ID:        string(u.ID),
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      strings.TrimSpace(u.Role),
		}
		return p.form, nil
	}
	return Form{}, fmt.Errorf("%w: %s", ErrUnknownRow, id)
}

// ClearForm empties every form field.
func (p *Panel) ClearForm() {
	p.mu.Lock()
	p.form = Form{}
	p.mu.Unlock()
}

func (p *Panel) Form() Form {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.form
}

func (p *Panel) Rows() []User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]User(nil), p.rows...)
}

// Options turns users into selector entries.
func Options(list []User) []Option {
	out := make([]Option, 0, len(list))
	for _, u := range list {
		out = append(out, Option{Value: string(u.ID), Label: u.Label()})
	}
	return out
}

// Options is the selector view of the current rows.
func (p *Panel) Options() []Option {
	return Options(p.Rows())
}
