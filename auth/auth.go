// Package auth runs the login, registration, demo-token and logout flows
// against the backend and records the resulting token in the session.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/session"
)

// DefaultRole is sent on registration when the form leaves role empty.
const DefaultRole = "PATIENT"

var (
	ErrEmptyToken   = errors.New("backend returned an empty token")
	ErrRegistration = errors.New("registration failed")
	ErrAutoLogin    = errors.New("login after registration failed")
)

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register form.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// FlowError records which step of a multi-call flow failed.
type FlowError struct {
	Step error
	Err  error
}

func (e *FlowError) Error() string { return e.Step.Error() + ": " + e.Err.Error() }

// Unwrap exposes both the step sentinel and the cause to errors.Is.
func (e *FlowError) Unwrap() []error { return []error{e.Step, e.Err} }

// Service performs auth flows. It never touches navigation; callers decide
// what happens in the UI after a flow succeeds.
type Service struct {
	client  *api.Client
	session *session.Session
}

func NewService(client *api.Client, sess *session.Session) *Service {
	return &Service{client: client, session: sess}
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login posts the credentials as entered and stores the returned token.
// Empty fields are left for the backend to reject.
func (s *Service) Login(ctx context.Context, creds Credentials) error {
	resp, err := s.client.Post(ctx, api.PathLogin, creds)
	if err != nil {
		return err
	}
	var out loginResponse
	if err := resp.Decode(&out); err != nil {
		return err
	}
	return s.store(ctx, out.Token)
}

// DemoToken asks the backend for a token on behalf of subject with scope.
// Empty arguments fall back to the demo defaults.
func (s *Service) DemoToken(ctx context.Context, subject, scope string) error {
	if subject == "" {
		subject = api.DemoSubject
	}
	if scope == "" {
		scope = api.DemoScope
	}
	resp, err := s.client.Get(ctx, api.PathToken, api.WithQuery("sub", subject), api.WithQuery("scope", scope))
	if err != nil {
		return err
	}
	return s.store(ctx, bareToken(resp))
}

// Register creates the user and logs in with the same credentials.
// Failures are wrapped in a FlowError naming the step.
func (s *Service) Register(ctx context.Context, reg Registration) error {
	if strings.TrimSpace(reg.Role) == "" {
		reg.Role = DefaultRole
	}
	if _, err := s.client.Post(ctx, api.PathUsers, reg); err != nil {
		return &FlowError{Step: ErrRegistration, Err: err}
	}
	log.Debug().Str("email", reg.Email).Msg("[auth] registered")
	if err := s.Login(ctx, Credentials{Email: reg.Email, Password: reg.Password}); err != nil {
		return &FlowError{Step: ErrAutoLogin, Err: err}
	}
	return nil
}

// Logout clears the stored token.
func (s *Service) Logout(ctx context.Context) error {
	return s.session.Clear(ctx)
}

func (s *Service) store(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if err := s.session.SetToken(ctx, token); err != nil {
		// the in-memory token is set; only persistence failed
		log.Warn().Err(err).Msg("[auth] token not persisted")
	}
	return nil
}

// bareToken accepts a plain-text token, a JSON string or {"token": "..."}.
func bareToken(resp *api.Response) string {
	raw := strings.TrimSpace(string(resp.Body))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			return s
		}
	}
	if strings.HasPrefix(raw, "{") {
		var out loginResponse
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out.Token
		}
	}
	return raw
}
