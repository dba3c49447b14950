package ui

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// Fields are the form values attached to an event.
type Fields map[string]string

// Get returns the raw value of key.
func (f Fields) Get(key string) string { return f[key] }

// Trim returns the value of key with surrounding space removed.
func (f Fields) Trim(key string) string { return strings.TrimSpace(f[key]) }

// Bool reports whether key holds a truthy value.
func (f Fields) Bool(key string) bool {
	b, err := strconv.ParseBool(f.Trim(key))
	if err == nil {
		return b
	}
	switch strings.ToLower(f.Trim(key)) {
	case "y", "yes":
		return true
	}
	return false
}

// ErrUnterminatedQuote is returned by SplitLine for an open quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// SplitLine splits a console line into words. Double or single quotes group
// words; a backslash escapes the next rune inside double quotes.
func SplitLine(line string) ([]string, error) {
	var (
		out   []string
		cur   strings.Builder
		quote rune
		have  bool
		esc   bool
	)
	for _, r := range line {
		switch {
		case esc:
			cur.WriteRune(r)
			esc = false
		case quote == '"' && r == '\\':
			esc = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			have = true
		case unicode.IsSpace(r):
			if have || cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
				have = false
			}
		default:
			cur.WriteRune(r)
		}
	}
	if quote != 0 || esc {
		return nil, ErrUnterminatedQuote
	}
	if have || cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out, nil
}

// ParseArgs splits words into key=value fields. Words without '=' are
// collected as positional arguments under "arg0", "arg1", ...
func ParseArgs(words []string) Fields {
	f := Fields{}
	pos := 0
	for _, w := range words {
		if k, v, ok := strings.Cut(w, "="); ok && k != "" {
			f[k] = v
			continue
		}
		f["arg"+strconv.Itoa(pos)] = w
		pos++
	}
	return f
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// AlwaysConfirm accepts everything (--yes).
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) bool { return true })

// NeverConfirm declines everything.
var NeverConfirm = ConfirmFunc(func(context.Context, string) bool { return false })

// FieldConfirmer accepts when the event carries confirm=yes, otherwise it
// asks Fallback (declining when Fallback is nil).
type FieldConfirmer struct {
	Fields   Fields
	Fallback Confirmer
}

func (c FieldConfirmer) Confirm(ctx context.Context, prompt string) bool {
	if c.Fields.Bool("confirm") {
		return true
	}
	if c.Fallback == nil {
		return false
	}
	return c.Fallback.Confirm(ctx, prompt)
}
