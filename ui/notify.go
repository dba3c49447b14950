package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Kind classifies a toast.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Toast is a transient user-facing notification.
type Toast struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier shows toasts.
type Notifier interface {
	Notify(kind Kind, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind Kind, message string)

func (f NotifierFunc) Notify(kind Kind, message string) { f(kind, message) }

// Info, Success and Error are shorthands over a Notifier.
func Info(n Notifier, format string, args ...any) {
	n.Notify(KindInfo, fmt.Sprintf(format, args...))
}

func Success(n Notifier, format string, args ...any) {
	n.Notify(KindSuccess, fmt.Sprintf(format, args...))
}

func Error(n Notifier, format string, args ...any) {
	n.Notify(KindError, fmt.Sprintf(format, args...))
}

// TerminalNotifier prints toasts as coloured lines.
type TerminalNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminalNotifier writes to out. Colour follows fatih/color's NoColor.
func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: out}
}

var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func (t *TerminalNotifier) Notify(kind Kind, message string) {
	c := infoColor
	switch kind {
	case KindSuccess:
		c = successColor
	case KindError:
		c = errorColor
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = c.Fprintf(t.out, "[%s] %s\n", kind, message)
}

// Recorder keeps every toast; used by the HTTP surface and tests.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	r.toasts = append(r.toasts, Toast{Kind: kind, Message: message, At: time.Now()})
	r.mu.Unlock()
}

// Toasts returns a copy of the recorded toasts.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

// Drain returns the recorded toasts and forgets them.
func (r *Recorder) Drain() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.toasts
	r.toasts = nil
	return out
}

// Multi fans a toast out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(kind Kind, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(kind, message)
		}
	}
}
