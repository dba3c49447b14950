package chat

import (
	"context"
	"errors"
	"time"
)

// Frame is one inbound message delivered on a subscription. Err set means
// the transport failed and no further frames follow.
type Frame struct {
	Body []byte
	Err  error
}

// Subscription is an active topic subscription.
type Subscription interface {
	Frames() <-chan Frame
	Unsubscribe(ctx context.Context) error
}

// Broker is a connected messaging session.
type Broker interface {
	Subscribe(ctx context.Context, destination string) (Subscription, error)
	Send(ctx context.Context, destination string, body []byte, headers map[string]string) error
	Disconnect(ctx context.Context) error
}

// Dialer opens a Broker session. headers are sent with the connect frame.
type Dialer interface {
	Dial(ctx context.Context, headers map[string]string) (Broker, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, headers map[string]string) (Broker, error)

func (f DialerFunc) Dial(ctx context.Context, headers map[string]string) (Broker, error) {
	return f(ctx, headers)
}

var errWaitTimeout = errors.New("timed out")

// bounded runs fn and stops waiting after d or when ctx ends. fn keeps
// running in the background if it overruns.
func bounded(ctx context.Context, d time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return errWaitTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
