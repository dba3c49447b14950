package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DefaultEndpoints are tried in order: the raw websocket transport of a
// SockJS endpoint, then the bare path.
var DefaultEndpoints = []string{"/ws/websocket", "/ws"}

// stompSubprotocols are offered during the websocket handshake.
var stompSubprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// StompDialer speaks STOMP 1.2 over a gorilla websocket.
type StompDialer struct {
	URLs         []string
	WS           *websocket.Dialer
	HeaderFunc   func() http.Header
	CloseTimeout time.Duration
}

// NewStompDialer resolves paths against the backend base URL, switching the
// scheme to ws/wss.
func NewStompDialer(base *url.URL, paths []string) (*StompDialer, error) {
	if len(paths) == 0 {
		paths = DefaultEndpoints
	}
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		u, err := WebSocketURL(base, p)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return &StompDialer{
		URLs: urls,
		WS: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     stompSubprotocols,
		},
		CloseTimeout: 3 * time.Second,
	}, nil
}

// WebSocketURL maps http(s)://host/base + path to ws(s)://host/path.
func WebSocketURL(base *url.URL, path string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("parse websocket path: %w", err)
	}
	u := base.ResolveReference(ref)
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// Dial tries every URL until one completes both the websocket handshake and
// the STOMP CONNECT exchange.
func (d *StompDialer) Dial(ctx context.Context, headers map[string]string) (Broker, error) {
	if len(d.URLs) == 0 {
		return nil, errors.New("no chat endpoints configured")
	}
	ws := d.WS
	if ws == nil {
		ws = websocket.DefaultDialer
	}
	var errs []error
	for _, target := range d.URLs {
		var h http.Header
		if d.HeaderFunc != nil {
			h = d.HeaderFunc()
		}
		conn, resp, err := ws.DialContext(ctx, target, h)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			log.Debug().Err(err).Str("url", target).Msg("[chat] websocket dial failed")
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
			continue
		}

		opts := []func(*stomp.Conn) error{
			stomp.ConnOpt.HeartBeat(0, 0),
			stomp.ConnOpt.Host(hostOf(target)),
		}
		for k, v := range headers {
			opts = append(opts, stomp.ConnOpt.Header(k, v))
		}
		sc, err := stomp.ConnectWithContext(ctx, newWSConn(conn), opts...)
		if err != nil {
			_ = conn.Close()
			log.Debug().Err(err).Str("url", target).Msg("[chat] stomp connect failed")
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
			continue
		}
		log.Info().Str("url", target).Msg("[chat] connected")
		return &stompBroker{conn: sc, closeTimeout: d.CloseTimeout}, nil
	}
	return nil, errors.Join(errs...)
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return "/"
}

type stompBroker struct {
	conn         *stomp.Conn
	closeTimeout time.Duration
}

func (b *stompBroker) Subscribe(ctx context.Context, destination string) (Subscription, error) {
	sub, err := b.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", destination, err)
	}
	s := &stompSubscription{sub: sub, frames: make(chan Frame, 16), timeout: b.closeTimeout}
	go s.pump()
	return s, nil
}

func (b *stompBroker) Send(ctx context.Context, destination string, body []byte, headers map[string]string) error {
	opts := make([]func(*frame.Frame) error, 0, len(headers))
	for k, v := range headers {
		opts = append(opts, stomp.SendOpt.Header(k, v))
	}
	if err := b.conn.Send(destination, "application/json", body, opts...); err != nil {
		return fmt.Errorf("send %s: %w", destination, err)
	}
	return nil
}

func (b *stompBroker) Disconnect(ctx context.Context) error {
	err := bounded(ctx, b.timeout(), b.conn.Disconnect)
	if err != nil {
		// no receipt in time; drop the socket
		_ = b.conn.MustDisconnect()
	}
	return err
}

func (b *stompBroker) timeout() time.Duration {
	if b.closeTimeout > 0 {
		return b.closeTimeout
	}
	return 3 * time.Second
}

type stompSubscription struct {
	sub     *stomp.Subscription
	frames  chan Frame
	timeout time.Duration
}

func (s *stompSubscription) pump() {
	defer close(s.frames)
	for msg := range s.sub.C {
		if msg.Err != nil {
			s.frames <- Frame{Err: msg.Err}
			return
		}
		s.frames <- Frame{Body: msg.Body}
	}
}

func (s *stompSubscription) Frames() <-chan Frame { return s.frames }

func (s *stompSubscription) Unsubscribe(ctx context.Context) error {
	d := s.timeout
	if d <= 0 {
		d = 3 * time.Second
	}
	return bounded(ctx, d, func() error { return s.sub.Unsubscribe() })
}

// wsConn exposes a websocket as the byte stream STOMP expects. Each Write
// goes out as one text message; reads run across message boundaries.
type wsConn struct {
	conn *websocket.Conn
	rmu  sync.Mutex
	r    io.Reader
	wmu  sync.Mutex
}

func newWSConn(c *websocket.Conn) *wsConn { return &wsConn{conn: c} }

func (c *wsConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	for {
		if c.r == nil {
			_, r, err := c.conn.NextReader()
			if err != nil {
				return 0, err
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if errors.Is(err, io.EOF) {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
