package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rgq/edabank-console/chat"
	"github.com/rgq/edabank-console/session"
	"github.com/rgq/edabank-console/ui"
)

// Config is the console configuration resolved from flags and environment.
type Config struct {
	APIBase     string
	Store       session.StoreType
	DataPath    string
	RedisAddr   string
	RedisKey    string
	WSPaths     []string
	HTTPTimeout time.Duration
	Location    *time.Location
	InboxSize   int
}

// DefaultConfig matches the flag defaults.
func DefaultConfig() Config {
	return Config{
		APIBase:  "http://localhost:8080",
		Store:    session.StoreTypePebble,
		DataPath: "./edabank-data",
		WSPaths:  chat.DefaultEndpoints,
	}
}

// Deps overrides the collaborators New would otherwise build from Config.
type Deps struct {
	Store      session.Store
	Dialer     chat.Dialer
	Notifier   ui.Notifier
	Confirmer  ui.Confirmer
	HTTPClient *http.Client
	Now        func() time.Time
	// OnMessage sees every chat message that passes the conversation filter.
	OnMessage func(chat.Message)
}

func openStore(cfg Config) (session.Store, error) {
	switch cfg.Store {
	case session.StoreTypeRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("%w: redis store needs --redis-addr", session.ErrInvalidConfig)
		}
		opts := []session.StoreOption{session.WithRedisClient(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))}
		if cfg.RedisKey != "" {
			opts = append(opts, session.WithRedisKey(cfg.RedisKey))
		}
		return session.NewStore(session.StoreTypeRedis, opts...)
	case session.StoreTypePebble:
		return session.NewStore(session.StoreTypePebble, session.WithDataPath(cfg.DataPath))
	default:
		return session.NewStore(cfg.Store)
	}
}
