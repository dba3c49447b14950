package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rgq/edabank-console/app"
	"github.com/rgq/edabank-console/chat"
	"github.com/rgq/edabank-console/session"
	"github.com/rgq/edabank-console/ui"
)

var rootCmd = &cobra.Command{
	Use:               "edabank-console",
	Short:             "Terminal console for the EDA bank backend",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runConsole,
}

var (
	flagAPIBase     string
	flagStore       string
	flagDataPath    string
	flagRedisAddr   string
	flagWSPaths     []string
	flagLogLevel    string
	flagNoColor     bool
	flagHTTPTimeout time.Duration
	flagYes         bool
	flagView        string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagAPIBase, "api-base", "http://localhost:8080", "backend base URL (env EDABANK_API)")
	flags.StringVar(&flagStore, "store", string(session.StoreTypePebble), "token store: memory, pebble or redis")
	flags.StringVar(&flagDataPath, "data-path", "./edabank-data", "pebble directory for the token store (env EDABANK_DATA)")
	flags.StringVar(&flagRedisAddr, "redis-addr", "", "redis address for --store=redis (env EDABANK_REDIS)")
	flags.StringSliceVar(&flagWSPaths, "ws-path", chat.DefaultEndpoints, "chat websocket paths, tried in order")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.BoolVar(&flagNoColor, "no-color", false, "disable coloured output")
	flags.DurationVar(&flagHTTPTimeout, "http-timeout", 0, "client deadline per request (0 = none)")
	flags.BoolVarP(&flagYes, "yes", "y", false, "answer yes to confirmations")

	rootCmd.Flags().StringVar(&flagView, "view", "#home", "initial view fragment")

	rootCmd.AddCommand(serveCmd)
	addOneShots(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute command")
	}
}

// envFallback applies an environment value to a flag the user did not set.
func envFallback(cmd *cobra.Command, flag string, keys ...string) {
	f := cmd.Flags().Lookup(flag)
	if f == nil || f.Changed {
		return
	}
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			_ = f.Value.Set(v)
			return
		}
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("[console] load .env")
	}
	envFallback(cmd, "api-base", "EDABANK_API")
	envFallback(cmd, "data-path", "EDABANK_DATA")
	envFallback(cmd, "redis-addr", "EDABANK_REDIS")
	envFallback(cmd, "server-url", "RELAY", "RELAY_URL")

	level, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen, NoColor: flagNoColor})
	if flagNoColor {
		color.NoColor = true
	}
	return nil
}

func config() app.Config {
	cfg := app.DefaultConfig()
	cfg.APIBase = flagAPIBase
	cfg.Store = session.StoreType(strings.ToLower(flagStore))
	cfg.DataPath = flagDataPath
	cfg.RedisAddr = flagRedisAddr
	cfg.WSPaths = flagWSPaths
	cfg.HTTPTimeout = flagHTTPTimeout
	return cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newApp builds the console with toasts printed to stdout.
func newApp(ctx context.Context, deps app.Deps) (*app.App, error) {
	if deps.Notifier == nil {
		deps.Notifier = ui.NewTerminalNotifier(os.Stdout)
	}
	if deps.Confirmer == nil && flagYes {
		deps.Confirmer = ui.AlwaysConfirm
	}
	return app.New(ctx, config(), deps)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
