package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gosuda.org/portal/portal/core/cryptoops"
	"gosuda.org/portal/sdk"

	"github.com/rgq/edabank-console/app"
	"github.com/rgq/edabank-console/chat"
	"github.com/rgq/edabank-console/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the console over HTTP and optionally through a Portal relay",
	RunE:  runServe,
}

var (
	flagPort        int
	flagServerURLs  []string
	flagPortalName  string
	flagCredKey     string
	flagPortalHide  bool
	flagPortalDesc  string
	flagPortalOwner string
	flagPortalTags  string
)

func init() {
	flags := serveCmd.Flags()
	flags.IntVar(&flagPort, "port", 8090, "local HTTP port (negative to disable)")
	flags.StringSliceVar(&flagServerURLs, "server-url", nil, "relayserver base URL(s); repeat or comma-separated (env RELAY/RELAY_URL)")
	flags.StringVar(&flagPortalName, "name", "edabank-console", "backend display name on the relay")
	flags.StringVar(&flagCredKey, "cred-key", "", "optional credential key for the relay listener (base64 encoded)")
	flags.BoolVar(&flagPortalHide, "hide", false, "hide the lease from relay listings")
	flags.StringVar(&flagPortalDesc, "description", "EDA bank console", "lease description")
	flags.StringVar(&flagPortalOwner, "owner", "", "lease owner")
	flags.StringVar(&flagPortalTags, "tags", "bank,console", "comma-separated lease tags")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	h := newHub()
	t := &tap{}
	logToasts := ui.NotifierFunc(func(kind ui.Kind, message string) {
		log.Info().Str("kind", string(kind)).Msgf("[serve] %s", message)
	})
	a, err := newApp(ctx, app.Deps{
		Notifier:  ui.Multi{logToasts, h, t},
		OnMessage: func(m chat.Message) { h.message(m) },
	})
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Start(ctx, "#home"); err != nil {
		log.Warn().Err(err).Msg("[serve] start")
	}

	handler := NewHandler(a, h, t)
	errCh := make(chan error, 2)

	var bridge *relayBridge
	if relay := relayConfigFromFlags(); relay.enabled() {
		if bridge, err = openRelay(relay, handler, errCh); err != nil {
			return err
		}
		defer bridge.Close()
	}

	var httpSrv *http.Server
	if flagPort >= 0 {
		httpSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", flagPort),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		log.Info().Msgf("[serve] serving locally at http://127.0.0.1:%d", flagPort)
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("local http: %w", err)
			}
		}()
	}
	if httpSrv == nil && bridge == nil {
		return errors.New("nothing to serve: set --port or --server-url")
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	if httpSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpSrv.Shutdown(sctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("[serve] http server shutdown")
		}
		cancel()
	}
	h.closeAll()
	h.wait()
	log.Info().Msg("[serve] shutdown complete")
	return runErr
}

// relayConfig is the Portal lease the console publishes under.
type relayConfig struct {
	Servers     []string
	Lease       string
	Description string
	Owner       string
	Tags        []string
	Hide        bool
	CredKey     string
}

func relayConfigFromFlags() relayConfig {
	return relayConfig{
		Servers:     splitList(flagServerURLs...),
		Lease:       strings.TrimSpace(flagPortalName),
		Description: flagPortalDesc,
		Owner:       flagPortalOwner,
		Tags:        splitList(flagPortalTags),
		Hide:        flagPortalHide,
		CredKey:     strings.TrimSpace(flagCredKey),
	}
}

func (c relayConfig) enabled() bool { return len(c.Servers) > 0 }

// credential decodes the base64 ed25519 private key, or makes a fresh
// identity when none is configured.
func (c relayConfig) credential() (*cryptoops.Credential, error) {
	if c.CredKey == "" {
		return sdk.NewCredential(), nil
	}
	key, err := base64.StdEncoding.DecodeString(c.CredKey)
	if err != nil {
		return nil, fmt.Errorf("decode cred key: %w", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("cred key: want %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	cred, err := cryptoops.NewCredentialFromPrivateKey(ed25519.PrivateKey(key))
	if err != nil {
		return nil, fmt.Errorf("credential from key: %w", err)
	}
	return cred, nil
}

func (c relayConfig) metadata() []sdk.MetadataOption {
	return []sdk.MetadataOption{
		sdk.WithDescription(c.Description),
		sdk.WithHide(c.Hide),
		sdk.WithOwner(c.Owner),
		sdk.WithTags(c.Tags),
	}
}

// relayBridge serves the console handler on a Portal lease.
type relayBridge struct {
	client *sdk.RDClient
	ln     net.Listener
}

func openRelay(cfg relayConfig, handler http.Handler, errCh chan<- error) (*relayBridge, error) {
	cred, err := cfg.credential()
	if err != nil {
		return nil, err
	}
	client, err := sdk.NewClient(sdk.WithBootstrapServers(cfg.Servers))
	if err != nil {
		return nil, fmt.Errorf("portal client: %w", err)
	}
	ln, err := client.Listen(cred, cfg.Lease, []string{"http/1.1"}, cfg.metadata()...)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("portal listen %q: %w", cfg.Lease, err)
	}
	log.Info().
		Str("lease", cfg.Lease).
		Str("id", cred.ID()).
		Strs("servers", cfg.Servers).
		Strs("tags", cfg.Tags).
		Bool("hidden", cfg.Hide).
		Msg("[serve] console published on relay")
	go func() {
		if err := http.Serve(ln, handler); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("relay %q: %w", cfg.Lease, err)
		}
	}()
	return &relayBridge{client: client, ln: ln}, nil
}

func (b *relayBridge) Close() {
	_ = b.ln.Close()
	_ = b.client.Close()
}

// splitList flattens repeated and comma-separated flag values.
func splitList(in ...string) []string {
	out := []string{}
	for _, raw := range in {
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
