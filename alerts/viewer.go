// Package alerts reads suspicious-activity alerts from the broker-backed and
// database-backed endpoints and renders them as summary lines.
package alerts

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rgq/edabank-console/api"
	"github.com/rgq/edabank-console/events"
	"github.com/rgq/edabank-console/ui"
)

// Source names where a read came from.
type Source string

const (
	SourceBroker   Source = "broker"
	SourceDatabase Source = "database"
)

// Broker poll hints sent to the backend. They bound the server-side poll,
// not the client request.
const (
	FirstPollMillis = 5000
	RetryPollMillis = 8000
)

// Result is the outcome of one read.
type Result struct {
	Source   Source
	Alerts   []Alert
	Attempts int
}

// Viewer performs reads and keeps the last result for rendering.
type Viewer struct {
	client  *api.Client
	history *events.History
	notify  ui.Notifier
	loc     *time.Location

	mu   sync.RWMutex
	last *Result
}

func NewViewer(client *api.Client, history *events.History, notify ui.Notifier, loc *time.Location) *Viewer {
	if notify == nil {
		notify = ui.NotifierFunc(func(ui.Kind, string) {})
	}
	return &Viewer{client: client, history: history, notify: notify, loc: loc}
}

func pollQuery(ms int) api.RequestOption {
	return api.WithQuery("timeoutMs", strconv.Itoa(ms))
}

// ReadBroker polls the broker feed. A first answer that is an empty JSON
// list gets exactly one more poll with the longer hint; whatever that
// returns is the result.
func (v *Viewer) ReadBroker(ctx context.Context) (Result, error) {
	resp, err := v.client.Get(ctx, api.PathAlerts, pollQuery(FirstPollMillis))
	if err != nil {
		return Result{}, err
	}
	attempts := 1
	if resp.IsEmptyList() {
		log.Debug().Msg("[alerts] empty first poll, retrying once")
		resp, err = v.client.Get(ctx, api.PathAlerts, pollQuery(RetryPollMillis))
		if err != nil {
			return Result{}, err
		}
		attempts++
	}
	res := v.finish(SourceBroker, resp, attempts)
	ui.Info(v.notify, "broker alerts read")
	return res, nil
}

// ReadDatabase reads the persisted alerts.
func (v *Viewer) ReadDatabase(ctx context.Context) (Result, error) {
	resp, err := v.client.Get(ctx, api.PathAlertsDB)
	if err != nil {
		return Result{}, err
	}
	res := v.finish(SourceDatabase, resp, 1)
	ui.Info(v.notify, "database alerts read")
	return res, nil
}

func (v *Viewer) finish(src Source, resp *api.Response, attempts int) Result {
	items := resp.Items()
	res := Result{Source: src, Alerts: make([]Alert, 0, len(items)), Attempts: attempts}
	for _, raw := range items {
		res.Alerts = append(res.Alerts, Decode(raw))
	}
	v.mu.Lock()
	v.last = &res
	v.mu.Unlock()

	count := len(res.Alerts)
	if v.history != nil {
		v.history.Add(events.Entry{Type: "read-alerts", Source: string(src), Count: &count})
	}
	return res
}

// Last returns the most recent result, if any.
func (v *Viewer) Last() (Result, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.last == nil {
		return Result{}, false
	}
	return *v.last, true
}

// Lines renders alerts, or "(no results)" when there are none.
func Lines(list []Alert, loc *time.Location) []string {
	if len(list) == 0 {
		return []string{"(no results)"}
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, Summary(a, loc))
	}
	return out
}

// Render writes the last result.
func (v *Viewer) Render(w io.Writer) error {
	res, ok := v.Last()
	if !ok {
		return nil
	}
	if _, err := fmt.Fprintf(w, "alerts (%s):\n", res.Source); err != nil {
		return err
	}
	for _, line := range Lines(res.Alerts, v.loc) {
		if _, err := fmt.Fprintf(w, "  %s\n", line); err != nil {
			return err
		}
	}
	return nil
}
