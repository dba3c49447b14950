package alerts

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rgq/edabank-console/ui"
)

// Alert is the read-only view every alert shape offers to rendering.
type Alert interface {
	Kind() string
	Amount() (float64, bool)
	UserID() string
	ID() string
	Source() string
	TimestampMillis() (int64, bool)
}

// brokerAlert is a raw record read off the alert topic. Value carries the
// alert document produced by the stream processor.
type brokerAlert struct {
	Key       *string `json:"key"`
	Value     string  `json:"value"`
	Partition int     `json:"partition"`
	Offset    int64   `json:"offset"`
	Timestamp int64   `json:"timestamp"`

	body map[string]any
}

func (a *brokerAlert) Kind() string {
	if s := str(pick(a.body, "alert")); s != "" {
		return s
	}
	if s := str(pick(a.body, "type")); s != "" {
		return s
	}
	return defaultKind
}

func (a *brokerAlert) Amount() (float64, bool) { return num(pick(a.body, "amount")) }
func (a *brokerAlert) UserID() string { return str(pick(a.body, "userId")) }

func (a *brokerAlert) ID() string {
	if a.Key != nil && *a.Key != "" {
		return *a.Key
	}
	return str(pick(a.body, "id"))
}

func (a *brokerAlert) Source() string { return str(pick(a.body, "type")) }

func (a *brokerAlert) TimestampMillis() (int64, bool) {
	if a.Timestamp == 0 {
		return 0, false
	}
	return TimestampMillis(strconv.FormatInt(a.Timestamp, 10))
}

// databaseAlert is a persisted alert row.
type databaseAlert struct {
	RowID          json.Number `json:"id"`
	EventID        *string     `json:"eventId"`
	AlertType      string      `json:"alertType"`
	SourceType     string      `json:"sourceType"`
	RowAmount      *float64    `json:"amount"`
	Payload        string      `json:"payload"`
	KafkaPartition *int        `json:"kafkaPartition"`
	KafkaOffset    *int64      `json:"kafkaOffset"`
	CreatedAt      string      `json:"createdAt"`

	body map[string]any
}

func (a *databaseAlert) Kind() string {
	if a.AlertType != "" {
		return a.AlertType
	}
	return defaultKind
}

func (a *databaseAlert) Amount() (float64, bool) {
	if a.RowAmount != nil {
		return *a.RowAmount, true
	}
	return num(pick(a.body, "amount"))
}

func (a *databaseAlert) UserID() string { return str(pick(a.body, "userId")) }
func (a *databaseAlert) ID() string { return a.RowID.String() }
func (a *databaseAlert) Source() string { return a.SourceType }

func (a *databaseAlert) TimestampMillis() (int64, bool) {
	if a.CreatedAt == "" {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339Nano, a.CreatedAt)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

// genericAlert is any other object, read through ordered fallback paths.
type genericAlert map[string]any

func (a genericAlert) Kind() string {
	for _, k := range []string{"type", "alertType", "eventType"} {
		if s := str(a[k]); s != "" {
			return s
		}
	}
	return defaultKind
}

func (a genericAlert) Amount() (float64, bool) {
	return num(pick(a, "amount", "payload.amount", "details.amount"))
}

func (a genericAlert) UserID() string { return str(pick(a, "userId", "payload.userId")) }
func (a genericAlert) ID() string { return str(pick(a, "id", "alertId", "key")) }
func (a genericAlert) Source() string { return str(pick(a, "source", "topic")) }

// TimestampMillis treats a zero epoch as absent, like the broker envelope.
func (a genericAlert) TimestampMillis() (int64, bool) {
	var ms int64
	var ok bool
	switch t := pick(a, "timestamp", "ts", "time", "payload.timestamp").(type) {
	case json.Number:
		ms, ok = TimestampMillis(t.String())
	case string:
		if ms, ok = TimestampMillis(t); !ok {
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				ms, ok = parsed.UnixMilli(), true
			}
		}
	}
	if !ok || ms == 0 {
		return 0, false
	}
	return ms, true
}

const defaultKind = "alert"

// TimestampMillis interprets a decimal timestamp: ten digits or fewer are
// epoch seconds, more are epoch milliseconds.
func TimestampMillis(digits string) (int64, bool) {
	digits = strings.TrimSpace(digits)
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		digits = digits[:i]
	}
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	if len(strings.TrimPrefix(digits, "-")) <= 10 {
		return n * 1000, true
	}
	return n, true
}

// Decode picks the variant matching raw's shape.
func Decode(raw json.RawMessage) Alert {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil || keys == nil {
		return genericAlert{}
	}
	_, hasValue := keys["value"]
	_, hasOffset := keys["offset"]
	_, hasPartition := keys["partition"]
	if hasValue && hasOffset && hasPartition {
		var b brokerAlert
		if err := json.Unmarshal(raw, &b); err == nil {
			b.body = object(b.Value)
			return &b
		}
	}
	_, hasType := keys["alertType"]
	_, hasKafka := keys["kafkaOffset"]
	_, hasCreated := keys["createdAt"]
	if hasType && (hasKafka || hasCreated) {
		var d databaseAlert
		if err := json.Unmarshal(raw, &d); err == nil {
			d.body = object(d.Payload)
			return &d
		}
	}
	return genericAlert(object(string(raw)))
}

// Summary is the one-line rendering of a.
func Summary(a Alert, loc *time.Location) string {
	parts := []string{a.Kind()}
	if v, ok := a.Amount(); ok {
		parts = append(parts, "amount: "+ui.FormatNumber(v))
	}
	if s := a.UserID(); s != "" {
		parts = append(parts, "userId: "+ui.Short(s, 8))
	}
	if s := a.ID(); s != "" {
		parts = append(parts, "id: "+ui.Short(s, 8))
	}
	if s := a.Source(); s != "" {
		parts = append(parts, "src: "+s)
	}
	if ms, ok := a.TimestampMillis(); ok {
		parts = append(parts, ui.FormatMillis(ms, loc))
	}
	return strings.Join(parts, " · ")
}

func object(s string) map[string]any {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return map[string]any{}
	}
	return m
}

// pick returns the first non-null value among dotted paths.
func pick(m map[string]any, paths ...string) any {
	for _, p := range paths {
		var cur any = m
		for _, k := range strings.Split(p, ".") {
			obj, ok := cur.(map[string]any)
			if !ok {
				cur = nil
				break
			}
			cur = obj[k]
		}
		if cur != nil {
			return cur
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func num(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case float64:
		return t, true
	}
	return 0, false
}
