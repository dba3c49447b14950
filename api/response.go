package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotJSON is returned by Decode when the response is not declared JSON.
var ErrNotJSON = errors.New("response is not json")

// HTTPError is a non-2xx response. Body holds the raw response text.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// Response is a successful reply. JSON bodies are kept raw so callers can
// decode into whatever shape they expect.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the server declared a JSON content type.
func (r *Response) IsJSON() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "application/json")
}

// Decode unmarshals a JSON body into v.
func (r *Response) Decode(v any) error {
	if !r.IsJSON() {
		return fmt.Errorf("%w: %s", ErrNotJSON, r.ContentType)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Text returns the body as text: JSON bodies are compacted, anything else is
// returned verbatim.
func (r *Response) Text() string {
	if r.IsJSON() {
		var buf bytes.Buffer
		if json.Compact(&buf, r.Body) == nil {
			return buf.String()
		}
	}
	return string(r.Body)
}

// Items extracts a list from a JSON body that is either an array or an
// object carrying an "items" array. Anything else yields nil.
func (r *Response) Items() []json.RawMessage {
	if !r.IsJSON() {
		return nil
	}
	var arr []json.RawMessage
	if json.Unmarshal(r.Body, &arr) == nil {
		if arr == nil {
			arr = []json.RawMessage{}
		}
		return arr
	}
	var wrapped struct {
		Items []json.RawMessage `json:"items"`
	}
	if json.Unmarshal(r.Body, &wrapped) == nil && wrapped.Items != nil {
		return wrapped.Items
	}
	return nil
}

// IsEmptyList reports whether the body is exactly a JSON array with no items.
func (r *Response) IsEmptyList() bool {
	if !r.IsJSON() {
		return false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(r.Body, &arr); err != nil {
		return false
	}
	return arr != nil && len(arr) == 0
}
