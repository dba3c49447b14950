package chat

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// MessageType tags a chat message.
type MessageType string

const (
	TypeChat  MessageType = "CHAT"
	TypeJoin  MessageType = "JOIN"
	TypeLeave MessageType = "LEAVE"
)

// Message is the chat wire payload. ConversationID is sent as null when
// unset.
type Message struct {
	Content        string          `json:"content"`
	Sender         string          `json:"sender"`
	Type           MessageType     `json:"type"`
	ConversationID *int64          `json:"conversationId"`
	SentAt         json.RawMessage `json:"sentAt,omitempty"`
}

// UnmarshalJSON accepts conversationId as a number, a numeric string or
// null. Anything else leaves it unset rather than failing the message.
func (m *Message) UnmarshalJSON(b []byte) error {
	type plain Message
	var aux struct {
		plain
		ConversationID json.RawMessage `json:"conversationId"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*m = Message(aux.plain)
	m.ConversationID = conversationID(aux.ConversationID)
	return nil
}

func conversationID(raw json.RawMessage) *int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// decodeMessage parses an inbound frame body. Bodies that are not a JSON
// message become a system message carrying the raw text.
func decodeMessage(body []byte) Message {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil || !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return Message{Sender: "system", Content: string(body), Type: TypeChat}
	}
	return m
}

// Line renders "sender · conv id · type: content".
func (m Message) Line() string {
	sender := m.Sender
	if sender == "" {
		sender = "anon"
	}
	conv := "-"
	if m.ConversationID != nil {
		conv = strconv.FormatInt(*m.ConversationID, 10)
	}
	typ := m.Type
	if typ == "" {
		typ = TypeChat
	}
	return sender + " · conv " + conv + " · " + string(typ) + ": " + m.Content
}

// sentAtText is the sentAt value without JSON quoting.
func (m Message) sentAtText() string {
	var s string
	if json.Unmarshal(m.SentAt, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(m.SentAt))
}

func int64Ptr(v int64) *int64 { return &v }
