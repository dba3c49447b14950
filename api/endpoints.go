package api

import (
	"net/url"
	"strconv"
)

// Backend routes consumed by the console.
const (
	PathLogin          = "/auth/login"
	PathToken          = "/auth/token"
	PathUsers          = "/users"
	PathEventsPayment  = "/events/payments"
	PathEventsTransfer = "/events/transfers"
	PathAlerts         = "/alerts"
	PathAlertsDB       = "/alerts-db"
	PathConversations  = "/api/chat/conversations"
	PathChatSend       = "/api/chat/send"
	PathHealth         = "/api/health"
	PathFailover       = "/api/failover/status"
)

// STOMP destinations.
const (
	ChatSocket      = "/ws"
	ChatTopic       = "/topic/public"
	ChatDestination = "/app/chat.sendMessage"
)

// Demo token defaults.
const (
	DemoSubject = "demo-user"
	DemoScope   = "alerts.read"
)

// UserPath is /users/{id}.
func UserPath(id string) string {
	return PathUsers + "/" + url.PathEscape(id)
}

// ConversationMessagesPath is /api/chat/conversations/{id}/messages.
func ConversationMessagesPath(id int64) string {
	return PathConversations + "/" + strconv.FormatInt(id, 10) + "/messages"
}
