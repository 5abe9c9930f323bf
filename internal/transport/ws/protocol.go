package ws

import "github.com/xiaot623/gogo/modelrouter/internal/domain"

// Message types from client to server
const (
	TypeHello = "hello"
	TypeChat  = "chat"
	TypeRoute = "route"
)

// Message types from server to client
const (
	TypeHelloAck    = "hello_ack"
	TypeRouteResult = "route_result"
	TypeDone        = "done"
	TypeError       = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloMessage is sent by the client to bind the connection to a session.
type HelloMessage struct {
	BaseMessage
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// HelloAckMessage is sent after a successful hello.
type HelloAckMessage struct {
	BaseMessage
}

// ChatMessage carries one user message.
type ChatMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// RouteMessage asks for a routing decision only.
type RouteMessage struct {
	BaseMessage
	Query string `json:"query"`
}

// RouteResultMessage answers a RouteMessage.
type RouteResultMessage struct {
	BaseMessage
	Decision domain.RouteDecision `json:"decision"`
}

// DoneMessage carries the answer to a ChatMessage.
type DoneMessage struct {
	BaseMessage
	Response        string                 `json:"response"`
	RoutingMetadata domain.RoutingMetadata `json:"routing_metadata"`
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeChatFailed      = "chat_failed"
	ErrorCodeInternalError   = "internal_error"
)
