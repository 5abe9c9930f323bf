package domain

import (
	"encoding/json"
	"time"
)

// Message is a single entry of a conversation. It is never modified after append.
type Message struct {
	MessageID string           `json:"message_id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *RoutingMetadata `json:"metadata,omitempty"`
}

// Turn is the role/content pair handed to completion backends.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SessionView is the read-only session surface the router and agents depend on.
type SessionView interface {
	DocumentUploaded() bool
	DocumentName() string
	// ConversationHistory returns the most recent limit turns in conversational
	// order. limit <= 0 returns the whole history.
	ConversationHistory(limit int) []Turn
}

// Event represents an audit event.
type Event struct {
	EventID   string          `json:"event_id"`
	SessionID string          `json:"session_id"`
	Ts        int64           `json:"ts"` // Unix milliseconds
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Document describes a document stored for a session.
type Document struct {
	DocumentID string    `json:"document_id"`
	SessionID  string    `json:"session_id"`
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Chunk is one retrievable piece of a document.
type Chunk struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	SessionID  string `json:"session_id"`
	Seq        int    `json:"seq"`
	Content    string `json:"content"`
}
