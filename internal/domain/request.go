package domain

import (
	"encoding/json"
	"errors"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrDocumentTooLarge    = errors.New("document exceeds size limit")
	ErrEmptyDocument       = errors.New("no text extracted from document")
	ErrEmptyMessage        = errors.New("message is required")
)

// ChatRequest is the request body of the chat endpoint.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is returned by the chat endpoint.
type ChatResponse struct {
	Response        string          `json:"response"`
	SessionID       string          `json:"session_id"`
	RoutingMetadata RoutingMetadata `json:"routing_metadata"`
}

// RouteRequest asks for a routing decision without dispatching.
type RouteRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// RouteResponse is returned by the route endpoint.
type RouteResponse struct {
	Decision        RouteDecision   `json:"decision"`
	RoutingMetadata RoutingMetadata `json:"routing_metadata"`
}

// UploadResponse is returned after a document upload.
type UploadResponse struct {
	Message      string `json:"message"`
	SessionID    string `json:"session_id"`
	Filename     string `json:"filename"`
	ChunksStored int    `json:"chunks_stored"`
}

// HistoryResponse describes a session and its conversation.
type HistoryResponse struct {
	SessionID        string `json:"session_id"`
	DocumentUploaded bool   `json:"document_uploaded"`
	DocumentName     string `json:"document_name,omitempty"`
	MessageCount     int    `json:"message_count"`
	History          []Turn `json:"history"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ToolInvokeRequest represents the request to invoke a tool.
type ToolInvokeRequest struct {
	SessionID string          `json:"session_id,omitempty"`
	Args      json.RawMessage `json:"args"`
}

// ToolInvokeResponse represents the response from invoking a tool.
type ToolInvokeResponse struct {
	Status string          `json:"status"` // succeeded, failed
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ToolError      `json:"error,omitempty"`
}

// ToolError represents a tool error.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RouteDecidedPayload is recorded for every routed request.
type RouteDecidedPayload struct {
	Query          string          `json:"query"`
	Metadata       RoutingMetadata `json:"metadata"`
	LatencyMs      int64           `json:"latency_ms"`
	DispatchFailed string          `json:"dispatch_failed,omitempty"`
}

// ToolInvokedPayload is recorded for every tool invocation.
type ToolInvokedPayload struct {
	ToolName string          `json:"tool_name"`
	Args     json.RawMessage `json:"args,omitempty"`
	Decision string          `json:"decision"`
	Reason   string          `json:"reason,omitempty"`
	Error    string          `json:"error,omitempty"`
}
