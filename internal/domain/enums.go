// Package domain defines the core domain models for the model router.
package domain

// Category is the semantic classification of a query.
type Category string

const (
	CategoryMath     Category = "math"
	CategoryCoding   Category = "coding"
	CategoryWriting  Category = "writing"
	CategoryDocument Category = "document"
	CategoryGeneral  Category = "general"
)

// Categories lists every category in prompt order.
var Categories = []Category{
	CategoryMath,
	CategoryCoding,
	CategoryWriting,
	CategoryDocument,
	CategoryGeneral,
}

// ParseCategory maps free text onto a known category. Unknown values map to general.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryMath, CategoryCoding, CategoryWriting, CategoryDocument, CategoryGeneral:
		return Category(s), true
	}
	return CategoryGeneral, false
}

// BackendType selects the execution backend serving a request.
type BackendType string

const (
	BackendGeneral  BackendType = "general"
	BackendCode     BackendType = "code"
	BackendMath     BackendType = "math"
	BackendDocument BackendType = "document"
)

// BackendTypes lists every addressable backend.
var BackendTypes = []BackendType{
	BackendGeneral,
	BackendCode,
	BackendMath,
	BackendDocument,
}

// backendByCategory is the category -> backend selector table.
// Several categories may share one backend.
var backendByCategory = map[Category]BackendType{
	CategoryMath:     BackendMath,
	CategoryCoding:   BackendCode,
	CategoryWriting:  BackendGeneral,
	CategoryDocument: BackendDocument,
	CategoryGeneral:  BackendGeneral,
}

// BackendFor returns the backend selector for a category.
func BackendFor(c Category) BackendType {
	if b, ok := backendByCategory[c]; ok {
		return b
	}
	return BackendGeneral
}

// Method tags how a decision was produced.
type Method string

const (
	MethodRuleBased  Method = "rule-based"
	MethodModelBased Method = "model-based"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// EventType represents the type of an audit event.
type EventType string

const (
	EventTypeRouteDecided   EventType = "route_decided"
	EventTypeToolInvoked    EventType = "tool_invoked"
	EventTypeDocumentStored EventType = "document_stored"
	EventTypeSessionDeleted EventType = "session_deleted"
	EventTypeSessionsSwept  EventType = "sessions_swept"
)
