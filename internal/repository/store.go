// Package repository persists document chunks and the routing audit trail.
package repository

import (
	"context"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Document operations
	SaveDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error
	ListDocuments(ctx context.Context, sessionID string) ([]domain.Document, error)
	ListChunks(ctx context.Context, sessionID string) ([]domain.Chunk, error)
	DeleteSessionDocuments(ctx context.Context, sessionID string) (int, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// Lifecycle
	Close() error
}
