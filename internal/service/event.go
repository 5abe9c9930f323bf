package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

// recordEvent records an event to the store.
func (s *Service) recordEvent(ctx context.Context, sessionID string, eventType domain.EventType, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID:   "evt_" + uuid.New().String()[:8],
		SessionID: sessionID,
		Ts:        s.now().UnixMilli(),
		Type:      eventType,
		Payload:   payloadBytes,
	}

	return s.store.CreateEvent(ctx, event)
}

// audit records an event and only logs a failure; the audit trail never fails a request.
func (s *Service) audit(ctx context.Context, sessionID string, eventType domain.EventType, payload interface{}) {
	if err := s.recordEvent(ctx, sessionID, eventType, payload); err != nil {
		s.logger.Warn("failed to record event",
			zap.String("session_id", sessionID),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}

// Events returns the audit events of a session.
func (s *Service) Events(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	return s.store.GetEvents(ctx, sessionID, afterTs, types, limit)
}
