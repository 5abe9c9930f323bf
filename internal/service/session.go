package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
	"github.com/xiaot623/gogo/modelrouter/internal/rag"
)

// Upload extracts and stores a document for the session, creating the session if needed.
func (s *Service) Upload(ctx context.Context, sessionID, filename string, data []byte) (*domain.UploadResponse, error) {
	if !rag.Supported(filename) {
		return nil, fmt.Errorf("%s: %w", filename, domain.ErrUnsupportedDocument)
	}
	if limit := s.config.MaxUploadBytes(); limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: %w", filename, domain.ErrDocumentTooLarge)
	}

	sess, _ := s.sessions.GetOrCreate(sessionID)
	doc, err := s.rag.Get(sess.ID()).StoreDocument(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	sess.SetDocument(filename)
	s.metrics.documentsStored.Inc()

	s.audit(ctx, sess.ID(), domain.EventTypeDocumentStored, map[string]interface{}{
		"document_id": doc.DocumentID,
		"name":        doc.Name,
		"size_bytes":  doc.SizeBytes,
		"chunk_count": doc.ChunkCount,
	})

	return &domain.UploadResponse{
		Message:      "PDF uploaded and processed successfully",
		SessionID:    sess.ID(),
		Filename:     filename,
		ChunksStored: doc.ChunkCount,
	}, nil
}

// OpenSession returns id when it names a live session, otherwise the id of a new one.
func (s *Service) OpenSession(id string) string {
	sess, created := s.sessions.GetOrCreate(id)
	if created {
		s.logger.Debug("session opened", zap.String("requested_id", id), zap.String("session_id", sess.ID()))
	}
	return sess.ID()
}

// History returns the session's conversation.
func (s *Service) History(sessionID string) (*domain.HistoryResponse, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &domain.HistoryResponse{
		SessionID:        sess.ID(),
		DocumentUploaded: sess.DocumentUploaded(),
		DocumentName:     sess.DocumentName(),
		MessageCount:     sess.MessageCount(),
		History:          sess.ConversationHistory(0),
	}, nil
}

// DeleteSession removes the session with its pipeline and stored documents.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if !s.sessions.Delete(sessionID) {
		return domain.ErrSessionNotFound
	}
	removed, err := s.rag.Remove(ctx, sessionID)
	if err != nil {
		return err
	}
	s.metrics.sessionsDeleted.Inc()
	s.audit(ctx, sessionID, domain.EventTypeSessionDeleted, map[string]interface{}{
		"documents_removed": removed,
	})
	return nil
}

// RunSessionSweeper removes idle sessions until ctx is done.
func (s *Service) RunSessionSweeper(ctx context.Context) {
	interval := s.config.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepSessions(ctx)
		}
	}
}

func (s *Service) sweepSessions(ctx context.Context) {
	if s.config.SessionMaxAge <= 0 {
		return
	}
	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	expired := s.sessions.Sweep(s.config.SessionMaxAge)
	for _, id := range expired {
		removed, err := s.rag.Remove(sweepCtx, id)
		if err != nil {
			s.logger.Warn("failed to remove documents of swept session", zap.String("session_id", id), zap.Error(err))
			continue
		}
		s.audit(sweepCtx, id, domain.EventTypeSessionsSwept, map[string]interface{}{
			"reason":            "idle",
			"max_age_ms":        s.config.SessionMaxAge.Milliseconds(),
			"documents_removed": removed,
		})
	}
	if len(expired) > 0 {
		s.metrics.sessionsSwept.Add(float64(len(expired)))
		s.logger.Info("swept idle sessions", zap.Int("count", len(expired)))
	}
}
