package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/adapter/llm"
	"github.com/xiaot623/gogo/modelrouter/internal/agent"
	"github.com/xiaot623/gogo/modelrouter/internal/domain"
	"github.com/xiaot623/gogo/modelrouter/internal/session"
	"github.com/xiaot623/gogo/modelrouter/internal/tools"
)

// NoDocumentNotice answers document questions in sessions without an upload.
const NoDocumentNotice = "I don't have access to any documents yet. Please upload a PDF using the /upload-pdf endpoint."

// Chat routes one user message and dispatches it to the chosen handler.
// The user message is recorded before routing; the assistant reply only on success.
func (s *Service) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}

	sess, created := s.sessions.GetOrCreate(req.SessionID)
	if created && req.SessionID != "" {
		s.logger.Info("unknown session, started a new one",
			zap.String("requested", req.SessionID),
			zap.String("session_id", sess.ID()))
	}
	_, prior := sess.AddMessageWithHistory(domain.RoleUser, req.Message, s.config.HistoryLimit)

	start := s.now()
	decision, metadata := s.router.Route(ctx, req.Message, sess)
	s.metrics.routeDecisions.WithLabelValues(string(decision.Category), string(decision.Method)).Inc()

	text, metadata, err := s.dispatch(ctx, sess, req.Message, prior, decision, metadata)
	elapsed := s.now().Sub(start)

	payload := domain.RouteDecidedPayload{
		Query:     req.Message,
		Metadata:  metadata,
		LatencyMs: elapsed.Milliseconds(),
	}
	if err != nil {
		payload.DispatchFailed = err.Error()
	}
	s.audit(ctx, sess.ID(), domain.EventTypeRouteDecided, payload)

	if err != nil {
		s.metrics.dispatchErrors.WithLabelValues(string(decision.Category)).Inc()
		s.logger.Error("chat dispatch failed",
			zap.String("session_id", sess.ID()),
			zap.String("category", string(decision.Category)),
			zap.Error(err))
		return nil, err
	}
	s.metrics.dispatchLatency.WithLabelValues(string(decision.Category)).Observe(elapsed.Seconds())

	sess.AddMessage(domain.RoleAssistant, text, &metadata)

	return &domain.ChatResponse{
		Response:        text,
		SessionID:       sess.ID(),
		RoutingMetadata: metadata,
	}, nil
}

func (s *Service) dispatch(ctx context.Context, sess *session.Session, message string, prior []domain.Turn, decision domain.RouteDecision, metadata domain.RoutingMetadata) (string, domain.RoutingMetadata, error) {
	switch decision.Category {
	case domain.CategoryMath:
		calculator := tools.NewCalculator(s.tools, sess.ID())
		mathAgent := agent.NewMathAgent(s.backends.Get(domain.BackendMath), calculator, s.config.AgentTimeout, s.logger)
		result, err := mathAgent.Solve(ctx, message)
		if err != nil {
			return "", metadata, fmt.Errorf("math agent: %w", err)
		}
		outcome := "skipped"
		if result.ToolUsed {
			outcome = "used"
		}
		s.metrics.calculatorCalls.WithLabelValues(outcome).Inc()
		return result.Answer, metadata.WithCalculation(result), nil

	case domain.CategoryDocument:
		if !sess.DocumentUploaded() {
			return NoDocumentNotice, metadata, nil
		}
		result, err := s.rag.Get(sess.ID()).Query(ctx, message)
		if err != nil {
			return "", metadata, fmt.Errorf("document pipeline: %w", err)
		}
		return result.Answer, metadata.WithContexts(result.NumContexts), nil

	default:
		backend := s.backends.Get(decision.ModelType)
		res, err := backend.Complete(ctx, conversation(prior, message))
		if err != nil {
			return "", metadata, fmt.Errorf("%s backend: %w", decision.ModelType, err)
		}
		return res.Content, metadata, nil
	}
}

// conversation builds the backend messages: the turns recorded before the
// current message, followed by the current message.
func conversation(prior []domain.Turn, message string) []llm.Message {
	messages := make([]llm.Message, 0, len(prior)+1)
	for _, turn := range prior {
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}
	return append(messages, llm.User(message))
}

// Route returns the routing decision for a query without dispatching it.
// Sessions are read, never created.
func (s *Service) Route(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.ErrEmptyMessage
	}
	var view domain.SessionView
	if req.SessionID != "" {
		if sess, ok := s.sessions.Get(req.SessionID); ok {
			view = sess
		}
	}
	decision, metadata := s.router.Route(ctx, req.Query, view)
	s.metrics.routeDecisions.WithLabelValues(string(decision.Category), string(decision.Method)).Inc()
	return &domain.RouteResponse{Decision: decision, RoutingMetadata: metadata}, nil
}
