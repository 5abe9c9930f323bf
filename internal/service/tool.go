package service

import (
	"context"
	"errors"

	"github.com/xiaot623/gogo/modelrouter/internal/calc"
	"github.com/xiaot623/gogo/modelrouter/internal/domain"
	"github.com/xiaot623/gogo/modelrouter/internal/tools"
)

// InvokeTool runs a registered tool through the policy.
// Unknown tools return tools.ErrToolNotFound; blocked and failed calls are reported in the response.
func (s *Service) InvokeTool(ctx context.Context, toolName string, req domain.ToolInvokeRequest) (*domain.ToolInvokeResponse, error) {
	result, decision, err := s.tools.Invoke(ctx, req.SessionID, toolName, req.Args)
	if errors.Is(err, tools.ErrToolNotFound) {
		return nil, err
	}

	payload := domain.ToolInvokedPayload{
		ToolName: toolName,
		Args:     req.Args,
		Decision: decision.Decision,
		Reason:   decision.Reason,
	}
	resp := &domain.ToolInvokeResponse{Status: "succeeded", Result: result}

	var evalErr *calc.EvaluationError
	switch {
	case err == nil:
	case errors.Is(err, tools.ErrToolBlocked):
		resp = &domain.ToolInvokeResponse{Status: "blocked", Error: &domain.ToolError{Code: "policy_blocked", Message: decision.Reason}}
	case errors.As(err, &evalErr):
		resp = &domain.ToolInvokeResponse{Status: "failed", Error: &domain.ToolError{Code: "evaluation_error", Message: err.Error()}}
	default:
		resp = &domain.ToolInvokeResponse{Status: "failed", Error: &domain.ToolError{Code: "execution_error", Message: err.Error()}}
	}
	if err != nil {
		payload.Error = err.Error()
	}

	s.metrics.toolInvocations.WithLabelValues(toolName, resp.Status).Inc()
	s.audit(ctx, req.SessionID, domain.EventTypeToolInvoked, payload)
	return resp, nil
}
