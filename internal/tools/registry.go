// Package tools holds server-side tool executors guarded by the tool policy.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrToolNotFound = errors.New("tool not found")
	ErrToolBlocked  = errors.New("tool blocked by policy")
)

// ExecutorFunc defines a server-side tool executor.
type ExecutorFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// PolicyEvaluator decides whether a tool call may run.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, input interface{}) (decision string, reason string, err error)
}

// Decision is the policy verdict for one invocation.
type Decision struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// Registry stores tool executors keyed by tool name.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]ExecutorFunc
	policy    PolicyEvaluator
	logger    *zap.Logger
}

// NewRegistry creates an empty tool executor registry.
// A nil policy allows every registered tool.
func NewRegistry(policy PolicyEvaluator, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		executors: make(map[string]ExecutorFunc),
		policy:    policy,
		logger:    logger,
	}
}

// Register adds a new executor for a tool name.
func (r *Registry) Register(toolName string, exec ExecutorFunc) error {
	if toolName == "" {
		return fmt.Errorf("tool name is required")
	}
	if exec == nil {
		return fmt.Errorf("executor is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[toolName]; exists {
		return fmt.Errorf("executor already registered for %s", toolName)
	}
	r.executors[toolName] = exec
	return nil
}

// MustRegister adds an executor or panics.
func (r *Registry) MustRegister(toolName string, exec ExecutorFunc) {
	if err := r.Register(toolName, exec); err != nil {
		panic(err)
	}
}

// Has reports whether an executor is registered for the tool name.
func (r *Registry) Has(toolName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[toolName]
	return ok
}

// Execute runs the executor for the tool name without consulting the policy.
func (r *Registry) Execute(ctx context.Context, toolName string, args json.RawMessage) (json.RawMessage, error) {
	if toolName == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	r.mu.RLock()
	exec := r.executors[toolName]
	r.mu.RUnlock()
	if exec == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}
	return exec(ctx, args)
}

// Invoke evaluates the policy for the call and runs the executor when allowed.
// The decision is returned even when the call is blocked.
func (r *Registry) Invoke(ctx context.Context, sessionID, toolName string, args json.RawMessage) (json.RawMessage, Decision, error) {
	if !r.Has(toolName) {
		return nil, Decision{}, fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	decision := Decision{Decision: "allow"}
	if r.policy != nil {
		input := map[string]interface{}{
			"tool_name":  toolName,
			"session_id": sessionID,
			"args":       decodeArgs(args),
		}
		d, reason, err := r.policy.Evaluate(ctx, input)
		if err != nil {
			return nil, Decision{}, fmt.Errorf("policy check failed: %w", err)
		}
		decision = Decision{Decision: d, Reason: reason}
	}

	if decision.Decision != "allow" {
		r.logger.Info("tool call blocked",
			zap.String("tool", toolName),
			zap.String("session_id", sessionID),
			zap.String("decision", decision.Decision),
			zap.String("reason", decision.Reason))
		return nil, decision, fmt.Errorf("%w: %s", ErrToolBlocked, decision.Reason)
	}

	result, err := r.Execute(ctx, toolName, args)
	return result, decision, err
}

func decodeArgs(args json.RawMessage) interface{} {
	if len(args) == 0 {
		return map[string]interface{}{}
	}
	var v interface{}
	if err := json.Unmarshal(args, &v); err != nil {
		return map[string]interface{}{}
	}
	return v
}
