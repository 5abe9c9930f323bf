package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xiaot623/gogo/modelrouter/internal/calc"
)

// CalculatorTool is the registered name of the calculator executor.
const CalculatorTool = "calculator"

// CalculatorArgs is the argument object of the calculator tool.
type CalculatorArgs struct {
	Expression string `json:"expression"`
}

// CalculatorResult is the calculator tool output.
type CalculatorResult struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
	Formatted  string  `json:"formatted"`
}

// RegisterBuiltins registers the built-in executors.
func RegisterBuiltins(r *Registry) {
	r.MustRegister(CalculatorTool, executeCalculator)
}

func executeCalculator(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in CalculatorArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid calculator args: %w", err)
	}
	v, err := calc.Evaluate(in.Expression)
	if err != nil {
		return nil, err
	}
	return json.Marshal(CalculatorResult{Expression: in.Expression, Result: v, Formatted: calc.Format(v)})
}

// Calculator evaluates expressions through the registry, so the math agent's
// tool calls go through the same policy as direct invocations.
type Calculator struct {
	registry  *Registry
	sessionID string
}

// NewCalculator binds a registry-backed calculator to a session.
func NewCalculator(r *Registry, sessionID string) *Calculator {
	return &Calculator{registry: r, sessionID: sessionID}
}

// Calculate implements agent.Calculator.
func (c *Calculator) Calculate(ctx context.Context, expr string) (float64, error) {
	args, err := json.Marshal(CalculatorArgs{Expression: expr})
	if err != nil {
		return 0, err
	}
	out, _, err := c.registry.Invoke(ctx, c.sessionID, CalculatorTool, args)
	if err != nil {
		var evalErr *calc.EvaluationError
		if errors.As(err, &evalErr) {
			return 0, err
		}
		return 0, &calc.EvaluationError{Expression: expr, Cause: err}
	}
	var res CalculatorResult
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, fmt.Errorf("decode calculator result: %w", err)
	}
	return res.Result, nil
}
