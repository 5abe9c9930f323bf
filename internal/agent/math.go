// Package agent implements the tool-invoking math agent.
package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/adapter/llm"
	"github.com/xiaot623/gogo/modelrouter/internal/calc"
	"github.com/xiaot623/gogo/modelrouter/internal/domain"
	"github.com/xiaot623/gogo/modelrouter/internal/logging"
)

// Calculator evaluates an arithmetic expression.
type Calculator interface {
	Calculate(ctx context.Context, expr string) (float64, error)
}

// CalculatorFunc adapts a function to Calculator.
type CalculatorFunc func(ctx context.Context, expr string) (float64, error)

// Calculate implements Calculator.
func (f CalculatorFunc) Calculate(ctx context.Context, expr string) (float64, error) {
	return f(ctx, expr)
}

// Evaluator is the plain calc evaluator as a Calculator.
var Evaluator Calculator = CalculatorFunc(func(_ context.Context, expr string) (float64, error) {
	return calc.Evaluate(expr)
})

const calculatorDescription = `Calculator Tool:
- Use this tool to perform precise mathematical calculations
- Supports: addition (+), subtraction (-), multiplication (*), division (/), power (^), parentheses ()
- Example: To calculate 25 * 4 + 10, use calculator("25 * 4 + 10")
- Returns exact numerical result`

const systemPrompt = `You are a mathematical assistant with access to a calculator tool.

` + calculatorDescription + `

When you need to perform calculations:
1. Use the calculator tool by writing: calculator("expression")
2. Provide the final answer clearly

If calculation is needed, first show calculator("expression"), then provide the answer.
If you can answer directly (e.g., basic facts), just answer directly.`

const finalPrompt = `Original query: %s
Calculation performed: %s = %s

Provide a clear, natural language answer incorporating this result.`

// extractPatterns are tried in order; the first match wins.
var extractPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)calculator\(["'](.+?)["']\)`),
	regexp.MustCompile(`(?i)calculate\(["'](.+?)["']\)`),
	regexp.MustCompile(`(?i)CALCULATE:\s*(.+?)(?:\n|$)`),
}

// ExtractCalculation returns the expression requested in a backend response.
func ExtractCalculation(response string) (string, bool) {
	for _, re := range extractPatterns {
		if m := re.FindStringSubmatch(response); m != nil {
			expr := strings.TrimSpace(m[1])
			if expr != "" {
				return expr, true
			}
		}
	}
	return "", false
}

// MathAgent answers math queries with a deterministic calculator in the loop.
type MathAgent struct {
	backend    llm.Completer
	calculator Calculator
	timeout    time.Duration
	logger     *zap.Logger
}

// NewMathAgent creates a math agent. A nil calculator uses the plain evaluator.
func NewMathAgent(backend llm.Completer, calculator Calculator, timeout time.Duration, logger *zap.Logger) *MathAgent {
	if calculator == nil {
		calculator = Evaluator
	}
	return &MathAgent{
		backend:    backend,
		calculator: calculator,
		timeout:    timeout,
		logger:     logging.OrNop(logger),
	}
}

// Solve answers query. Evaluation failures degrade the answer instead of failing;
// only a failed first backend call is returned as an error.
func (a *MathAgent) Solve(ctx context.Context, query string) (*domain.SolveResult, error) {
	first, err := a.complete(ctx, []llm.Message{llm.System(systemPrompt), llm.User(query)})
	if err != nil {
		return nil, fmt.Errorf("math backend: %w", err)
	}

	result := &domain.SolveResult{Answer: first}

	expr, ok := ExtractCalculation(first)
	if !ok {
		return result, nil
	}

	value, err := a.calculator.Calculate(ctx, expr)
	if err != nil {
		a.logger.Info("calculation failed, answering with estimate", zap.String("expression", expr), zap.Error(err))
		result.Answer = fmt.Sprintf("I attempted a calculation but encountered an error: %v. Let me provide an estimate: %s", err, first)
		return result, nil
	}

	result.ToolUsed = true
	result.Calculation = &expr
	result.CalculationResult = &value

	formatted := calc.Format(value)
	final, err := a.complete(ctx, []llm.Message{llm.User(fmt.Sprintf(finalPrompt, query, expr, formatted))})
	if err != nil {
		a.logger.Warn("grounded answer call failed", zap.String("expression", expr), zap.Error(err))
		result.Answer = fmt.Sprintf("%s\n\nExact result: %s = %s", first, expr, formatted)
		return result, nil
	}
	result.Answer = final
	return result, nil
}

func (a *MathAgent) complete(ctx context.Context, messages []llm.Message) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	resp, err := a.backend.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
