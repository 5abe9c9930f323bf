package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/modelrouter/internal/adapter/llm"
	"github.com/xiaot623/gogo/modelrouter/internal/calc"
)

func TestSolveUsesCalculator(t *testing.T) {
	mock := llm.NewMockClient(
		`Let me work it out: calculator("156 * 789 + 2456")`,
		"The answer is 125,540.",
	)
	agent := NewMathAgent(mock, nil, time.Second, nil)

	res, err := agent.Solve(context.Background(), "What is 156 times 789 plus 2456?")
	require.NoError(t, err)
	assert.True(t, res.ToolUsed)
	require.NotNil(t, res.Calculation)
	assert.Equal(t, "156 * 789 + 2456", *res.Calculation)
	require.NotNil(t, res.CalculationResult)
	assert.Equal(t, 125540.0, *res.CalculationResult)
	assert.Equal(t, "The answer is 125,540.", res.Answer)

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, llm.RoleSystem, calls[0][0].Role)
	assert.Contains(t, calls[0][0].Content, `calculator("expression")`)
	assert.Equal(t, "What is 156 times 789 plus 2456?", calls[0][1].Content)
	assert.Contains(t, calls[1][0].Content, "Calculation performed: 156 * 789 + 2456 = 125540")
}

func TestSolveWithoutCalculationReturnsAnswerUnmodified(t *testing.T) {
	mock := llm.NewMockClient("Pi is roughly 3.14159.")
	res, err := NewMathAgent(mock, nil, time.Second, nil).Solve(context.Background(), "what is pi")
	require.NoError(t, err)
	assert.False(t, res.ToolUsed)
	assert.Nil(t, res.Calculation)
	assert.Nil(t, res.CalculationResult)
	assert.Equal(t, "Pi is roughly 3.14159.", res.Answer)
	assert.Equal(t, 1, mock.CallCount())
}

func TestSolveUnparseableExpressionDegrades(t *testing.T) {
	first := `calculator("sqrt(16) + x")`
	mock := llm.NewMockClient(first)
	res, err := NewMathAgent(mock, nil, time.Second, nil).Solve(context.Background(), "root of 16 plus x")
	require.NoError(t, err)
	assert.False(t, res.ToolUsed)
	assert.Nil(t, res.CalculationResult)
	assert.Contains(t, res.Answer, first, "original answer is kept verbatim")
	assert.Contains(t, res.Answer, "Let me provide an estimate")
	assert.Equal(t, 1, mock.CallCount(), "no grounded second call after a failed evaluation")
}

func TestSolveSecondCallFailureKeepsExactResult(t *testing.T) {
	mock := llm.NewMockClient(`CALCULATE: 10 ÷ 2 × 3`).Enqueue(llm.MockResponse{Err: errors.New("overloaded")})
	res, err := NewMathAgent(mock, nil, time.Second, nil).Solve(context.Background(), "ten over two times three")
	require.NoError(t, err)
	assert.True(t, res.ToolUsed)
	assert.Equal(t, 15.0, *res.CalculationResult)
	assert.Contains(t, res.Answer, "Exact result: 10 ÷ 2 × 3 = 15")
}

func TestSolveFirstCallFailureIsReturned(t *testing.T) {
	mock := llm.NewMockClient().Enqueue(llm.MockResponse{Err: errors.New("down")})
	_, err := NewMathAgent(mock, nil, time.Second, nil).Solve(context.Background(), "1+1")
	assert.Error(t, err)
}

func TestSolveCalculatorOverride(t *testing.T) {
	blocked := errors.New("blocked by policy")
	calculator := CalculatorFunc(func(_ context.Context, expr string) (float64, error) {
		return 0, &calc.EvaluationError{Expression: expr, Cause: blocked}
	})
	mock := llm.NewMockClient(`calculate('2 + 2')`)
	res, err := NewMathAgent(mock, calculator, time.Second, nil).Solve(context.Background(), "2+2")
	require.NoError(t, err)
	assert.False(t, res.ToolUsed)
	assert.Contains(t, res.Answer, "blocked by policy")
}

func TestExtractCalculation(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`calculator("2 + 2")`, "2 + 2", true},
		{`Calculator('3*4') then calculate("9")`, "3*4", true},
		{`calculate("5 ^ 2")`, "5 ^ 2", true},
		{"CALCULATE: 7 * 6\nso the answer is 42", "7 * 6", true},
		{"calculate:   1 + 1", "1 + 1", true},
		{`calculate("9") but first calculator("8")`, "8", true},
		{"just text", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractCalculation(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
