package calc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"2+2", 4},
		{"10 ^ 2", 100},
		{"10 ÷ 2 × 3", 15},
		{"156 * 789 + 2456", 125540},
		{"2 ** 3", 8},
		{"2^3^2", 512},
		{"-2^2", -4},
		{"(-2)^2", 4},
		{"2^-1", 0.5},
		{"1,000 + 1", 1001},
		{"1,234,567.5 * 2", 2469135},
		{"((1 + 2) * (3 + 4)) / 7", 3},
		{"  .5 + 1.5 ", 2},
		{"--3", 3},
		{"8 / 4 / 2", 1},
		{"10 - 4 - 3", 3},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Evaluate(tc.expr)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestEvaluateRejects(t *testing.T) {
	cases := []struct {
		name string
		expr string
		want error
	}{
		{"injection", "2+2; __import__('os')", ErrInvalidCharacter},
		{"identifier", "sqrt(4)", ErrInvalidCharacter},
		{"empty", "   ", ErrEmptyExpression},
		{"division by zero", "1 / (2 - 2)", ErrDivisionByZero},
		{"zero to negative power", "0 ^ -1", ErrDivisionByZero},
		{"dangling operator", "2 +", ErrSyntax},
		{"unbalanced", "(1 + 2", ErrSyntax},
		{"extra close", "1 + 2)", ErrSyntax},
		{"argument comma", "2,3", ErrMisplacedComma},
		{"leading comma", ",5", ErrMisplacedComma},
		{"double dot", "1.2.3", ErrSyntax},
		{"overflow", "10 ^ 400", ErrNonFinite},
		{"negative root", "(-8) ^ 0.5", ErrNonFinite},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Evaluate(tc.expr)
			require.Error(t, err)

			var evalErr *EvaluationError
			require.True(t, errors.As(err, &evalErr), "expected *EvaluationError, got %T", err)
			assert.Equal(t, tc.expr, evalErr.Expression)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEvaluatorIsPure(t *testing.T) {
	e := NewEvaluator()
	for i := 0; i < 3; i++ {
		v, err := e.Evaluate("3 * (4 + 5)")
		require.NoError(t, err)
		assert.Equal(t, 27.0, v)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "125540", Format(125540))
	assert.Equal(t, "0.5", Format(0.5))
	assert.Equal(t, "-4", Format(-4))
}
