package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rulesOnly = false
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestClassifyRulesOnly(t *testing.T) {
	out := execute(t, "classify", "--rules-only", "import", "numpy", "as", "np")

	var d domain.RouteDecision
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, domain.CategoryCoding, d.Category)
	assert.Equal(t, domain.MethodRuleBased, d.Method)
}

func TestClassifyMockProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "mock")

	out := execute(t, "classify", "tell", "me", "a", "story")

	var result struct {
		Decision domain.RouteDecision `json:"decision"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result.Decision.Category)
	assert.Equal(t, domain.MethodModelBased, result.Decision.Method)
}
