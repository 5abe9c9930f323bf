package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/modelrouter/internal/adapter/llm"
	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"prose around", `Here you go: {"a":{"b":2}} hope it helps {"c":3}`, `{"a":{"b":2}}`},
		{"brace in string", `{"r":"use } and { freely","x":"\"}"}`, `{"r":"use } and { freely","x":"\"}"}`},
		{"unbalanced first", `{ oops {"a":1}`, `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ExtractJSONObject("no json here")
	assert.ErrorIs(t, err, ErrNoJSONObject)
}

func TestParseClassification(t *testing.T) {
	t.Run("string confidence", func(t *testing.T) {
		d, err := ParseClassification(`{"category":"math","confidence":"0.9","reasoning":"numbers"}`)
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryMath, d.Category)
		assert.Equal(t, domain.BackendMath, d.ModelType)
		assert.Equal(t, 0.9, d.Confidence)
	})

	t.Run("clamped", func(t *testing.T) {
		d, err := ParseClassification(`{"category":"writing","confidence":1.7}`)
		require.NoError(t, err)
		assert.Equal(t, 1.0, d.Confidence)
		assert.Equal(t, domain.BackendGeneral, d.ModelType)
		assert.Equal(t, "LLM classification", d.Reasoning)

		d, err = ParseClassification(`{"category":"writing","confidence":-3}`)
		require.NoError(t, err)
		assert.Equal(t, 0.0, d.Confidence)
	})

	t.Run("unknown category", func(t *testing.T) {
		d, err := ParseClassification(`{"category":"sports","confidence":0.8}`)
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryGeneral, d.Category)
		assert.Equal(t, domain.BackendGeneral, d.ModelType)
	})

	t.Run("missing fields", func(t *testing.T) {
		d, err := ParseClassification(`{}`)
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryGeneral, d.Category)
		assert.Equal(t, 0.5, d.Confidence)
		assert.Equal(t, domain.MethodModelBased, d.Method)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseClassification("I think it's math")
		assert.Error(t, err)
	})

	t.Run("non-object payloads", func(t *testing.T) {
		for _, text := range []string{"null", `"math"`, "[1, 2]", "0.9", ""} {
			_, err := ParseClassification(text)
			assert.ErrorIs(t, err, ErrNoJSONObject, text)
		}
	})
}

func TestClassifyNamesParseFailure(t *testing.T) {
	backend := llm.NewMockClient("null")
	d := NewModelClassifier(backend, 0, nil).Classify(context.Background(), "hello", "")

	assert.Equal(t, domain.CategoryGeneral, d.Category)
	assert.Equal(t, domain.MethodModelBased, d.Method)
	assert.Contains(t, d.Reasoning, "Classification error")
	assert.Contains(t, d.Reasoning, ErrNoJSONObject.Error())
}
