package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/adapter/llm"
	"github.com/xiaot623/gogo/modelrouter/internal/domain"
	"github.com/xiaot623/gogo/modelrouter/internal/logging"
)

// defaultModelConfidence is used when the model omits or garbles its confidence.
const defaultModelConfidence = 0.5

// ErrNoJSONObject is returned when a text contains no balanced JSON object.
var ErrNoJSONObject = errors.New("no JSON object found")

const classificationPrompt = `Classify the following user query into exactly ONE category:

Categories:
- math: Mathematical calculations, equations, numerical problems
- coding: Programming, code implementation, debugging, algorithms
- writing: Creative writing, essays, content generation, rewriting
- document: Questions about uploaded documents or files
- general: General conversation, questions, chitchat

%s

User Query: %q

Respond ONLY with a JSON object in this format:
{"category": "...", "confidence": 0.0-1.0, "reasoning": "..."}`

// ModelClassifier asks the classification backend for a category. It never fails.
type ModelClassifier struct {
	backend llm.Completer
	timeout time.Duration
	logger  *zap.Logger
}

// NewModelClassifier creates a classifier. timeout <= 0 means only the caller's deadline applies.
func NewModelClassifier(backend llm.Completer, timeout time.Duration, logger *zap.Logger) *ModelClassifier {
	return &ModelClassifier{backend: backend, timeout: timeout, logger: logging.OrNop(logger)}
}

// DocumentContext renders the prompt note about an uploaded document.
func DocumentContext(view domain.SessionView) string {
	if view == nil || !view.DocumentUploaded() {
		return ""
	}
	return fmt.Sprintf("Note: User has uploaded document '%s'.", view.DocumentName())
}

// BuildPrompt renders the classification prompt.
func BuildPrompt(query, documentContext string) string {
	return fmt.Sprintf(classificationPrompt, documentContext, query)
}

// Classify returns the model's decision, or a general fallback on any failure.
func (c *ModelClassifier) Classify(ctx context.Context, query, documentContext string) domain.RouteDecision {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.backend.Complete(ctx, []llm.Message{llm.User(BuildPrompt(query, documentContext))})
	if err != nil {
		c.logger.Warn("classification call failed", zap.Error(err))
		return fallbackDecision(err)
	}

	decision, err := ParseClassification(resp.Content)
	if err != nil {
		c.logger.Warn("classification response unparseable", zap.Error(err), zap.String("response", resp.Content))
		return fallbackDecision(err)
	}
	return decision
}

func fallbackDecision(err error) domain.RouteDecision {
	return domain.NewDecision(domain.CategoryGeneral, defaultModelConfidence,
		fmt.Sprintf("Classification error, using general model: %v", err), domain.MethodModelBased)
}

type classification struct {
	Category   string          `json:"category"`
	Confidence json.RawMessage `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// ParseClassification extracts a decision from a model response.
// A response without a JSON object is an error. Unknown categories map to general and confidence is clamped to [0,1].
func ParseClassification(text string) (domain.RouteDecision, error) {
	text = strings.TrimSpace(text)
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return domain.RouteDecision{}, fmt.Errorf("invalid classification response: %w", err)
	}

	var out classification
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return domain.RouteDecision{}, fmt.Errorf("invalid classification JSON: %w", err)
	}

	category, _ := domain.ParseCategory(strings.ToLower(strings.TrimSpace(out.Category)))

	reasoning := out.Reasoning
	if reasoning == "" {
		reasoning = "LLM classification"
	}
	return domain.NewDecision(category, parseConfidence(out.Confidence), reasoning, domain.MethodModelBased), nil
}

// parseConfidence accepts a JSON number or a numeric string.
func parseConfidence(raw json.RawMessage) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return defaultModelConfidence
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return defaultModelConfidence
}

// ExtractJSONObject returns the first balanced {...} substring of text.
// Braces inside JSON string literals are ignored.
func ExtractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end := matchBrace(text, start); end > 0 {
			return text[start : end+1], nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
