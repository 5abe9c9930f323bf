package domain

// RouteDecision is the outcome of classifying one query.
type RouteDecision struct {
	Category   Category    `json:"category"`
	ModelType  BackendType `json:"model_type"`
	Confidence float64     `json:"confidence"`
	Reasoning  string      `json:"reasoning"`
	Method     Method      `json:"method"`
}

// NewDecision builds a decision whose backend selector is derived from the category.
// Confidence is clamped to [0,1].
func NewDecision(category Category, confidence float64, reasoning string, method Method) RouteDecision {
	return RouteDecision{
		Category:   category,
		ModelType:  BackendFor(category),
		Confidence: ClampConfidence(confidence),
		Reasoning:  reasoning,
		Method:     method,
	}
}

// ClampConfidence bounds c to [0,1]. NaN becomes 0.
func ClampConfidence(c float64) float64 {
	if c != c || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Metadata projects the decision into routing metadata.
func (d RouteDecision) Metadata() RoutingMetadata {
	return RoutingMetadata{
		RouteCategory: d.Category,
		ModelUsed:     d.ModelType,
		RoutingReason: d.Reasoning,
		RoutingMethod: d.Method,
		Confidence:    d.Confidence,
	}
}

// RoutingMetadata is the serializable audit trail attached to assistant messages.
type RoutingMetadata struct {
	RouteCategory     Category    `json:"route_category"`
	ModelUsed         BackendType `json:"model_used"`
	RoutingReason     string      `json:"routing_reason"`
	RoutingMethod     Method      `json:"routing_method"`
	Confidence        float64     `json:"confidence"`
	CalculatorUsed    bool        `json:"calculator_used,omitempty"`
	Calculation       *string     `json:"calculation,omitempty"`
	CalculationResult *float64    `json:"calculation_result,omitempty"`
	ContextsUsed      *int        `json:"contexts_used,omitempty"`
}

// WithCalculation returns a copy carrying the calculator fields of a solve result.
func (m RoutingMetadata) WithCalculation(r *SolveResult) RoutingMetadata {
	if r == nil || !r.ToolUsed {
		return m
	}
	m.CalculatorUsed = true
	m.Calculation = r.Calculation
	m.CalculationResult = r.CalculationResult
	return m
}

// WithContexts returns a copy carrying the number of retrieved document contexts.
func (m RoutingMetadata) WithContexts(n int) RoutingMetadata {
	m.ContextsUsed = &n
	return m
}

// SolveResult is the outcome of the math tool agent.
type SolveResult struct {
	Answer            string   `json:"answer"`
	ToolUsed          bool     `json:"tool_used"`
	Calculation       *string  `json:"calculation,omitempty"`
	CalculationResult *float64 `json:"calculation_result,omitempty"`
}
