// Package router picks the backend for a query: deterministic rules first,
// a model classifier only when the rules are inconclusive.
package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
	"github.com/xiaot623/gogo/modelrouter/internal/logging"
)

// DefaultAcceptThreshold is the minimum rule confidence that skips the model classifier.
const DefaultAcceptThreshold = 0.70

// RuleDetector is the deterministic tier.
type RuleDetector interface {
	Detect(query string, documentAvailable bool) *domain.RouteDecision
}

// Classifier is the model-based tier. Implementations must not fail; they degrade instead.
type Classifier interface {
	Classify(ctx context.Context, query, documentContext string) domain.RouteDecision
}

// Router combines a rule detector and a model classifier.
type Router struct {
	rules      RuleDetector
	classifier Classifier
	threshold  float64
	logger     *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithThreshold overrides the acceptance threshold.
func WithThreshold(t float64) Option {
	return func(r *Router) { r.threshold = t }
}

// WithLogger sets the router logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = logging.OrNop(l) }
}

// New creates a router.
func New(rules RuleDetector, classifier Classifier, opts ...Option) *Router {
	r := &Router{
		rules:      rules,
		classifier: classifier,
		threshold:  DefaultAcceptThreshold,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify returns the final decision for query.
func (r *Router) Classify(ctx context.Context, query string, view domain.SessionView) domain.RouteDecision {
	documentAvailable := view != nil && view.DocumentUploaded()

	ruleDecision := r.rules.Detect(query, documentAvailable)
	if ruleDecision != nil && ruleDecision.Confidence >= r.threshold {
		return *ruleDecision
	}

	modelDecision := r.classifier.Classify(ctx, query, DocumentContext(view))

	// A weak rule decision beats an equally weak model decision only when strictly more confident.
	if ruleDecision != nil && modelDecision.Confidence < r.threshold {
		if ruleDecision.Confidence > modelDecision.Confidence {
			return *ruleDecision
		}
	}
	return modelDecision
}

// Route classifies query and builds its routing metadata.
func (r *Router) Route(ctx context.Context, query string, view domain.SessionView) (domain.RouteDecision, domain.RoutingMetadata) {
	decision := r.Classify(ctx, query, view)
	r.logger.Debug("route decided",
		zap.String("category", string(decision.Category)),
		zap.String("model_type", string(decision.ModelType)),
		zap.String("method", string(decision.Method)),
		zap.Float64("confidence", decision.Confidence))
	return decision, decision.Metadata()
}
