// Package service wires routing, the math agent, the document pipeline and
// sessions into the chat operations served by the transports.
package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/adapter/llm"
	"github.com/xiaot623/gogo/modelrouter/internal/config"
	"github.com/xiaot623/gogo/modelrouter/internal/domain"
	"github.com/xiaot623/gogo/modelrouter/internal/rag"
	"github.com/xiaot623/gogo/modelrouter/internal/repository"
	"github.com/xiaot623/gogo/modelrouter/internal/router"
	"github.com/xiaot623/gogo/modelrouter/internal/session"
	"github.com/xiaot623/gogo/modelrouter/internal/tools"
)

type Service struct {
	store    repository.Store
	backends *llm.Backends
	tools    *tools.Registry
	sessions *session.Registry
	router   *router.Router
	rag      *rag.Manager
	config   *config.Config
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithSessions replaces the session registry.
func WithSessions(r *session.Registry) Option {
	return func(s *Service) { s.sessions = r }
}

// WithClock replaces the clock used for event timestamps and latencies.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(cfg *config.Config, store repository.Store, backends *llm.Backends, toolRegistry *tools.Registry, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:    store,
		backends: backends,
		tools:    toolRegistry,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = session.NewRegistry()
	}

	classifier := router.NewModelClassifier(backends.Classification(), cfg.ClassifierTimeout, logger)
	s.router = router.New(router.NewPatternDetector(), classifier,
		router.WithThreshold(cfg.AcceptThreshold),
		router.WithLogger(logger))

	s.rag = rag.NewManager(store, backends.Get(domain.BackendDocument), rag.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		TopK:         cfg.TopK,
		MaxBytes:     cfg.MaxUploadBytes(),
	}, logger)

	s.metrics = newMetrics(s.sessions.Len)
	return s
}

// Sessions exposes the session registry.
func (s *Service) Sessions() *session.Registry { return s.sessions }

// Metrics exposes the service's metric collectors.
func (s *Service) Metrics() *Metrics { return s.metrics }
