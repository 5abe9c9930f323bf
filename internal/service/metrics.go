package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	routeDecisions  *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	dispatchErrors  *prometheus.CounterVec
	calculatorCalls *prometheus.CounterVec
	toolInvocations *prometheus.CounterVec
	documentsStored prometheus.Counter
	sessionsSwept   prometheus.Counter
	sessionsDeleted prometheus.Counter
}

func newMetrics(activeSessions func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		routeDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelrouter",
			Subsystem: "router",
			Name:      "decisions_total",
			Help:      "Routing decisions by category and method",
		}, []string{"category", "method"}),
		dispatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "modelrouter",
			Subsystem: "chat",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency of a chat turn from routing to answer",
			Buckets:   []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}, []string{"category"}),
		dispatchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelrouter",
			Subsystem: "chat",
			Name:      "dispatch_errors_total",
			Help:      "Chat turns that failed after routing",
		}, []string{"category"}),
		calculatorCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelrouter",
			Subsystem: "agent",
			Name:      "calculator_total",
			Help:      "Math agent answers by outcome: used, skipped",
		}, []string{"outcome"}),
		toolInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelrouter",
			Subsystem: "tools",
			Name:      "invocations_total",
			Help:      "Direct tool invocations by tool and status",
		}, []string{"tool", "status"}),
		documentsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "modelrouter",
			Subsystem: "documents",
			Name:      "stored_total",
			Help:      "Documents extracted and stored",
		}),
		sessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "modelrouter",
			Subsystem: "sessions",
			Name:      "swept_total",
			Help:      "Sessions removed for inactivity",
		}),
		sessionsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "modelrouter",
			Subsystem: "sessions",
			Name:      "deleted_total",
			Help:      "Sessions deleted on request",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "modelrouter",
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Sessions currently held in memory",
	}, func() float64 { return float64(activeSessions()) })

	return m
}

// Registry returns the registry to expose on /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
