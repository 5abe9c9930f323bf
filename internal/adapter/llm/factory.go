package llm

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/config"
	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "MODELROUTER_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

const (
	defaultOpenAIURL = "http://localhost:4000"
	defaultOllamaURL = "http://localhost:11434"
)

// Backends is the pool of completion backends keyed by backend selector,
// plus the low-temperature classification variant.
type Backends struct {
	byType         map[domain.BackendType]Completer
	classification Completer
}

// NewBackends assembles a pool. Missing selectors fall back to the general backend.
func NewBackends(byType map[domain.BackendType]Completer, classification Completer) *Backends {
	b := &Backends{byType: make(map[domain.BackendType]Completer, len(byType)), classification: classification}
	for k, v := range byType {
		b.byType[k] = v
	}
	if b.classification == nil {
		b.classification = b.byType[domain.BackendGeneral]
	}
	return b
}

// Single uses one completer for every backend, including classification.
func Single(c Completer) *Backends {
	byType := make(map[domain.BackendType]Completer, len(domain.BackendTypes))
	for _, bt := range domain.BackendTypes {
		byType[bt] = c
	}
	return NewBackends(byType, c)
}

// Get returns the completer for a backend selector.
func (b *Backends) Get(t domain.BackendType) Completer {
	if c, ok := b.byType[t]; ok {
		return c
	}
	return b.byType[domain.BackendGeneral]
}

// Classification returns the classification completer.
func (b *Backends) Classification() Completer {
	return b.classification
}

// ParamsFor returns the generation parameters of a backend selector.
func ParamsFor(cfg *config.Config, t domain.BackendType) Params {
	p := Params{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	switch t {
	case domain.BackendCode:
		p.Model = cfg.CodeModel
	case domain.BackendMath:
		p.Model = cfg.MathModel
		p.Temperature = cfg.MathTemperature
	case domain.BackendDocument:
		p.Model = cfg.DocumentModel
	default:
		p.Model = cfg.GeneralModel
	}
	return p
}

// ClassificationParams returns the deterministic, short-output classification parameters.
func ClassificationParams(cfg *config.Config) Params {
	return Params{Model: cfg.ClassificationModel, Temperature: 0, MaxTokens: cfg.ClassificationMaxTokens}
}

// NewBackendsFromConfig creates the backend pool for the configured provider.
// If MODELROUTER_MODE=MOCK, every backend is a MockClient.
func NewBackendsFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backends, error) {
	if os.Getenv(EnvMode) == ModeMock || cfg.Provider == "mock" {
		logger.Info("mock mode detected, using mock LLM client")
		return Single(NewMockClient()), nil
	}

	var build func(Params) Completer
	switch cfg.Provider {
	case "openai":
		client := NewClient(orDefault(cfg.BaseURL, defaultOpenAIURL), cfg.APIKey, cfg.LLMTimeout)
		build = func(p Params) Completer { return NewOpenAIBackend(client, p) }
	case "gemini":
		client, err := NewGeminiClient(ctx, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		build = func(p Params) Completer { return NewGeminiBackend(client, p) }
	case "ollama":
		client, err := NewOllamaClient(orDefault(cfg.BaseURL, defaultOllamaURL), cfg.LLMTimeout)
		if err != nil {
			return nil, err
		}
		build = func(p Params) Completer { return NewOllamaBackend(client, p) }
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}

	// One limiter is shared by every backend of the provider.
	limiter := NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limited := func(c Completer) Completer { return NewRateLimited(c, limiter) }

	byType := make(map[domain.BackendType]Completer, len(domain.BackendTypes))
	for _, bt := range domain.BackendTypes {
		p := ParamsFor(cfg, bt)
		byType[bt] = limited(build(p))
		logger.Debug("backend configured",
			zap.String("backend", string(bt)),
			zap.String("model", p.Model),
			zap.Float64("temperature", p.Temperature))
	}

	logger.Info("LLM backends ready", zap.String("provider", cfg.Provider))
	return NewBackends(byType, limited(build(ClassificationParams(cfg)))), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
