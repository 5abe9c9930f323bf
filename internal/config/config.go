// Package config provides configuration for the model router.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names an optional YAML or TOML file loaded before env overrides.
const EnvConfigFile = "MODELROUTER_CONFIG"

// Config holds the model router configuration.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port" toml:"http_port"`

	// LLM backends
	Provider                string  `yaml:"provider" toml:"provider"`
	BaseURL                 string  `yaml:"base_url" toml:"base_url"`
	APIKey                  string  `yaml:"api_key" toml:"api_key"`
	GeneralModel            string  `yaml:"general_model" toml:"general_model"`
	CodeModel               string  `yaml:"code_model" toml:"code_model"`
	MathModel               string  `yaml:"math_model" toml:"math_model"`
	DocumentModel           string  `yaml:"document_model" toml:"document_model"`
	ClassificationModel     string  `yaml:"classification_model" toml:"classification_model"`
	Temperature             float64 `yaml:"temperature" toml:"temperature"`
	MathTemperature         float64 `yaml:"math_temperature" toml:"math_temperature"`
	MaxTokens               int     `yaml:"max_tokens" toml:"max_tokens"`
	ClassificationMaxTokens int     `yaml:"classification_max_tokens" toml:"classification_max_tokens"`
	RateLimitRPS            float64 `yaml:"rate_limit_rps" toml:"rate_limit_rps"`
	RateLimitBurst          int     `yaml:"rate_limit_burst" toml:"rate_limit_burst"`

	// Timeouts
	LLMTimeout        time.Duration `yaml:"llm_timeout" toml:"llm_timeout"`
	ClassifierTimeout time.Duration `yaml:"classifier_timeout" toml:"classifier_timeout"`
	AgentTimeout      time.Duration `yaml:"agent_timeout" toml:"agent_timeout"`

	// Routing
	AcceptThreshold float64 `yaml:"accept_threshold" toml:"accept_threshold"`
	HistoryLimit    int     `yaml:"history_limit" toml:"history_limit"`

	// Database
	DatabaseURL string `yaml:"database_url" toml:"database_url"`

	// Documents
	MaxUploadMB  int `yaml:"max_upload_mb" toml:"max_upload_mb"`
	ChunkSize    int `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" toml:"chunk_overlap"`
	TopK         int `yaml:"top_k" toml:"top_k"`

	// Sessions
	SessionMaxAge time.Duration `yaml:"session_max_age" toml:"session_max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval" toml:"sweep_interval"`

	// Tool policy
	PolicyFile string `yaml:"policy_file" toml:"policy_file"`

	// Logging
	LogLevel      string `yaml:"log_level" toml:"log_level"`
	LogFormat     string `yaml:"log_format" toml:"log_format"`
	LogFile       string `yaml:"log_file" toml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb" toml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups" toml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days" toml:"log_max_age_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:                8000,
		Provider:                "gemini",
		GeneralModel:            "gemini-2.5-flash",
		CodeModel:               "gemini-2.5-flash",
		MathModel:               "gemini-2.5-flash",
		DocumentModel:           "gemini-2.5-flash",
		ClassificationModel:     "gemini-2.5-flash",
		Temperature:             0.3,
		MathTemperature:         0.1,
		MaxTokens:               2048,
		ClassificationMaxTokens: 100,
		RateLimitBurst:          1,
		LLMTimeout:              60 * time.Second,
		ClassifierTimeout:       10 * time.Second,
		AgentTimeout:            60 * time.Second,
		AcceptThreshold:         0.70,
		HistoryLimit:            5,
		DatabaseURL:             ":memory:",
		MaxUploadMB:             10,
		ChunkSize:               1000,
		ChunkOverlap:            200,
		TopK:                    3,
		SessionMaxAge:           24 * time.Hour,
		SweepInterval:           10 * time.Minute,
		LogLevel:                "info",
		LogFormat:               "json",
		LogMaxSizeMB:            100,
		LogMaxBackups:           3,
		LogMaxAgeDays:           28,
	}
}

// Load loads configuration from defaults, the optional config file and environment variables.
func Load() (*Config, error) {
	return LoadPath(os.Getenv(EnvConfigFile))
}

// LoadPath is Load with an explicit config file. An empty path skips the file.
func LoadPath(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile decodes a YAML or TOML file over cfg. The format follows the extension.
func LoadFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to decode TOML config: %w", err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.Provider = getEnv("LLM_PROVIDER", c.Provider)
	c.BaseURL = getEnv("LLM_BASE_URL", c.BaseURL)
	c.APIKey = getEnv("LLM_API_KEY", getEnv("GOOGLE_API_KEY", c.APIKey))
	c.GeneralModel = getEnv("MODEL_GENERAL", c.GeneralModel)
	c.CodeModel = getEnv("MODEL_CODE", c.CodeModel)
	c.MathModel = getEnv("MODEL_MATH", c.MathModel)
	c.DocumentModel = getEnv("MODEL_DOCUMENT", c.DocumentModel)
	c.ClassificationModel = getEnv("MODEL_CLASSIFICATION", c.ClassificationModel)
	c.Temperature = getEnvFloat("LLM_TEMPERATURE", c.Temperature)
	c.MathTemperature = getEnvFloat("LLM_MATH_TEMPERATURE", c.MathTemperature)
	c.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.MaxTokens)
	c.RateLimitRPS = getEnvFloat("LLM_RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = getEnvInt("LLM_RATE_LIMIT_BURST", c.RateLimitBurst)
	c.LLMTimeout = getEnvDuration("LLM_TIMEOUT_MS", c.LLMTimeout)
	c.ClassifierTimeout = getEnvDuration("CLASSIFIER_TIMEOUT_MS", c.ClassifierTimeout)
	c.AgentTimeout = getEnvDuration("AGENT_TIMEOUT_MS", c.AgentTimeout)
	c.AcceptThreshold = getEnvFloat("ROUTER_ACCEPT_THRESHOLD", c.AcceptThreshold)
	c.HistoryLimit = getEnvInt("HISTORY_LIMIT", c.HistoryLimit)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", c.MaxUploadMB)
	c.ChunkSize = getEnvInt("CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", c.ChunkOverlap)
	c.TopK = getEnvInt("TOP_K_RETRIEVAL", c.TopK)
	c.SessionMaxAge = getEnvDuration("SESSION_MAX_AGE_MS", c.SessionMaxAge)
	c.SweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL_MS", c.SweepInterval)
	c.PolicyFile = getEnv("TOOL_POLICY_FILE", c.PolicyFile)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
}

// Validate rejects settings the router cannot run with.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "gemini", "ollama", "mock":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port out of range: %d", c.HTTPPort)
	}
	if c.AcceptThreshold < 0 || c.AcceptThreshold > 1 {
		return fmt.Errorf("accept_threshold must be within [0,1], got %v", c.AcceptThreshold)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be within [0, chunk_size)")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	return nil
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
