// Package config loads the process-wide Config for the semantic browser
// knowledge base: a YAML file on disk, overridden by environment
// variables, matching the recognised options of spec.md §6.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all process configuration.
type Config struct {
	Auth       AuthConfig       `yaml:"auth"`
	KG         KGConfig         `yaml:"kg"`
	Inference  InferenceConfig  `yaml:"inference"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Browser    BrowserConfig    `yaml:"browser"`
	Agent      AgentConfig      `yaml:"agent"`
	Validator  ValidatorConfig  `yaml:"validator"`
	Logging    LoggingConfig    `yaml:"logging"`
	LLM        LLMConfig        `yaml:"llm"`
	HTTP       HTTPConfig       `yaml:"http"`
	Workspace  string           `yaml:"workspace"`
}

// AuthConfig configures JWT issuance/validation and revocation.
type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	TokenLifetime       time.Duration `yaml:"token_lifetime"`
	RevocationStoreURL  string `yaml:"revocation_store_url"`
	RevocationFailClosed bool  `yaml:"revocation_fail_closed"`
}

// KGConfig configures the triple store.
type KGConfig struct {
	PersistPath      string `yaml:"persist_path"`
	InferMaxIterations int  `yaml:"infer_max_iterations"`
}

// InferenceConfig configures the ML link-prediction engine.
type InferenceConfig struct {
	EntityTensorPath      string  `yaml:"entity_tensor_path"`
	EntityMappingPath     string  `yaml:"entity_mapping_path"`
	RelationTensorPath    string  `yaml:"relation_tensor_path"`
	RelationMappingPath   string  `yaml:"relation_mapping_path"`
	EmbeddingType         string  `yaml:"embedding_type"` // TransE, DistMult, ComplEx
	ConfidenceThreshold   float64 `yaml:"confidence_threshold"`
	TopK                  int     `yaml:"top_k"`
	SampleSize            int     `yaml:"sample_size"`
	MaxInserts            int     `yaml:"max_inserts"`
}

// RateLimitConfig configures the per-client fixed-window limiter.
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Window            time.Duration `yaml:"window"`
}

// BrowserConfig configures the headless browser pool.
type BrowserConfig struct {
	PoolSize      int           `yaml:"pool_size"`
	Timeout       time.Duration `yaml:"timeout"`
	DebuggerURL   string        `yaml:"debugger_url"`
	Headless      bool          `yaml:"headless"`
}

// AgentConfig configures the ReAct orchestrator defaults.
type AgentConfig struct {
	MaxIterations    int           `yaml:"max_iterations"`
	Timeout          time.Duration `yaml:"timeout"`
	ObservationCap   int           `yaml:"observation_cap_bytes"`
}

// ValidatorConfig configures the input validator's size caps.
type ValidatorConfig struct {
	MaxHTMLSizeBytes  int `yaml:"max_html_size_bytes"`
	MaxQueryLength    int `yaml:"max_query_length"`
	TextPreviewCapBytes int `yaml:"text_preview_cap_bytes"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`
	DebugMode  bool            `yaml:"debug_mode"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// LLMConfig configures the default LLM provider used by the agent.
type LLMConfig struct {
	Provider string `yaml:"provider"` // genai, mock
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Default returns production-sane defaults matching spec.md's stated
// defaults (10 per 60s rate limit, 4 tab pool, 24h token lifetime, ...).
func Default() *Config {
	return &Config{
		Auth: AuthConfig{
			TokenLifetime: 24 * time.Hour,
		},
		KG: KGConfig{
			InferMaxIterations: 32,
		},
		Inference: InferenceConfig{
			EmbeddingType:       "TransE",
			ConfidenceThreshold: 0.7,
			TopK:                5,
			SampleSize:          100,
			MaxInserts:          1000,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 10,
			Window:            60 * time.Second,
		},
		Browser: BrowserConfig{
			PoolSize: 4,
			Timeout:  30 * time.Second,
			Headless: true,
		},
		Agent: AgentConfig{
			MaxIterations:  10,
			Timeout:        2 * time.Minute,
			ObservationCap: 8 * 1024,
		},
		Validator: ValidatorConfig{
			MaxHTMLSizeBytes:    10 * 1024 * 1024,
			MaxQueryLength:      10000,
			TextPreviewCapBytes: 4 * 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		LLM: LLMConfig{
			Provider: "mock",
		},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			RequestTimeout: 30 * time.Second,
		},
	}
}

// Load reads path (if non-empty and present) as YAML over the defaults,
// loads a .env file from the working directory if present, then applies
// environment-variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort; absent .env is not an error

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("AUTH_REVOCATION_FAIL_CLOSED"); v != "" {
		cfg.Auth.RevocationFailClosed = v == "true" || v == "1"
	}
	if v := os.Getenv("KG_PERSIST_PATH"); v != "" {
		cfg.KG.PersistPath = v
	}
	if v := os.Getenv("KG_INFER_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.KG.InferMaxIterations = n
		}
	}
	if v := os.Getenv("NER_MODEL_PATH"); v != "" {
		_ = v // recognised but unused: no ML annotator strategy is built from it
	}
	if v := os.Getenv("KG_ENTITY_TENSOR_PATH"); v != "" {
		cfg.Inference.EntityTensorPath = v
	}
	if v := os.Getenv("KG_ENTITY_MAPPING_PATH"); v != "" {
		cfg.Inference.EntityMappingPath = v
	}
	if v := os.Getenv("KG_RELATION_TENSOR_PATH"); v != "" {
		cfg.Inference.RelationTensorPath = v
	}
	if v := os.Getenv("KG_RELATION_MAPPING_PATH"); v != "" {
		cfg.Inference.RelationMappingPath = v
	}
	if v := os.Getenv("KG_EMBEDDING_TYPE"); v != "" {
		cfg.Inference.EmbeddingType = v
	}
	if v := os.Getenv("KG_INFERENCE_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Inference.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("KG_INFERENCE_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Inference.TopK = n
		}
	}
	if v := os.Getenv("KG_INFERENCE_SAMPLE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Inference.SampleSize = n
		}
	}
	if v := os.Getenv("KG_INFERENCE_MAX_INSERTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Inference.MaxInserts = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("BROWSER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Browser.PoolSize = n
		}
	}
	if v := os.Getenv("BROWSER_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Browser.Timeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("AGENT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxIterations = n
		}
	}
	if v := os.Getenv("AGENT_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.Timeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("MAX_HTML_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Validator.MaxHTMLSizeBytes = n
		}
	}
	if v := os.Getenv("MAX_QUERY_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Validator.MaxQueryLength = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLM_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Provider = "genai"
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("HTTP_REQUEST_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RequestTimeout = time.Duration(n) * time.Second
		}
	}
}

// validate enforces the startup-fatal checks of spec.md §4.6/§6 (exit
// code 1 conditions): a configured JWT secret must be at least 32 bytes.
func validate(cfg *Config) error {
	if cfg.Auth.JWTSecret != "" && len(cfg.Auth.JWTSecret) < 32 {
		return fmt.Errorf("config: JWT_SECRET must be at least 32 bytes, got %d", len(cfg.Auth.JWTSecret))
	}
	return nil
}
