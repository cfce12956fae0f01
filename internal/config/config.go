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

// FileEnv names the env var holding an optional config file path.
const FileEnv = "EMBEDPREP_CONFIG"

type Config struct {
	Port string `yaml:"port" toml:"port"`

	// Auth
	APIKey string `yaml:"api_key" toml:"api_key"`

	// Generation
	GenerationProvider string `yaml:"generation_provider" toml:"generation_provider"`
	GeminiAPIKey       string `yaml:"gemini_api_key" toml:"gemini_api_key"`
	GenerationModel    string `yaml:"generation_model" toml:"generation_model"`
	AnthropicAPIKey    string `yaml:"anthropic_api_key" toml:"anthropic_api_key"`
	AnthropicModel     string `yaml:"anthropic_model" toml:"anthropic_model"`
	OpenAIAPIKey       string `yaml:"openai_api_key" toml:"openai_api_key"`
	OpenAIModel        string `yaml:"openai_model" toml:"openai_model"`
	PairsTemplate      string `yaml:"generate_pairs_template" toml:"generate_pairs_template"`
	TripletsTemplate   string `yaml:"generate_triplets_template" toml:"generate_triplets_template"`
	TemplateDir        string `yaml:"template_dir" toml:"template_dir"`

	// Storage
	GoogleCloudProject string `yaml:"google_cloud_project" toml:"google_cloud_project"`
	GoogleCloudBucket  string `yaml:"google_cloud_bucket" toml:"google_cloud_bucket"`
	OutputDir          string `yaml:"output_dir" toml:"output_dir"`
	DataDir            string `yaml:"data_dir" toml:"data_dir"`
	HFToken            string `yaml:"hf_token" toml:"hf_token"`

	// Generation cache
	CacheURL string        `yaml:"cache_url" toml:"cache_url"`
	CacheTTL time.Duration `yaml:"cache_ttl" toml:"cache_ttl"`

	// Worker pool
	WorkerCount           int `yaml:"worker_count" toml:"worker_count"`
	MaxQueueSize          int `yaml:"max_queue_size" toml:"max_queue_size"`
	MaxConcurrentGenerate int `yaml:"max_concurrent_generate" toml:"max_concurrent_generate"`
	BatchSize             int `yaml:"batch_size" toml:"batch_size"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes" toml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl" toml:"job_ttl"`

	// Retries
	RetryMaxAttempts  int           `yaml:"retry_max_attempts" toml:"retry_max_attempts"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay" toml:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay" toml:"retry_max_delay"`

	TokenizerModel string `yaml:"tokenizer_model" toml:"tokenizer_model"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext" toml:"pdf_fallback_pdftotext"`

	// Logging and tracing
	LogLevel         string `yaml:"log_level" toml:"log_level"`
	LogFormat        string `yaml:"log_format" toml:"log_format"`
	TelemetryEnabled bool   `yaml:"telemetry_enabled" toml:"telemetry_enabled"`
	OTLPEndpoint     string `yaml:"otlp_endpoint" toml:"otlp_endpoint"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                  "8090",
		GenerationProvider:    "gemini",
		GenerationModel:       "gemini-2.5-flash",
		AnthropicModel:        "claude-sonnet-4-5-20250929",
		OpenAIModel:           "gpt-4o-mini",
		PairsTemplate:         "generate_anchor_only.md",
		TripletsTemplate:      "generate_anchor_negative.md",
		OutputDir:             "data/jobs",
		DataDir:               "data",
		CacheTTL:              168 * time.Hour,
		WorkerCount:           2,
		MaxQueueSize:          100,
		MaxConcurrentGenerate: 10,
		BatchSize:             10,
		MaxUploadBytes:        52428800, // 50MB
		JobTTL:                1 * time.Hour,
		RetryMaxAttempts:      5,
		RetryInitialDelay:     1 * time.Second,
		RetryMaxDelay:         30 * time.Second,
		TokenizerModel:        "cl100k_base",
		PDFFallbackPdftotext:  true,
		LogLevel:              "info",
	}
}

// Load reads the file named by EMBEDPREP_CONFIG, if any, then the
// environment.
func Load() (Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile merges defaults, the config file at path (skipped when empty) and
// the environment, in that order of precedence.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	cfg.clamp()
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.APIKey = envOr("EMBEDPREP_API_KEY", c.APIKey)

	c.GenerationProvider = envOr("GENERATION_PROVIDER", c.GenerationProvider)
	c.GeminiAPIKey = envOr("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GenerationModel = envOr("GENERATION_MODEL", c.GenerationModel)
	c.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.AnthropicModel = envOr("ANTHROPIC_MODEL", c.AnthropicModel)
	c.OpenAIAPIKey = envOr("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = envOr("OPENAI_MODEL", c.OpenAIModel)
	c.PairsTemplate = envOr("GENERATE_PAIRS_TEMPLATE", c.PairsTemplate)
	c.TripletsTemplate = envOr("GENERATE_TRIPLETS_TEMPLATE", c.TripletsTemplate)
	c.TemplateDir = envOr("TEMPLATE_DIR", c.TemplateDir)

	c.GoogleCloudProject = envOr("GOOGLE_CLOUD_PROJECT", c.GoogleCloudProject)
	c.GoogleCloudBucket = envOr("GOOGLE_CLOUD_BUCKET", c.GoogleCloudBucket)
	c.OutputDir = envOr("OUTPUT_DIR", c.OutputDir)
	c.DataDir = envOr("DATA_DIR", c.DataDir)
	c.HFToken = envOr("HF_TOKEN", c.HFToken)

	c.CacheURL = envOr("CACHE_URL", c.CacheURL)
	c.CacheTTL = envDuration("CACHE_TTL", c.CacheTTL)

	c.WorkerCount = envInt("WORKER_COUNT", c.WorkerCount)
	c.MaxQueueSize = envInt("MAX_QUEUE_SIZE", c.MaxQueueSize)
	c.MaxConcurrentGenerate = envInt("MAX_CONCURRENT_GENERATE", c.MaxConcurrentGenerate)
	c.BatchSize = envInt("BATCH_SIZE", c.BatchSize)
	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.JobTTL = envDuration("JOB_TTL", c.JobTTL)

	c.RetryMaxAttempts = envInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.RetryInitialDelay = envDuration("RETRY_INITIAL_DELAY", c.RetryInitialDelay)
	c.RetryMaxDelay = envDuration("RETRY_MAX_DELAY", c.RetryMaxDelay)

	c.TokenizerModel = envOr("TOKENIZER_MODEL", c.TokenizerModel)
	c.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", c.PDFFallbackPdftotext)

	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.TelemetryEnabled = envBool("TELEMETRY_ENABLED", c.TelemetryEnabled)
	c.OTLPEndpoint = envOr("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
}

// clamp replaces non-positive limits with their defaults.
func (c *Config) clamp() {
	d := Defaults()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxConcurrentGenerate <= 0 {
		c.MaxConcurrentGenerate = d.MaxConcurrentGenerate
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = d.RetryMaxAttempts
	}
	if c.RetryInitialDelay <= 0 {
		c.RetryInitialDelay = d.RetryInitialDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = d.RetryMaxDelay
	}
}

// ProviderKey returns the API key and model of the selected generation
// provider.
func (c Config) ProviderKey() (key, model string) {
	switch strings.ToLower(c.GenerationProvider) {
	case "claude", "anthropic":
		return c.AnthropicAPIKey, c.AnthropicModel
	case "openai":
		return c.OpenAIAPIKey, c.OpenAIModel
	default:
		return c.GeminiAPIKey, c.GenerationModel
	}
}

// ValidateGeneration checks what the pairs and triplets steps need.
func (c Config) ValidateGeneration() error {
	switch strings.ToLower(c.GenerationProvider) {
	case "gemini", "":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case "claude", "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown GENERATION_PROVIDER %q", c.GenerationProvider)
	}
	return nil
}

// ValidateServer checks what the HTTP service needs.
func (c Config) ValidateServer() error {
	if c.APIKey == "" {
		return fmt.Errorf("EMBEDPREP_API_KEY is required")
	}
	return c.ValidateGeneration()
}

// Validate is ValidateServer.
func (c Config) Validate() error {
	return c.ValidateServer()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
