// Package config loads all configuration for the wikigpt core-api service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Extract formats for page content.
const (
	ExtractPlain = "plain"
	ExtractHTML  = "html"
)

// Answer formats for the completion text returned to callers.
const (
	AnswerHTML     = "html"
	AnswerMarkdown = "markdown"
)

// Config holds all configuration for the chat API service.
type Config struct {
	// Server
	APIHost string `yaml:"api_host"`
	APIPort string `yaml:"api_port"`
	WebDir  string `yaml:"web_dir"`

	// Wikipedia
	MaxWikiResults       int    `yaml:"max_wiki_results"`
	WikiContentMaxLength int    `yaml:"wiki_content_max_length"`
	WikiLanguage         string `yaml:"wiki_language"`
	WikiAPIURL           string `yaml:"wiki_api_url"`
	WikiUserAgent        string `yaml:"wiki_user_agent"`
	WikiTimeoutMS        int    `yaml:"wiki_timeout_ms"`

	// WikiFetchConcurrency bounds how many pages are loaded at once per request
	WikiFetchConcurrency int `yaml:"wiki_fetch_concurrency"`

	// WikiExtractFormat is "plain" (server-side plain text) or "html"
	WikiExtractFormat string `yaml:"wiki_extract_format"`

	// Completion (Mistral, OpenAI-compatible endpoint)
	MistralAPIKey        string  `yaml:"mistral_api_key"`
	CompletionBaseURL    string  `yaml:"completion_base_url"`
	ModelID              string  `yaml:"model_id"`
	MaxTokens            int     `yaml:"max_tokens"`
	Temperature          float64 `yaml:"temperature"`
	CompletionTimeoutMS  int     `yaml:"completion_timeout_ms"`
	CompletionMaxRetries int     `yaml:"completion_max_retries"`

	// AnswerFormat is "html" (Markdown rendered to HTML) or "markdown" (raw)
	AnswerFormat string `yaml:"answer_format"`

	// Timeouts
	ReadTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`
	IdleTimeout  time.Duration `yaml:"-"`
}

// Defaults returns a Config populated with built-in defaults only.
func Defaults() *Config {
	cfg := &Config{
		APIHost: "0.0.0.0",
		APIPort: "8000",
		WebDir:  "/web",

		MaxWikiResults:       10,
		WikiContentMaxLength: 4000,
		WikiLanguage:         "en",
		WikiUserAgent:        "WikiGPT/1.0 (https://github.com/jharjadi/wikigpt)",
		WikiTimeoutMS:        10000,
		WikiFetchConcurrency: 4,
		WikiExtractFormat:    ExtractPlain,

		CompletionBaseURL:    "https://api.mistral.ai/v1",
		ModelID:              "mistral-large-latest",
		MaxTokens:            1000,
		Temperature:          0.7,
		CompletionTimeoutMS:  60000,
		CompletionMaxRetries: 0,

		AnswerFormat: AnswerHTML,

		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	cfg.WriteTimeout = cfg.PipelineBudget() + writeTimeoutMargin
	return cfg
}

// Load reads configuration from CONFIG_FILE (if set) and environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile reads configuration from the YAML file at path, then applies
// environment overrides. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	cfg.WriteTimeout = cfg.PipelineBudget() + writeTimeoutMargin

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.APIHost = envOr("API_HOST", cfg.APIHost)
	cfg.APIPort = envOr("API_PORT", cfg.APIPort)
	cfg.WebDir = envOr("WEB_DIR", cfg.WebDir)

	cfg.MaxWikiResults = envInt("MAX_WIKI_RESULTS", cfg.MaxWikiResults)
	cfg.WikiContentMaxLength = envInt("WIKI_CONTENT_MAX_LENGTH", cfg.WikiContentMaxLength)
	cfg.WikiLanguage = envOr("WIKI_LANGUAGE", cfg.WikiLanguage)
	cfg.WikiAPIURL = envOr("WIKI_API_URL", cfg.WikiAPIURL)
	cfg.WikiUserAgent = envOr("WIKI_USER_AGENT", cfg.WikiUserAgent)
	cfg.WikiTimeoutMS = envInt("WIKI_TIMEOUT_MS", cfg.WikiTimeoutMS)
	cfg.WikiFetchConcurrency = envInt("WIKI_FETCH_CONCURRENCY", cfg.WikiFetchConcurrency)
	cfg.WikiExtractFormat = envOr("WIKI_EXTRACT_FORMAT", cfg.WikiExtractFormat)

	cfg.MistralAPIKey = envOr("MISTRAL_API_KEY", cfg.MistralAPIKey)
	cfg.CompletionBaseURL = envOr("COMPLETION_BASE_URL", cfg.CompletionBaseURL)
	cfg.ModelID = envOr("MISTRAL_MODEL", cfg.ModelID)
	cfg.MaxTokens = envInt("MISTRAL_MAX_TOKENS", cfg.MaxTokens)
	cfg.Temperature = envFloat("MISTRAL_TEMPERATURE", cfg.Temperature)
	cfg.CompletionTimeoutMS = envInt("COMPLETION_TIMEOUT_MS", cfg.CompletionTimeoutMS)
	cfg.CompletionMaxRetries = envInt("COMPLETION_MAX_RETRIES", cfg.CompletionMaxRetries)

	cfg.AnswerFormat = envOr("ANSWER_FORMAT", cfg.AnswerFormat)
}

// Validate rejects bounds and enum values the pipeline cannot work with.
func (c *Config) Validate() error {
	if c.MaxWikiResults <= 0 {
		return fmt.Errorf("MAX_WIKI_RESULTS must be positive, got %d", c.MaxWikiResults)
	}
	if c.WikiContentMaxLength <= 0 {
		return fmt.Errorf("WIKI_CONTENT_MAX_LENGTH must be positive, got %d", c.WikiContentMaxLength)
	}
	if c.WikiFetchConcurrency <= 0 {
		return fmt.Errorf("WIKI_FETCH_CONCURRENCY must be positive, got %d", c.WikiFetchConcurrency)
	}
	switch c.WikiExtractFormat {
	case ExtractPlain, ExtractHTML:
	default:
		return fmt.Errorf("WIKI_EXTRACT_FORMAT must be %q or %q, got %q", ExtractPlain, ExtractHTML, c.WikiExtractFormat)
	}
	switch c.AnswerFormat {
	case AnswerHTML, AnswerMarkdown:
	default:
		return fmt.Errorf("ANSWER_FORMAT must be %q or %q, got %q", AnswerHTML, AnswerMarkdown, c.AnswerFormat)
	}
	if c.CompletionTimeoutMS <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT_MS must be positive, got %d", c.CompletionTimeoutMS)
	}
	if c.WikiTimeoutMS <= 0 {
		return fmt.Errorf("WIKI_TIMEOUT_MS must be positive, got %d", c.WikiTimeoutMS)
	}
	if budget := c.PipelineBudget(); c.WriteTimeout <= budget {
		return fmt.Errorf("write timeout %v must exceed the pipeline budget %v", c.WriteTimeout, budget)
	}
	return nil
}

// Addr returns the listen address as "host:port".
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.APIHost, c.APIPort)
}

// WikiEndpoint returns the MediaWiki action API URL, derived from the
// language when WikiAPIURL is not set.
func (c *Config) WikiEndpoint() string {
	if c.WikiAPIURL != "" {
		return c.WikiAPIURL
	}
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", c.WikiLanguage)
}

// WikiTimeout returns the per-request Wikipedia HTTP timeout.
func (c *Config) WikiTimeout() time.Duration {
	return time.Duration(c.WikiTimeoutMS) * time.Millisecond
}

// writeTimeoutMargin covers response encoding after the last pipeline stage.
const writeTimeoutMargin = 10 * time.Second

// PipelineBudget is the longest a chat request may spend in the pipeline:
// one search call, the page fetches in waves of WikiFetchConcurrency, and
// the completion call.
func (c *Config) PipelineBudget() time.Duration {
	waves := 1
	if c.WikiFetchConcurrency > 0 {
		waves = (c.MaxWikiResults + c.WikiFetchConcurrency - 1) / c.WikiFetchConcurrency
	}
	return c.WikiTimeout()*time.Duration(1+waves) + c.CompletionTimeout()
}

// CompletionTimeout returns the completion call deadline.
func (c *Config) CompletionTimeout() time.Duration {
	return time.Duration(c.CompletionTimeoutMS) * time.Millisecond
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
