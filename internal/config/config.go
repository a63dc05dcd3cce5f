package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig `yaml:"database"`
	LLM       LLMConfig      `yaml:"llm"`
	Storage   StorageConfig  `yaml:"storage"`
	Citations CitationConfig `yaml:"citations"`
	RAG       RAGConfig      `yaml:"rag"`
	Server    ServerConfig   `yaml:"server"`
	Log       LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	// Driver is one of "postgres" (bun pgdriver), "pq" (lib/pq) or "sqlite".
	Driver   string `yaml:"driver" env:"DATABASE_DRIVER"`
	URL      string `yaml:"url" env:"DATABASE_URL"`
	Password string `yaml:"password" env:"PGPASSWORD"`
	Debug    bool   `yaml:"debug" env:"DATABASE_DEBUG"`
}

// LLMConfig configures the chat model used for answers and citation extraction.
// Key comes from GROQ_API_KEY or LLM_API_KEY. An empty Key disables the
// model for the openai provider.
type LLMConfig struct {
	Provider string        `yaml:"provider" env:"LLM_PROVIDER"`
	BaseURL  string        `yaml:"base_url" env:"LLM_BASE_URL"`
	Key      string        `yaml:"key" env:"GROQ_API_KEY"`
	Model    string        `yaml:"model" env:"LLM_MODEL"`
	Timeout  time.Duration `yaml:"timeout" env:"LLM_TIMEOUT"`
}

type StorageConfig struct {
	Root string `yaml:"root" env:"STORAGE_ROOT"`
}

type CitationConfig struct {
	Enabled       bool          `yaml:"enabled" env:"CITATIONS_ENABLED"`
	SearchURL     string        `yaml:"search_url" env:"SEMANTIC_SCHOLAR_URL"`
	APIKey        string        `yaml:"api_key" env:"SEMANTIC_SCHOLAR_API_KEY"`
	MaxTitles     int           `yaml:"max_titles"`
	SearchTimeout time.Duration `yaml:"search_timeout"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	// RequestsPerSecond throttles calls to the search API.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type RAGConfig struct {
	MaxTokens      int `yaml:"max_tokens"`
	ReservedTokens int `yaml:"reserved_tokens"`
	ChunkSize      int `yaml:"chunk_size"`
	ChunkOverlap   int `yaml:"chunk_overlap"`
	MaxCitations   int `yaml:"max_citations"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr" env:"SERVER_ADDR"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

const (
	defaultLLMBaseURL   = "https://api.groq.com/openai/v1"
	defaultLLMModel     = "meta-llama/llama-4-scout-17b-16e-instruct"
	defaultSearchURL    = "https://api.semanticscholar.org"
	defaultUploadSize   = 10 * 1024 * 1024
	defaultMaxTitles    = 20
	defaultMaxTokens    = 30000
	defaultReserved     = 1500
	defaultChunkSize    = 20000
	defaultChunkOverlap = 500
	defaultMaxCitations = 3

	// env v11 binds one name per field; the alias is read by hand
	llmKeyAliasEnv = "LLM_API_KEY"
)

// Default returns a configuration with every field set to its built-in value.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			URL:    "file:paper-qa.db?_pragma=foreign_keys(1)",
		},
		LLM: LLMConfig{
			Provider: "openai",
			BaseURL:  defaultLLMBaseURL,
			Model:    defaultLLMModel,
			Timeout:  2 * time.Minute,
		},
		Storage: StorageConfig{Root: "./uploads"},
		Citations: CitationConfig{
			Enabled:           true,
			SearchURL:         defaultSearchURL,
			MaxTitles:         defaultMaxTitles,
			SearchTimeout:     15 * time.Second,
			FetchTimeout:      10 * time.Second,
			RequestsPerSecond: 1,
		},
		RAG: RAGConfig{
			MaxTokens:      defaultMaxTokens,
			ReservedTokens: defaultReserved,
			ChunkSize:      defaultChunkSize,
			ChunkOverlap:   defaultChunkOverlap,
			MaxCitations:   defaultMaxCitations,
		},
		Server: ServerConfig{Addr: ":8080", MaxUploadSize: defaultUploadSize},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

// LoadConfig reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// zero values left by a partial YAML file fall back to defaults
func (c *Config) applyDefaults() {
	d := Default()
	if c.Database.Driver == "" {
		c.Database.Driver = d.Database.Driver
	}
	if c.LLM.Key == "" {
		c.LLM.Key = os.Getenv(llmKeyAliasEnv)
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = d.LLM.Timeout
	}
	if c.Storage.Root == "" {
		c.Storage.Root = d.Storage.Root
	}
	if c.Citations.SearchURL == "" {
		c.Citations.SearchURL = d.Citations.SearchURL
	}
	if c.Citations.MaxTitles <= 0 {
		c.Citations.MaxTitles = d.Citations.MaxTitles
	}
	if c.Citations.SearchTimeout <= 0 {
		c.Citations.SearchTimeout = d.Citations.SearchTimeout
	}
	if c.Citations.FetchTimeout <= 0 {
		c.Citations.FetchTimeout = d.Citations.FetchTimeout
	}
	if c.Citations.RequestsPerSecond <= 0 {
		c.Citations.RequestsPerSecond = d.Citations.RequestsPerSecond
	}
	if c.RAG.MaxTokens <= 0 {
		c.RAG.MaxTokens = d.RAG.MaxTokens
	}
	if c.RAG.ReservedTokens <= 0 || c.RAG.ReservedTokens >= c.RAG.MaxTokens {
		c.RAG.ReservedTokens = d.RAG.ReservedTokens
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = d.RAG.ChunkSize
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		c.RAG.ChunkOverlap = d.RAG.ChunkOverlap
	}
	if c.RAG.MaxCitations <= 0 {
		c.RAG.MaxCitations = d.RAG.MaxCitations
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = d.Server.MaxUploadSize
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
