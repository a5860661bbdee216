package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/spf13/viper"
)

// providerKeyEnv maps an LLM provider to the conventional environment variable holding its key.
var providerKeyEnv = map[string]string{
	"groq":      "GROQ_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	configFile string
	config     *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile creates a manager that reads an explicit config file instead of
// searching the default paths. An empty path falls back to the search.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{configFile: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/genepi/")
	}

	v.SetEnvPrefix("GENEPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &domain.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	applyConventionalEnv(cfg)

	m.config = cfg
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "170s")
	v.SetDefault("server.enable_metrics", true)

	v.SetDefault("clinvar.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/")
	v.SetDefault("clinvar.api_key", "")
	v.SetDefault("clinvar.tool", "genepi")
	v.SetDefault("clinvar.email", "")
	v.SetDefault("clinvar.timeout", "30s")
	v.SetDefault("clinvar.rate_limit", 0)
	v.SetDefault("clinvar.retmax", 20)

	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.model", "qwen/qwen3-32b")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "120s")

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.timeout", "30s")

	v.SetDefault("vector.backend", "pinecone")
	v.SetDefault("vector.index_name", "epilepsy-guidelines")
	v.SetDefault("vector.namespace", "guidelines")
	v.SetDefault("vector.top_k", 5)
	v.SetDefault("vector.pinecone.api_key", "")
	v.SetDefault("vector.pinecone.host", "")
	v.SetDefault("vector.pinecone.control_plane", "https://api.pinecone.io")
	v.SetDefault("vector.pinecone.timeout", "30s")
	v.SetDefault("vector.typesense.url", "http://localhost:8108")
	v.SetDefault("vector.typesense.api_key", "")
	v.SetDefault("vector.typesense.embedding_field", "embedding")
	v.SetDefault("vector.typesense.timeout", "10s")

	v.SetDefault("pipeline.max_syndromes", 0)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.redis_url", "redis://localhost:6379/0")
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("session.max_items", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("mcp.server_name", "genepi-mcp-server")
	v.SetDefault("mcp.server_version", "v0.1.0")
}

// applyConventionalEnv fills credentials from the unprefixed variables the hosted
// providers document, when no prefixed value was given.
func applyConventionalEnv(cfg *domain.Config) {
	if cfg.LLM.APIKey == "" {
		if name, ok := providerKeyEnv[strings.ToLower(cfg.LLM.Provider)]; ok {
			cfg.LLM.APIKey = os.Getenv(name)
		}
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Vector.Pinecone.APIKey == "" {
		cfg.Vector.Pinecone.APIKey = os.Getenv("PINECONE_API_KEY")
	}
	if cfg.Vector.Typesense.APIKey == "" {
		cfg.Vector.Typesense.APIKey = os.Getenv("TYPESENSE_API_KEY")
	}
	if cfg.ClinVar.APIKey == "" {
		cfg.ClinVar.APIKey = os.Getenv("NCBI_API_KEY")
	}
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return Validate(m.config)
}

// Validate checks a configuration value. A missing language-model or vector-index
// credential is reported as domain.ErrMissingCredential.
func Validate(cfg *domain.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if _, err := url.ParseRequestURI(cfg.ClinVar.BaseURL); err != nil {
		return fmt.Errorf("invalid ClinVar base URL %q: %w", cfg.ClinVar.BaseURL, err)
	}
	if cfg.ClinVar.RateLimit < 0 {
		return fmt.Errorf("ClinVar rate limit must not be negative, got %d", cfg.ClinVar.RateLimit)
	}

	provider := strings.ToLower(cfg.LLM.Provider)
	if _, ok := providerKeyEnv[provider]; !ok {
		return fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("LLM model is required")
	}
	if cfg.LLM.APIKey == "" {
		return domain.NewMissingCredentialError("llm.api_key")
	}

	switch strings.ToLower(cfg.Vector.Backend) {
	case "pinecone":
		if cfg.Vector.Pinecone.APIKey == "" {
			return domain.NewMissingCredentialError("vector.pinecone.api_key")
		}
	case "typesense":
		if cfg.Vector.Typesense.URL == "" {
			return fmt.Errorf("Typesense URL is required")
		}
	default:
		return fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
	if cfg.Vector.TopK <= 0 {
		return fmt.Errorf("vector top_k must be positive, got %d", cfg.Vector.TopK)
	}

	switch strings.ToLower(cfg.Session.Backend) {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported session backend: %s", cfg.Session.Backend)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
