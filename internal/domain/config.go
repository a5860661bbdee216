package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	ClinVar     ClinVarConfig   `mapstructure:"clinvar"`
	LLM         LLMConfig       `mapstructure:"llm"`
	Embedding   EmbeddingConfig `mapstructure:"embedding"`
	Vector      VectorConfig    `mapstructure:"vector"`
	Pipeline    PipelineConfig  `mapstructure:"pipeline"`
	Session     SessionConfig   `mapstructure:"session"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	MCP         MCPConfig       `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	EnableMetrics  bool          `mapstructure:"enable_metrics"`
}

// ClinVarConfig represents NCBI E-utilities configuration
type ClinVarConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Tool      string        `mapstructure:"tool"`
	Email     string        `mapstructure:"email"` // NCBI asks for a contact address
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"` // requests per second; 0 uses 3, or 10 with an API key
	RetMax    int           `mapstructure:"retmax"`
}

// LLMConfig selects and configures the language-model provider
type LLMConfig struct {
	Provider string        `mapstructure:"provider"` // "groq", "openai", "anthropic", "gemini"
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding endpoint
type EmbeddingConfig struct {
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// VectorConfig selects the guideline index backend
type VectorConfig struct {
	Backend   string          `mapstructure:"backend"` // "pinecone" or "typesense"
	IndexName string          `mapstructure:"index_name"`
	Namespace string          `mapstructure:"namespace"`
	TopK      int             `mapstructure:"top_k"`
	Pinecone  PineconeConfig  `mapstructure:"pinecone"`
	Typesense TypesenseConfig `mapstructure:"typesense"`
}

// PineconeConfig represents Pinecone data-plane configuration
type PineconeConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	Host         string        `mapstructure:"host"` // resolved from the control plane when empty
	ControlPlane string        `mapstructure:"control_plane"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// TypesenseConfig represents Typesense configuration
type TypesenseConfig struct {
	URL            string        `mapstructure:"url"`
	APIKey         string        `mapstructure:"api_key"`
	EmbeddingField string        `mapstructure:"embedding_field"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// PipelineConfig carries the workflow constants
type PipelineConfig struct {
	MaxSyndromes int `mapstructure:"max_syndromes"` // 0 processes every resolved syndrome
}

// SessionConfig configures lookup session storage
type SessionConfig struct {
	Backend  string        `mapstructure:"backend"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
	MaxItems int           `mapstructure:"max_items"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}
