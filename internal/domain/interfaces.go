package domain

import (
	"context"
	"encoding/json"
)

// VariantLookup is the outcome of a search-then-summary lookup. IDs keeps the search
// order; Records never contains the manifest key.
type VariantLookup struct {
	IDs     []string
	Records map[string]json.RawMessage
}

// Empty reports whether the lookup produced no records.
func (v VariantLookup) Empty() bool {
	return len(v.Records) == 0
}

// VariantDatabase performs the two-phase search-then-summary lookup.
// Implementations degrade transport failures to an empty result.
type VariantDatabase interface {
	Lookup(ctx context.Context, term string) VariantLookup
}

// CompletionRequest is a single system+user prompt completion.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// LanguageModel produces a text completion.
type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is one nearest-neighbour hit from the guideline index.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// VectorIndex queries a pre-built guideline index.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int, namespace string) ([]Match, error)
}

// Lookup is the interactive state kept between a variant lookup and a treatment request.
type Lookup struct {
	ID        string                     `json:"id"`
	Gene      string                     `json:"gene"`
	Variant   string                     `json:"variant"`
	Reports   []DoctorReport             `json:"reports"`
	Syndromes []string                   `json:"syndromes"`
	Raw       map[string]json.RawMessage `json:"raw"`
}

// HasSyndrome reports whether the lookup resolved the given syndrome.
func (l Lookup) HasSyndrome(name string) bool {
	for _, s := range l.Syndromes {
		if s == name {
			return true
		}
	}
	return false
}

// SessionStore keeps lookups for the lifetime of one interactive workflow.
type SessionStore interface {
	Save(ctx context.Context, lookup Lookup) (string, error)
	Get(ctx context.Context, id string) (Lookup, error)
	Delete(ctx context.Context, id string) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
