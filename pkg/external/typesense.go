package external

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/genepilepsy-guide/internal/domain"
)

// TypesenseIndex serves guideline passages from a Typesense collection with a vector
// field. The namespace argument of Query names the collection.
type TypesenseIndex struct {
	client         *typesense.Client
	embeddingField string
	logger         *logrus.Logger
	observe        Observer
}

// TypesenseOption customizes a TypesenseIndex.
type TypesenseOption func(*TypesenseIndex)

// WithTypesenseLogger sets the logger.
func WithTypesenseLogger(logger *logrus.Logger) TypesenseOption {
	return func(t *TypesenseIndex) { t.logger = logger }
}

// WithTypesenseObserver reports each request outcome.
func WithTypesenseObserver(observe Observer) TypesenseOption {
	return func(t *TypesenseIndex) { t.observe = observe }
}

// NewTypesenseIndex creates a Typesense-backed guideline index.
func NewTypesenseIndex(cfg domain.TypesenseConfig, opts ...TypesenseOption) *TypesenseIndex {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	field := cfg.EmbeddingField
	if field == "" {
		field = "embedding"
	}

	t := &TypesenseIndex{
		client: typesense.NewClient(
			typesense.WithServer(cfg.URL),
			typesense.WithAPIKey(cfg.APIKey),
			typesense.WithConnectionTimeout(timeout),
		),
		embeddingField: field,
		logger:         logrus.StandardLogger(),
		observe:        noopObserver,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Health reports whether the Typesense server answers its health probe.
func (t *TypesenseIndex) Health(ctx context.Context) bool {
	ok, err := t.client.Health(ctx, 2*time.Second)
	if err != nil {
		t.logger.WithError(err).Warn("Typesense health check failed")
		return false
	}
	return ok
}

type typesenseHit struct {
	Document       map[string]any `json:"document"`
	VectorDistance *float64       `json:"vector_distance"`
}

// Query runs a nearest-neighbour search against the collection named by namespace.
func (t *TypesenseIndex) Query(ctx context.Context, vector []float32, topK int, namespace string) ([]domain.Match, error) {
	params := &api.SearchCollectionParams{
		Q:           pointer.String("*"),
		VectorQuery: pointer.String(t.vectorQuery(vector, topK)),
		PerPage:     pointer.Int(topK),
	}

	result, err := t.client.Collection(namespace).Documents().Search(ctx, params)
	if err != nil {
		t.observe(ServiceVectorIndex, "error")
		return nil, fmt.Errorf("typesense search failed: %w", err)
	}
	if result == nil || result.Hits == nil {
		t.observe(ServiceVectorIndex, "empty")
		return []domain.Match{}, nil
	}

	// Hits are re-decoded through JSON to stay independent of generated field types.
	raw, err := json.Marshal(*result.Hits)
	if err != nil {
		t.observe(ServiceVectorIndex, "error")
		return nil, fmt.Errorf("failed to encode typesense hits: %w", err)
	}
	var hits []typesenseHit
	if err := json.Unmarshal(raw, &hits); err != nil {
		t.observe(ServiceVectorIndex, "error")
		return nil, fmt.Errorf("failed to decode typesense hits: %w", err)
	}

	matches := make([]domain.Match, 0, len(hits))
	for _, hit := range hits {
		metadata := make(map[string]any, len(hit.Document))
		for k, v := range hit.Document {
			if k == t.embeddingField {
				continue
			}
			metadata[k] = v
		}
		id, _ := metadata["id"].(string)
		delete(metadata, "id")

		score := 0.0
		if hit.VectorDistance != nil {
			score = 1 - *hit.VectorDistance
		}
		matches = append(matches, domain.Match{ID: id, Score: score, Metadata: metadata})
	}

	if len(matches) == 0 {
		t.observe(ServiceVectorIndex, "empty")
	} else {
		t.observe(ServiceVectorIndex, "success")
	}
	return matches, nil
}

func (t *TypesenseIndex) vectorQuery(vector []float32, topK int) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("%s:([%s], k:%d)", t.embeddingField, strings.Join(parts, ","), topK)
}
