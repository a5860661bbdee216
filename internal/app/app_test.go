package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/metrics"
	"github.com/genepilepsy-guide/internal/session"
	"github.com/genepilepsy-guide/pkg/llm"
)

// fakeUpstream serves ClinVar and the chat and embedding endpoints.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	var chatCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/eutils/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"esearchresult":{"count":"1","idlist":["68106"]}}`))
	})
	mux.HandleFunc("/eutils/esummary.fcgi", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"uids":["68106"],"68106":{"uid":"68106","title":"NM_001165963.4(SCN1A):c.5347G>A",
			"germline_classification":{"trait_set":[{"trait_name":"Dravet syndrome"}]}}}}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		content := "1. Variant Summary\nPathogenic.\n\nEPILEPSY_SYNDROMES_JSON\n[\"Dravet syndrome\"]"
		if atomic.AddInt32(&chatCalls, 1) > 1 {
			content = "Stiripentol with valproate."
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "c", "object": "chat.completion", "created": 1, "model": "m",
			"choices": []map[string]any{{
				"index": 0, "finish_reason": "stop",
				"message": map[string]any{"role": "assistant", "content": content},
			}},
		})
	})
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"e","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2]}],
			"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// guidelineIndex stands in for the vector backend, whose data plane speaks gRPC.
type guidelineIndex struct {
	namespaces []string
}

func (g *guidelineIndex) Query(_ context.Context, _ []float32, _ int, namespace string) ([]domain.Match, error) {
	g.namespaces = append(g.namespaces, namespace)
	return []domain.Match{{
		ID:       "p1",
		Score:    0.9,
		Metadata: map[string]any{"text": "Use stiripentol.", "document_name": "ILAE 2022", "page_number": float64(12)},
	}}, nil
}

func testConfig(upstream string) *domain.Config {
	return &domain.Config{
		ClinVar: domain.ClinVarConfig{BaseURL: upstream + "/eutils/", RateLimit: 1000, Timeout: 5 * time.Second},
		LLM: domain.LLMConfig{
			Provider: "groq",
			Model:    "qwen/qwen3-32b",
			APIKey:   "groq-key",
			BaseURL:  upstream + "/v1/",
		},
		Embedding: domain.EmbeddingConfig{Model: "e", APIKey: "openai-key", BaseURL: upstream + "/v1/"},
		Vector: domain.VectorConfig{
			Backend:   "pinecone",
			IndexName: "epilepsy-guidelines",
			Namespace: "guidelines",
			TopK:      5,
			Pinecone:  domain.PineconeConfig{APIKey: "pc-key", Host: upstream, Timeout: 5 * time.Second},
		},
		Pipeline: domain.PipelineConfig{},
		Session:  domain.SessionConfig{Backend: "memory", TTL: time.Minute},
		Logging:  domain.LoggingConfig{Level: "info", Format: "json"},
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNew_WiresPipeline(t *testing.T) {
	upstream := fakeUpstream(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)

	index := &guidelineIndex{}

	a, err := New(context.Background(), testConfig(upstream.URL),
		WithLogger(quietLogger()),
		WithMetrics(m),
		WithLLMOptions(llm.WithMaxRetries(0)),
		WithVectorIndex(index),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.IsType(t, &session.MemoryStore{}, a.Sessions)

	ctx := context.Background()
	res, err := a.Pipeline.LookupVariant(ctx, "SCN1A", "c.5347G>A")
	require.NoError(t, err)
	assert.Equal(t, []string{"68106"}, res.IDs)
	assert.Equal(t, []string{"Dravet syndrome"}, res.Syndromes)
	require.Len(t, res.Reports, 1)
	assert.Equal(t, "NM_001165963.4(SCN1A):c.5347G>A", res.Reports[0].Title)

	treatment := a.Pipeline.RecommendTreatment(ctx, "Dravet syndrome", "Gene: SCN1A, Variant: c.5347G>A")
	assert.Equal(t, "## Treatment for Dravet syndrome\n\nStiripentol with valproate.\n", treatment)
	assert.Equal(t, []string{"guidelines"}, index.namespaces)

	assert.Equal(t, 1.0, counterValue(t, reg, "genepi_syndromes_resolved_total"))
	series, err := testutil.GatherAndCount(reg, "genepi_external_requests_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, series, 3, "clinvar, llm and embedding outcomes")
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestNew_MissingCredentials(t *testing.T) {
	upstream := fakeUpstream(t)

	cfg := testConfig(upstream.URL)
	cfg.LLM.APIKey = ""
	_, err := New(context.Background(), cfg, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, domain.ErrMissingCredential)

	cfg = testConfig(upstream.URL)
	cfg.Vector.Pinecone.APIKey = ""
	_, err = New(context.Background(), cfg, WithLogger(quietLogger()), WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry(), nil)))
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestNew_RedisSessionsAndUnknownBackend(t *testing.T) {
	upstream := fakeUpstream(t)
	mr := miniredis.RunT(t)

	cfg := testConfig(upstream.URL)
	cfg.Session = domain.SessionConfig{Backend: "redis", RedisURL: "redis://" + mr.Addr() + "/0", TTL: time.Minute}
	a, err := New(context.Background(), cfg, WithLogger(quietLogger()), WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry(), nil)))
	require.NoError(t, err)
	assert.IsType(t, &session.RedisStore{}, a.Sessions)
	require.Len(t, a.closers, 2, "pinecone index and redis sessions")
	assert.NoError(t, a.Close())

	cfg = testConfig(upstream.URL)
	cfg.Vector.Backend = "faiss"
	_, err = New(context.Background(), cfg, WithLogger(quietLogger()), WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry(), nil)))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(domain.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("gene", "SCN1A").Debug("hello")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "SCN1A", entry["gene"])

	logger = NewLogger(domain.LoggingConfig{Level: "bogus", Format: "text"}, io.Discard)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
