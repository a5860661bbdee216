package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/genepilepsy-guide/internal/domain"
)

type fakeQuerier struct {
	mu       sync.Mutex
	response *pinecone.QueryVectorsResponse
	err      error
	requests []*pinecone.QueryByVectorValuesRequest
	closed   bool
}

func (f *fakeQuerier) QueryByVectorValues(_ context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeQuerier) Close() error {
	f.closed = true
	return nil
}

// stubConnections replaces the data-plane dialer and records each namespace it opens.
func stubConnections(index *PineconeIndex, conn *fakeQuerier) *[]string {
	var namespaces []string
	index.connect = func(namespace string) (pineconeQuerier, error) {
		namespaces = append(namespaces, namespace)
		return conn, nil
	}
	return &namespaces
}

func newPineconeTestIndex(t *testing.T, opts ...PineconeOption) *PineconeIndex {
	t.Helper()
	opts = append([]PineconeOption{WithPineconeLogger(quietLogger())}, opts...)
	index, err := NewPineconeIndex(context.Background(), domain.PineconeConfig{
		APIKey: "pc-key",
		Host:   "https://epilepsy-guidelines-abc123.svc.aped-4627-b74a.pinecone.io/",
	}, "epilepsy-guidelines", opts...)
	require.NoError(t, err)
	return index
}

func TestPineconeIndex_Query(t *testing.T) {
	metadata, err := structpb.NewStruct(map[string]any{
		"text":          "Use sodium valproate.",
		"document_name": "ILAE 2022",
		"page_number":   12,
	})
	require.NoError(t, err)

	conn := &fakeQuerier{response: &pinecone.QueryVectorsResponse{
		Namespace: "guidelines",
		Matches: []*pinecone.ScoredVector{
			{Vector: &pinecone.Vector{Id: "p-1", Metadata: metadata}, Score: 0.91},
			{Vector: &pinecone.Vector{Id: "p-2"}, Score: 0.74},
			nil,
		},
	}}
	recorder := &outcomeRecorder{}
	index := newPineconeTestIndex(t, WithPineconeObserver(recorder.observe))
	assert.Equal(t, "epilepsy-guidelines-abc123.svc.aped-4627-b74a.pinecone.io", index.host)
	namespaces := stubConnections(index, conn)

	matches, err := index.Query(context.Background(), []float32{0.1, 0.2, 0.3}, 5, "guidelines")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "p-1", matches[0].ID)
	assert.InDelta(t, 0.91, matches[0].Score, 1e-6)
	assert.Equal(t, "ILAE 2022", matches[0].Metadata["document_name"])
	assert.Equal(t, float64(12), matches[0].Metadata["page_number"])
	assert.NotNil(t, matches[1].Metadata)

	require.Len(t, conn.requests, 1)
	assert.Equal(t, uint32(5), conn.requests[0].TopK)
	assert.True(t, conn.requests[0].IncludeMetadata)
	assert.False(t, conn.requests[0].IncludeValues)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, conn.requests[0].Vector)

	// Connections are opened once per namespace.
	_, err = index.Query(context.Background(), []float32{1}, 5, "guidelines")
	require.NoError(t, err)
	assert.Equal(t, []string{"guidelines"}, *namespaces)
	assert.Equal(t, []string{"vector-index:success", "vector-index:success"}, recorder.list())

	require.NoError(t, index.Close())
	assert.True(t, conn.closed)
}

func TestPineconeIndex_EmptyAndFailedQueries(t *testing.T) {
	recorder := &outcomeRecorder{}
	index := newPineconeTestIndex(t, WithPineconeObserver(recorder.observe))

	stubConnections(index, &fakeQuerier{response: &pinecone.QueryVectorsResponse{}})
	matches, err := index.Query(context.Background(), []float32{1}, 0, "empty")
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)

	stubConnections(index, &fakeQuerier{err: errors.New("rpc error: code = Unauthenticated")})
	_, err = index.Query(context.Background(), []float32{1}, 5, "other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthenticated")

	index.connect = func(string) (pineconeQuerier, error) { return nil, errors.New("dial failed") }
	_, err = index.Query(context.Background(), []float32{1}, 5, "unreachable")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial failed")

	assert.Equal(t, []string{"vector-index:empty", "vector-index:error", "vector-index:error"}, recorder.list())
}

func TestPineconeIndex_ResolvesHost(t *testing.T) {
	controlPlane := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/indexes/epilepsy-guidelines", r.URL.Path)
		assert.Equal(t, "pc-key", r.Header.Get("Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":                "epilepsy-guidelines",
			"dimension":           1536,
			"metric":              "cosine",
			"vector_type":         "dense",
			"host":                "epilepsy-guidelines-abc123.svc.pinecone.io",
			"deletion_protection": "disabled",
			"spec":                map[string]any{"serverless": map[string]any{"cloud": "aws", "region": "us-east-1"}},
			"status":              map[string]any{"ready": true, "state": "Ready"},
		})
	}))
	defer controlPlane.Close()

	index, err := NewPineconeIndex(context.Background(), domain.PineconeConfig{
		APIKey:       "pc-key",
		ControlPlane: controlPlane.URL,
	}, "epilepsy-guidelines", WithPineconeLogger(quietLogger()), WithPineconeHTTPClient(controlPlane.Client()))
	require.NoError(t, err)
	assert.Equal(t, "epilepsy-guidelines-abc123.svc.pinecone.io", index.host)

	conn := &fakeQuerier{response: &pinecone.QueryVectorsResponse{}}
	namespaces := stubConnections(index, conn)
	_, err = index.Query(context.Background(), []float32{1}, 5, "guidelines")
	require.NoError(t, err)
	assert.Equal(t, []string{"guidelines"}, *namespaces)
}

func TestPineconeIndex_Errors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		_, err := NewPineconeIndex(context.Background(), domain.PineconeConfig{Host: "example.org"}, "idx")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMissingCredential)
	})

	t.Run("unknown index", func(t *testing.T) {
		controlPlane := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"Resource missing not found"},"status":404}`))
		}))
		defer controlPlane.Close()

		_, err := NewPineconeIndex(context.Background(), domain.PineconeConfig{
			APIKey:       "pc-key",
			ControlPlane: controlPlane.URL,
		}, "missing", WithPineconeLogger(quietLogger()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to resolve Pinecone index host")
	})
}
