package service

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/genepilepsy-guide/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeLLM struct {
	mu      sync.Mutex
	calls   []domain.CompletionRequest
	respond func(req domain.CompletionRequest) (string, error)
}

func (f *fakeLLM) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.respond == nil {
		return "", nil
	}
	return f.respond(req)
}

func (f *fakeLLM) Name() string { return "fake/model" }

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func staticLLM(text string) *fakeLLM {
	return &fakeLLM{respond: func(domain.CompletionRequest) (string, error) { return text, nil }}
}

type fakeVariantDB struct {
	lookup domain.VariantLookup
	terms  []string
}

func (f *fakeVariantDB) Lookup(_ context.Context, term string) domain.VariantLookup {
	f.terms = append(f.terms, term)
	return f.lookup
}

type fakeEmbedder struct {
	queries []string
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(f.queries)), 0.5}, nil
}

// fakeIndex returns results[i] for the i-th query.
type fakeIndex struct {
	results    [][]domain.Match
	err        error
	calls      int
	namespaces []string
	topKs      []int
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int, namespace string) ([]domain.Match, error) {
	f.namespaces = append(f.namespaces, namespace)
	f.topKs = append(f.topKs, topK)
	idx := f.calls
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if idx >= len(f.results) {
		return []domain.Match{}, nil
	}
	return f.results[idx], nil
}

type recordingObserver struct {
	stages    []string
	syndromes []int
}

func (r *recordingObserver) ObserveStage(stage string, _ time.Duration) {
	r.stages = append(r.stages, stage)
}

func (r *recordingObserver) ObserveSyndromes(count int) {
	r.syndromes = append(r.syndromes, count)
}

// loadFixtureLookup reads an esummary "result" object from testdata.
func loadFixtureLookup(t *testing.T, name string) domain.VariantLookup {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	var result map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &result))

	var ids []string
	require.NoError(t, json.Unmarshal(result[domain.ManifestKey], &ids))
	return domain.VariantLookup{IDs: ids, Records: result}
}
