package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genepilepsy-guide/internal/domain"
)

func newTestSynthesizer(t *testing.T, embedder *fakeEmbedder, index *fakeIndex, llm domain.LanguageModel) *Synthesizer {
	t.Helper()
	synth, err := NewSynthesizer(NewGuidelineRetriever(embedder, index, "guidelines", 0), llm, nil, testLogger())
	require.NoError(t, err)
	return synth
}

func guidelineMatch(text, document string, page any) domain.Match {
	metadata := map[string]any{"text": text, "document_name": document}
	if page != nil {
		metadata["page_number"] = page
	}
	return domain.Match{ID: document, Score: 0.9, Metadata: metadata}
}

func TestNewSynthesizer_RequiresModel(t *testing.T) {
	_, err := NewSynthesizer(NewGuidelineRetriever(&fakeEmbedder{}, &fakeIndex{}, "guidelines", 5), nil, nil, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestSynthesizer_NoSyndromes(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := &fakeIndex{}
	llm := staticLLM("unused")
	synth := newTestSynthesizer(t, embedder, index, llm)

	out := synth.Synthesize(context.Background(), nil, "Gene: SCN1A, Variant: NA")
	assert.Equal(t, "No syndromes identified to recommend treatments for.", out)
	assert.Empty(t, embedder.queries)
	assert.Equal(t, 0, index.calls)
	assert.Equal(t, 0, llm.callCount())
}

func TestSynthesizer_ZeroMatches(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := &fakeIndex{}
	llm := staticLLM("unused")
	synth := newTestSynthesizer(t, embedder, index, llm)

	out := synth.Synthesize(context.Background(), []string{"West syndrome"}, "infantile spasms")
	assert.Equal(t, "## Treatment for West syndrome\n\nNo treatment information found in vector database.\n", out)
	assert.Equal(t, 0, llm.callCount())
	assert.Equal(t, []string{"How would you treat patient: infantile spasms possibly diagnosed by West syndrome"}, embedder.queries)
	assert.Equal(t, []string{"guidelines"}, index.namespaces)
	assert.Equal(t, []int{5}, index.topKs)
}

func TestSynthesizer_MixedSyndromes(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := &fakeIndex{results: [][]domain.Match{
		{
			guidelineMatch("Stiripentol is recommended as adjunctive therapy.", "ILAE Dravet consensus 2022", float64(14)),
			guidelineMatch("Avoid sodium channel blockers.", "NICE NG217", nil),
		},
		{},
	}}
	llm := staticLLM("<think>Use only the given sources.</think>\n1. Start valproate [ILAE Dravet consensus(2022), Treatment, 14]")
	synth := newTestSynthesizer(t, embedder, index, llm)

	out := synth.Synthesize(context.Background(), []string{"Dravet syndrome", "West syndrome"}, "Gene: SCN1A, Variant: c.5347G>A")

	expected := "## Treatment for Dravet syndrome\n\n1. Start valproate [ILAE Dravet consensus(2022), Treatment, 14]\n" +
		"\n" +
		"## Treatment for West syndrome\n\nNo treatment information found in vector database.\n"
	assert.Equal(t, expected, out)

	require.Equal(t, 1, llm.callCount())
	call := llm.calls[0]
	assert.Equal(t, 0.3, call.Temperature)
	assert.Equal(t, 1000, call.MaxTokens)
	assert.Contains(t, call.User, "Dravet syndrome")
	assert.Contains(t, call.User, "Stiripentol is recommended as adjunctive therapy.\nSource: ILAE Dravet consensus 2022, page 14")
	assert.Contains(t, call.User, "Avoid sodium channel blockers.\nSource: NICE NG217, page Unknown")
	assert.Contains(t, call.User, "[document name(year), section name, page number]")
	assert.Less(t, strings.Index(out, "Dravet"), strings.Index(out, "West"))
}

func TestSynthesizer_Failures(t *testing.T) {
	tests := []struct {
		name     string
		embedErr error
		indexErr error
		llmErr   error
		contains string
	}{
		{name: "embedding failure", embedErr: errors.New("embedding quota exceeded"), contains: "embedding quota exceeded"},
		{name: "index failure", indexErr: errors.New("index unavailable"), contains: "index unavailable"},
		{name: "completion failure", llmErr: errors.New("model overloaded"), contains: "model overloaded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := &fakeEmbedder{err: tt.embedErr}
			index := &fakeIndex{
				err:     tt.indexErr,
				results: [][]domain.Match{{guidelineMatch("text", "doc", "3")}, {guidelineMatch("text", "doc", "4")}},
			}
			llm := &fakeLLM{respond: func(domain.CompletionRequest) (string, error) {
				return "pathway", tt.llmErr
			}}
			synth := newTestSynthesizer(t, embedder, index, llm)

			out := synth.Synthesize(context.Background(), []string{"Dravet syndrome", "West syndrome"}, "ctx")
			assert.True(t, strings.HasPrefix(out, "Error generating treatment recommendations: "), out)
			assert.Contains(t, out, tt.contains)
			assert.NotContains(t, out, "## Treatment for")
		})
	}
}

func TestSynthesizer_ProcessStoresSections(t *testing.T) {
	index := &fakeIndex{results: [][]domain.Match{{guidelineMatch("Use ACTH.", "AAN 2012", float64(3))}}}
	synth := newTestSynthesizer(t, &fakeEmbedder{}, index, staticLLM("ACTH first line"))

	state := domain.NewDirectState("CDKL5", "NA").WithResolution(nil, nil, []string{"West syndrome"})
	out := synth.Process(context.Background(), state, PatientContext("CDKL5", "NA"))

	require.Len(t, out.TreatmentSections, 1)
	assert.Equal(t, "West syndrome", out.TreatmentSections[0].Syndrome)
	assert.Equal(t, "## Treatment for West syndrome\n\nACTH first line\n", out.Treatments)
	assert.Empty(t, state.Treatments)
}

func TestPassageText(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		expected string
	}{
		{"direct text", map[string]any{"text": "direct"}, "direct"},
		{"node content fallback", map[string]any{"_node_content": `{"id_":"n1","text":"from node"}`}, "from node"},
		{"empty text uses node content", map[string]any{"text": "", "_node_content": `{"text":"node"}`}, "node"},
		{"malformed node content", map[string]any{"_node_content": `{not json`}, "No content available"},
		{"nothing", map[string]any{}, "No content available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PassageText(tt.metadata))
		})
	}
}

func TestPassageSource(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		expected string
	}{
		{"full", map[string]any{"document_name": "ILAE 2017", "page_number": float64(7)}, "ILAE 2017, page 7"},
		{"fractional page", map[string]any{"document_name": "ILAE 2017", "page_number": 7.5}, "ILAE 2017, page 7.5"},
		{"string page", map[string]any{"document_name": "NICE", "page_number": "xii"}, "NICE, page xii"},
		{"missing both", map[string]any{}, "Unknown Document, page Unknown"},
		{"null values", map[string]any{"document_name": nil, "page_number": nil}, "Unknown Document, page Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PassageSource(tt.metadata))
		})
	}
}

func TestFormatPassages(t *testing.T) {
	out := FormatPassages([]domain.Match{
		guidelineMatch("First passage.", "Doc A", float64(1)),
		guidelineMatch("Second passage.", "Doc B", float64(2)),
	})
	assert.Equal(t, "First passage.\nSource: Doc A, page 1\n\nSecond passage.\nSource: Doc B, page 2", out)
}
