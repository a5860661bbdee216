package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genepilepsy-guide/internal/domain"
)

func TestNewExtractor_RequiresModel(t *testing.T) {
	_, err := NewExtractor(nil, nil, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		expected domain.ParsedRecord
	}{
		{
			name:     "whitespace only completion",
			response: "   ",
			expected: domain.DefaultParsedRecord(),
		},
		{
			name: "reasoning and fenced json",
			response: "<think>The gene is SCN1A</think>\n```json\n" +
				`{"gene":"SCN1A","variant":"c.5347G>A","variant_type":"missense","demographics":{"age":4,"sex":"female"},"phenotypes":["febrile seizures"]}` +
				"\n```",
			expected: domain.ParsedRecord{
				Gene:         "SCN1A",
				Variant:      "c.5347G>A",
				VariantType:  "missense",
				Demographics: map[string]string{"age": "4", "sex": "female"},
				Phenotypes:   []string{"febrile seizures"},
			},
		},
		{
			name:     "trailing prose after object",
			response: `{"gene":"KCNQ2","variant":"NA"} Let me know if you need more.`,
			expected: domain.ParsedRecord{
				Gene:         "KCNQ2",
				Variant:      "NA",
				VariantType:  "NA",
				Demographics: map[string]string{},
				Phenotypes:   []string{},
			},
		},
		{
			name:     "not json",
			response: "I cannot help with that.",
			expected: domain.DefaultParsedRecord(),
		},
		{
			name:     "transport failure",
			err:      errors.New("connection reset"),
			expected: domain.DefaultParsedRecord(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{respond: func(domain.CompletionRequest) (string, error) {
				return tt.response, tt.err
			}}
			extractor, err := NewExtractor(llm, nil, testLogger())
			require.NoError(t, err)

			got := extractor.Extract(context.Background(), "4 year old girl with SCN1A c.5347G>A")
			assert.Equal(t, tt.expected, got)

			require.Equal(t, 1, llm.callCount())
			assert.Equal(t, 0.0, llm.calls[0].Temperature)
			assert.Contains(t, llm.calls[0].User, "4 year old girl with SCN1A c.5347G>A")
		})
	}
}

func TestExtractor_ProcessKeepsInput(t *testing.T) {
	llm := staticLLM(`{"gene":"SCN2A","variant":"p.Arg1882Gln"}`)
	extractor, err := NewExtractor(llm, nil, testLogger())
	require.NoError(t, err)

	in := domain.NewWorkflowState("neonatal seizures, SCN2A p.Arg1882Gln")
	out := extractor.Process(context.Background(), in)

	assert.Equal(t, "SCN2A", out.Parsed.Gene)
	assert.Equal(t, "p.Arg1882Gln", out.Parsed.Variant)
	assert.Equal(t, in.Input, out.Input)
	assert.Equal(t, domain.NotAvailable, in.Parsed.Gene, "input state must not change")
}
