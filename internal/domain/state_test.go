package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParsedRecord(t *testing.T) {
	rec := DefaultParsedRecord()

	assert.Equal(t, NotAvailable, rec.Gene)
	assert.Equal(t, NotAvailable, rec.Variant)
	assert.Equal(t, NotAvailable, rec.VariantType)
	assert.Empty(t, rec.Demographics)
	assert.NotNil(t, rec.Phenotypes)
	assert.True(t, rec.IsEmptyQuery())
}

func TestParsedRecord_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected ParsedRecord
	}{
		{
			name:  "complete record",
			input: `{"gene":"SCN1A","variant":"c.3733C>T","variant_type":"missense","demographics":{"age":"4","sex":"female"},"phenotypes":["febrile seizures","ataxia"]}`,
			expected: ParsedRecord{
				Gene: "SCN1A", Variant: "c.3733C>T", VariantType: "missense",
				Demographics: map[string]string{"age": "4", "sex": "female"},
				Phenotypes:   []string{"febrile seizures", "ataxia"},
			},
		},
		{
			name:  "missing keys become NA",
			input: `{"gene":"TSC2"}`,
			expected: ParsedRecord{
				Gene: "TSC2", Variant: NotAvailable, VariantType: NotAvailable,
				Demographics: map[string]string{}, Phenotypes: []string{},
			},
		},
		{
			name:  "loose scalar shapes",
			input: `{"gene":"SCN2A","variant":"NA","variant_type":"","demographics":{"age":7,"consanguinity":false,"ethnicity":null},"phenotypes":"infantile spasms"}`,
			expected: ParsedRecord{
				Gene: "SCN2A", Variant: NotAvailable, VariantType: NotAvailable,
				Demographics: map[string]string{"age": "7", "consanguinity": "false"},
				Phenotypes:   []string{"infantile spasms"},
			},
		},
		{
			name:     "phenotypes NA",
			input:    `{"gene":"NA","variant":"NA","variant_type":"NA","demographics":"NA","phenotypes":"NA"}`,
			expected: DefaultParsedRecord(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec ParsedRecord
			require.NoError(t, json.Unmarshal([]byte(tt.input), &rec))
			assert.Equal(t, tt.expected, rec)
		})
	}
}

func TestParsedRecord_UnmarshalJSONRejectsNonObject(t *testing.T) {
	var rec ParsedRecord
	assert.Error(t, json.Unmarshal([]byte(`["SCN1A"]`), &rec))
}

func TestNewDirectState(t *testing.T) {
	s := NewDirectState(" SCN1A ", "")

	assert.Equal(t, "SCN1A", s.Parsed.Gene)
	assert.Equal(t, NotAvailable, s.Parsed.Variant)
	assert.False(t, s.Parsed.IsEmptyQuery())
	assert.True(t, NewDirectState("NA", " ").Parsed.IsEmptyQuery())
}

func TestWorkflowState_CopyOnWrite(t *testing.T) {
	base := NewWorkflowState("4 year old with SCN1A c.3733C>T")
	parsed := DefaultParsedRecord()
	parsed.Gene = "SCN1A"
	parsed.Phenotypes = []string{"febrile seizures"}

	s1 := base.WithParsed(parsed)
	parsed.Phenotypes[0] = "mutated"
	assert.Equal(t, NotAvailable, base.Parsed.Gene, "input state must not change")
	assert.Equal(t, []string{"febrile seizures"}, s1.Parsed.Phenotypes)

	records := map[string]json.RawMessage{
		"12345":     json.RawMessage(`{"title":"x"}`),
		ManifestKey: json.RawMessage(`["12345"]`),
	}
	reports := []DoctorReport{{RecordID: "12345", Title: "x", Syndromes: []string{"Dravet syndrome"}}}
	s2 := s1.WithResolution(records, reports, []string{"Dravet syndrome"})

	reports[0].Syndromes[0] = "mutated"
	assert.NotContains(t, s2.VariantRecords, ManifestKey)
	assert.Equal(t, "Dravet syndrome", s2.DoctorReports[0].Syndromes[0])
	assert.Empty(t, s1.DoctorReports)

	s3 := s2.WithTreatments([]TreatmentSection{{Syndrome: "Dravet syndrome", Markdown: "## Treatment"}}, "## Treatment")
	assert.Empty(t, s2.TreatmentSections)
	assert.Equal(t, "## Treatment", s3.Treatments)
	assert.Equal(t, []string{"Dravet syndrome"}, s3.ResolvedSyndromes)

	s3.ResolvedSyndromes[0] = "changed"
	assert.Equal(t, "Dravet syndrome", s2.ResolvedSyndromes[0])
}
