package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NotAvailable is the explicit sentinel for a field the extractor could not fill.
const NotAvailable = "NA"

// ManifestKey is the esummary entry that lists ids rather than describing a record.
const ManifestKey = "uids"

// ParsedRecord is the fixed-schema output of free-text extraction.
type ParsedRecord struct {
	Gene         string            `json:"gene"`
	Variant      string            `json:"variant"`
	VariantType  string            `json:"variant_type"`
	Demographics map[string]string `json:"demographics"`
	Phenotypes   []string          `json:"phenotypes"`
}

// DefaultParsedRecord returns the record used whenever extraction fails.
func DefaultParsedRecord() ParsedRecord {
	return ParsedRecord{
		Gene:         NotAvailable,
		Variant:      NotAvailable,
		VariantType:  NotAvailable,
		Demographics: map[string]string{},
		Phenotypes:   []string{},
	}
}

// IsEmptyQuery reports whether neither gene nor variant carries information.
func (p ParsedRecord) IsEmptyQuery() bool {
	return IsNA(p.Gene) && IsNA(p.Variant)
}

// Clone returns a deep copy.
func (p ParsedRecord) Clone() ParsedRecord {
	out := p
	out.Demographics = make(map[string]string, len(p.Demographics))
	for k, v := range p.Demographics {
		out.Demographics[k] = v
	}
	out.Phenotypes = append([]string{}, p.Phenotypes...)
	return out
}

// UnmarshalJSON tolerates the loose shapes language models emit: numeric or boolean
// demographics, a bare string or "NA" for phenotypes, and missing keys.
func (p *ParsedRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Gene         any `json:"gene"`
		Variant      any `json:"variant"`
		VariantType  any `json:"variant_type"`
		Demographics any `json:"demographics"`
		Phenotypes   any `json:"phenotypes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := DefaultParsedRecord()
	out.Gene = scalarOrNA(raw.Gene)
	out.Variant = scalarOrNA(raw.Variant)
	out.VariantType = scalarOrNA(raw.VariantType)

	if demo, ok := raw.Demographics.(map[string]any); ok {
		for k, v := range demo {
			if v == nil {
				continue
			}
			out.Demographics[k] = scalarOrNA(v)
		}
	}

	switch ph := raw.Phenotypes.(type) {
	case []any:
		for _, v := range ph {
			if s := strings.TrimSpace(scalarOrNA(v)); s != "" && s != NotAvailable {
				out.Phenotypes = append(out.Phenotypes, s)
			}
		}
	case string:
		if s := strings.TrimSpace(ph); s != "" && s != NotAvailable {
			out.Phenotypes = append(out.Phenotypes, s)
		}
	}

	*p = out
	return nil
}

func scalarOrNA(v any) string {
	switch t := v.(type) {
	case nil:
		return NotAvailable
	case string:
		if strings.TrimSpace(t) == "" {
			return NotAvailable
		}
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return NotAvailable
		}
		return string(b)
	}
}

// IsNA reports whether a value is the sentinel or blank.
func IsNA(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || v == NotAvailable
}

// DoctorReport is the clinician-facing report generated for one variant record.
type DoctorReport struct {
	RecordID  string   `json:"record_id"`
	Title     string   `json:"title"`
	Report    string   `json:"report"`
	Syndromes []string `json:"syndromes"`
}

// TreatmentSection is the markdown produced for a single syndrome.
type TreatmentSection struct {
	Syndrome string `json:"syndrome"`
	Markdown string `json:"markdown"`
}

// WorkflowState accumulates the results of each stage. Values are never mutated in place:
// every With method returns a copy that shares no slices or maps with its receiver.
type WorkflowState struct {
	Input             string                     `json:"input,omitempty"`
	Parsed            ParsedRecord               `json:"parsed"`
	VariantRecords    map[string]json.RawMessage `json:"variant_records"`
	DoctorReports     []DoctorReport             `json:"doctor_reports"`
	ResolvedSyndromes []string                   `json:"resolved_syndromes"`
	TreatmentSections []TreatmentSection         `json:"treatment_sections"`
	Treatments        string                     `json:"treatments,omitempty"`
}

// NewWorkflowState starts a run from a free-text description.
func NewWorkflowState(input string) WorkflowState {
	return WorkflowState{
		Input:          input,
		Parsed:         DefaultParsedRecord(),
		VariantRecords: map[string]json.RawMessage{},
	}
}

// NewDirectState starts a run from a gene and variant supplied directly, bypassing extraction.
func NewDirectState(gene, variant string) WorkflowState {
	s := NewWorkflowState("")
	s.Parsed.Gene = orNA(gene)
	s.Parsed.Variant = orNA(variant)
	return s
}

func orNA(v string) string {
	if IsNA(v) {
		return NotAvailable
	}
	return strings.TrimSpace(v)
}

func (s WorkflowState) clone() WorkflowState {
	out := s
	out.Parsed = s.Parsed.Clone()
	out.VariantRecords = make(map[string]json.RawMessage, len(s.VariantRecords))
	for k, v := range s.VariantRecords {
		out.VariantRecords[k] = append(json.RawMessage(nil), v...)
	}
	out.DoctorReports = make([]DoctorReport, len(s.DoctorReports))
	for i, r := range s.DoctorReports {
		r.Syndromes = append([]string{}, r.Syndromes...)
		out.DoctorReports[i] = r
	}
	out.ResolvedSyndromes = append([]string{}, s.ResolvedSyndromes...)
	out.TreatmentSections = append([]TreatmentSection{}, s.TreatmentSections...)
	return out
}

// WithParsed returns a copy carrying the extracted record.
func (s WorkflowState) WithParsed(p ParsedRecord) WorkflowState {
	out := s.clone()
	out.Parsed = p.Clone()
	return out
}

// WithResolution returns a copy carrying the variant lookup results.
func (s WorkflowState) WithResolution(records map[string]json.RawMessage, reports []DoctorReport, syndromes []string) WorkflowState {
	out := s.clone()
	out.VariantRecords = make(map[string]json.RawMessage, len(records))
	for k, v := range records {
		if k == ManifestKey {
			continue
		}
		out.VariantRecords[k] = append(json.RawMessage(nil), v...)
	}
	out.DoctorReports = make([]DoctorReport, len(reports))
	for i, r := range reports {
		r.Syndromes = append([]string{}, r.Syndromes...)
		out.DoctorReports[i] = r
	}
	out.ResolvedSyndromes = append([]string{}, syndromes...)
	return out
}

// WithTreatments returns a copy carrying the synthesized treatment report.
func (s WorkflowState) WithTreatments(sections []TreatmentSection, report string) WorkflowState {
	out := s.clone()
	out.TreatmentSections = append([]TreatmentSection{}, sections...)
	out.Treatments = report
	return out
}
