package parsing

import (
	"encoding/json"
	"regexp"
	"strings"
)

// SyndromeMarker precedes the machine-readable syndrome array in report completions.
const SyndromeMarker = "EPILEPSY_SYNDROMES_JSON"

// legacyMarkers are headings older prompt revisions asked for, in order of preference.
var legacyMarkers = []string{
	"OUTPUT 2 - EPILEPSY SYNDROMES",
	"EPILEPSY SYNDROMES",
	"**EPILEPSY SYNDROMES**",
}

// stringArrayPattern matches a JSON array of strings, escaped quotes included.
const stringArrayPattern = `\[(?:\s*"(?:[^\\"\n]|\\.)*"\s*(?:,\s*"(?:[^\\"\n]|\\.)*"\s*)*)?\]`

var (
	fencedArrayRe = regexp.MustCompile("(?s)```(?:json)?\\s*(" + stringArrayPattern + ")\\s*```")
	bareArrayRe   = regexp.MustCompile("(?s)" + stringArrayPattern)
)

// arrayStrategy locates the array text within the search region.
type arrayStrategy struct {
	name    string
	extract func(region string) (string, bool)
}

var arrayStrategies = []arrayStrategy{
	{name: "fenced", extract: func(region string) (string, bool) {
		m := fencedArrayRe.FindStringSubmatch(region)
		if m == nil {
			return "", false
		}
		return m[1], true
	}},
	{name: "bare", extract: func(region string) (string, bool) {
		s := bareArrayRe.FindString(region)
		return s, s != ""
	}},
}

// SyndromeResponse is the parsed form of a per-record report completion.
type SyndromeResponse struct {
	Report    string
	Syndromes []string
	// Marker is the marker that split the text, empty when none was found.
	Marker string
	// Strategy names the array strategy that matched, empty when none did.
	Strategy string
}

// ParseSyndromeResponse splits a report completion into narrative and syndrome list.
// It never fails: an absent or undecodable array yields an empty list. Without any marker
// the whole text is the report and no array is searched for.
func ParseSyndromeResponse(raw string) SyndromeResponse {
	text := StripReportHeader(StripThinking(raw))

	out := SyndromeResponse{Report: text, Syndromes: []string{}}
	var region string

	for _, marker := range append([]string{SyndromeMarker}, legacyMarkers...) {
		if idx := strings.Index(text, marker); idx != -1 {
			out.Report = strings.TrimSpace(text[:idx])
			out.Marker = marker
			region = text[idx:]
			break
		}
	}
	if out.Marker == "" {
		return out
	}

	for _, strategy := range arrayStrategies {
		arrayText, ok := strategy.extract(region)
		if !ok {
			continue
		}
		out.Strategy = strategy.name
		var names []string
		if err := json.Unmarshal([]byte(arrayText), &names); err == nil && names != nil {
			out.Syndromes = names
		}
		break
	}

	return out
}
