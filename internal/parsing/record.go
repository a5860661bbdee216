package parsing

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/genepilepsy-guide/internal/domain"
)

var (
	// ErrEmptyResponse is returned for a completion that is blank after trimming.
	ErrEmptyResponse = errors.New("empty response from language model")
	// ErrNoRecord is returned when no strategy yields a decodable record.
	ErrNoRecord = errors.New("no structured record found in response")

	braceSpanRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// recordStrategy proposes a JSON candidate from sanitized text.
type recordStrategy struct {
	name    string
	extract func(text string) (string, bool)
}

var recordStrategies = []recordStrategy{
	{name: "direct", extract: func(text string) (string, bool) { return text, true }},
	{name: "brace-span", extract: func(text string) (string, bool) {
		span := braceSpanRe.FindString(text)
		return span, span != ""
	}},
}

// ParseRecord decodes the extractor's completion into a ParsedRecord. The text is
// sanitized (reasoning preamble and whole-response code fences removed), then each
// strategy is tried in order.
func ParseRecord(raw string) (domain.ParsedRecord, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.DefaultParsedRecord(), ErrEmptyResponse
	}
	text = StripCodeFence(AfterThinking(text))
	if text == "" {
		return domain.DefaultParsedRecord(), ErrEmptyResponse
	}

	var lastErr error
	for _, strategy := range recordStrategies {
		candidate, ok := strategy.extract(text)
		if !ok {
			continue
		}
		var rec domain.ParsedRecord
		if err := json.Unmarshal([]byte(candidate), &rec); err != nil {
			lastErr = fmt.Errorf("%s: %w", strategy.name, err)
			continue
		}
		return rec, nil
	}

	if lastErr != nil {
		return domain.DefaultParsedRecord(), fmt.Errorf("%w: %v", ErrNoRecord, lastErr)
	}
	return domain.DefaultParsedRecord(), ErrNoRecord
}
