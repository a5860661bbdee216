// Package parsing turns loosely formatted language-model output into structured values.
// Every parser here is best effort: fallbacks are expressed as ordered strategy lists and
// the syndrome parser never fails.
package parsing

import (
	"regexp"
	"strings"
)

var (
	thinkBlockRe   = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkOpenRe    = regexp.MustCompile(`(?i)<think>`)
	thinkCloseRe   = regexp.MustCompile(`(?i)</think>`)
	reportHeaderRe = regexp.MustCompile(`(?im)^\s*\*?\*?OUTPUT\s+1\s*-?\s*CLINICAL\s+REPORT\*?\*?\s*:?\s*\n?`)
	codeFenceRe    = regexp.MustCompile("(?s)^```[A-Za-z0-9_+-]*[ \t]*\n?(.*?)\n?[ \t]*```$")
)

// StripThinking removes every reasoning block wherever it occurs and trims the result.
func StripThinking(text string) string {
	return strings.TrimSpace(thinkBlockRe.ReplaceAllString(text, ""))
}

// AfterThinking keeps only what follows the last closing reasoning marker, when a paired
// marker is present. Text without a complete pair is returned trimmed.
func AfterThinking(text string) string {
	text = strings.TrimSpace(text)
	if !thinkOpenRe.MatchString(text) {
		return text
	}
	closes := thinkCloseRe.FindAllStringIndex(text, -1)
	if len(closes) == 0 {
		return text
	}
	// Offsets come from text itself; case folding can change byte lengths.
	return strings.TrimSpace(text[closes[len(closes)-1][1]:])
}

// StripCodeFence unwraps text that is entirely enclosed in a Markdown code fence,
// with or without a language tag.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// StripReportHeader removes "OUTPUT 1 - CLINICAL REPORT" style headings models sometimes
// prepend to the narrative.
func StripReportHeader(text string) string {
	return strings.TrimSpace(reportHeaderRe.ReplaceAllString(text, ""))
}
