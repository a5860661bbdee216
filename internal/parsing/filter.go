package parsing

import (
	"regexp"
	"strings"
)

// boilerplateConditions are ClinVar trait names that never denote an epilepsy syndrome.
var boilerplateConditions = map[string]struct{}{
	"inborn genetic diseases": {},
	"inborn genetic disease":  {},
	"not provided":            {},
	"not specified":           {},
	"see cases":               {},
}

// hpoTermRe flags phenotype strings carrying an HPO id or tag.
var hpoTermRe = regexp.MustCompile(`(?i)\bHP:\s*\d{7}\b|\bHPO\b`)

// IsBoilerplate reports whether a name must never be treated as a syndrome.
func IsBoilerplate(name string) bool {
	n := strings.TrimSpace(name)
	if n == "" {
		return true
	}
	if _, ok := boilerplateConditions[strings.ToLower(n)]; ok {
		return true
	}
	return hpoTermRe.MatchString(n)
}

// FilterSyndromes trims names, drops boilerplate and HPO phenotype strings, and removes
// exact duplicates keeping first-seen order. Matching is case-sensitive.
func FilterSyndromes(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		n := strings.TrimSpace(name)
		if IsBoilerplate(n) {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
