package decoder

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	envelopePrefix = regexp.MustCompile(`(?is)^\s*[\[{].*?"(?:output|response)"\s*:\s*"`)
	envelopeSuffix = regexp.MustCompile(`"\s*[}\]]+\s*$`)
	trailingProse  = regexp.MustCompile(`\p{Lu}[^{}\[\]]*$`)
	plainRun       = regexp.MustCompile(`[^{}\[\]"\x00-\x08\x0B\x0C\x0E-\x1F]+`)
)

// extractEmergency is the last resort: peel the JSON envelope off raw and
// keep what looks like prose. When the peeled candidate still carries JSON,
// the longest plain-text run of the original payload is used instead.
func extractEmergency(raw string, minLen, minRun int) (string, bool) {
	candidate := raw
	if loc := envelopePrefix.FindStringIndex(candidate); loc != nil {
		candidate = candidate[loc[1]:]
	}
	if loc := envelopeSuffix.FindStringIndex(candidate); loc != nil {
		candidate = candidate[:loc[0]]
	}
	candidate = strings.TrimSpace(unescape(candidate))

	if strings.Contains(candidate, `"`) && strings.Contains(candidate, "{") {
		if tail := trailingProse.FindString(candidate); tail != "" {
			candidate = strings.TrimSpace(tail)
		}
	}

	if utf8.RuneCountInString(candidate) > minLen &&
		!strings.Contains(candidate, `{"`) &&
		!strings.Contains(candidate, `[{`) {
		return candidate, true
	}

	if run := longestRun(raw, minRun); run != "" {
		return run, true
	}
	return "", false
}

// longestRun returns the longest run of at least minRun runes free of JSON
// punctuation and containing a letter. Ties go to the leftmost run.
func longestRun(raw string, minRun int) string {
	best, bestLen := "", 0
	for _, run := range plainRun.FindAllString(raw, -1) {
		n := utf8.RuneCountInString(run)
		if n < minRun || n <= bestLen || !hasLetter(run) {
			continue
		}
		best, bestLen = run, n
	}
	return strings.TrimSpace(best)
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
