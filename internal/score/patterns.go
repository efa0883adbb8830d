package score

import "strings"

// PatternMatch is the outcome of scanning one text against a pattern
// set: which patterns hit and whether any did.
type PatternMatch struct {
	Matched []string
	Any     bool
}

// MatchPatterns scans text against a deny/allow list. Matching is
// case-insensitive; a pattern without wildcards matches as a substring,
// `*` matches any run of characters. The input pattern set is never
// mutated.
func MatchPatterns(text string, patterns []string) PatternMatch {
	haystack := strings.ToLower(text)
	match := PatternMatch{Matched: []string{}}
	for _, pattern := range patterns {
		trimmed := strings.TrimSpace(pattern)
		if trimmed == "" {
			continue
		}
		if matchOne(haystack, strings.ToLower(trimmed)) {
			match.Matched = append(match.Matched, pattern)
		}
	}
	match.Any = len(match.Matched) > 0
	return match
}

func matchOne(haystack, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return strings.Contains(haystack, pattern)
	}
	// Segments must appear in order; `*` bridges any gap.
	pos := 0
	for _, segment := range strings.Split(pattern, "*") {
		if segment == "" {
			continue
		}
		idx := strings.Index(haystack[pos:], segment)
		if idx < 0 {
			return false
		}
		pos += idx + len(segment)
	}
	return true
}
