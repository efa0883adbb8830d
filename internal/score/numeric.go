package score

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// WithinTolerance reports whether actual matches expected under a
// relative and/or absolute tolerance. With both tolerances zero only an
// exact match passes.
func WithinTolerance(expected, actual, relTol, absTol float64) bool {
	diff := math.Abs(expected - actual)
	if absTol > 0 && diff <= absTol {
		return true
	}
	if relTol > 0 && diff <= relTol*math.Abs(expected) {
		return true
	}
	return diff == 0
}

var numberPattern = regexp.MustCompile(`-?\d+(?:,\d{3})*(?:\.\d+)?%?`)

// ExtractNumbers pulls every numeric literal out of free text,
// normalizing thousands separators ("1,247" -> 1247) and dropping
// trailing percent signs.
func ExtractNumbers(text string) []float64 {
	matches := numberPattern.FindAllString(text, -1)
	out := make([]float64, 0, len(matches))
	for _, match := range matches {
		cleaned := strings.TrimSuffix(strings.ReplaceAll(match, ",", ""), "%")
		value, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			continue
		}
		out = append(out, value)
	}
	return out
}

// AnyWithinTolerance reports whether any extracted value matches
// expected; used by math-accuracy checks where the response may contain
// intermediate numbers.
func AnyWithinTolerance(values []float64, expected, relTol, absTol float64) bool {
	for _, value := range values {
		if WithinTolerance(expected, value, relTol, absTol) {
			return true
		}
	}
	return false
}
