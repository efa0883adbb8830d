// Package score holds the pure scoring primitives shared by the probes:
// text similarity, pattern matching, numeric tolerance and token
// accounting. Everything here is deterministic, synchronous and free of
// shared state so probes stay reproducible and safe to run on any
// worker.
package score

import (
	"maps"
	"math"
	"strings"
	"unicode"
)

// Similarity maps two texts to [0,1] via token-frequency cosine over
// case-folded alphanumeric tokens. Symmetric by construction and
// Similarity(x, x) == 1 for every x; two empty texts count as identical.
func Similarity(a, b string) float64 {
	fa := termFrequencies(a)
	fb := termFrequencies(b)
	if len(fa) == 0 && len(fb) == 0 {
		return 1
	}
	if len(fa) == 0 || len(fb) == 0 {
		return 0
	}
	// Equal distributions are exactly 1. The cosine below can lose an
	// ulp in the denominator when token counts repeat, which would put
	// identical texts just under 1.
	if maps.Equal(fa, fb) {
		return 1
	}

	var dot, normA, normB float64
	for term, countA := range fa {
		normA += countA * countA
		if countB, ok := fb[term]; ok {
			dot += countA * countB
		}
	}
	for _, countB := range fb {
		normB += countB * countB
	}
	if dot == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	return sim
}

// MinPairwiseSimilarity returns the minimum similarity over all
// unordered pairs, so a single outlier governs the result. Fewer than
// two texts yields 1.
func MinPairwiseSimilarity(texts []string) float64 {
	minSim := 1.0
	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			if sim := Similarity(texts[i], texts[j]); sim < minSim {
				minSim = sim
			}
		}
	}
	return minSim
}

// MeanPairwiseSimilarity is reported alongside the minimum for trend
// analysis; it never decides a verdict.
func MeanPairwiseSimilarity(texts []string) float64 {
	total := 0.0
	pairs := 0
	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			total += Similarity(texts[i], texts[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 1
	}
	return total / float64(pairs)
}

func termFrequencies(text string) map[string]float64 {
	freq := map[string]float64{}
	for _, token := range Tokenize(text) {
		freq[token]++
	}
	return freq
}

// Tokenize splits on any non-alphanumeric rune and lowercases, keeping
// digits so numeric claims survive normalization.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
