package score

// TokenRatio is output tokens over the expected ceiling; values above
// 1.0 signal an inefficiently verbose answer. A non-positive ceiling
// means no bound and yields 0.
func TokenRatio(outputTokens, ceiling int) float64 {
	if ceiling <= 0 {
		return 0
	}
	return float64(outputTokens) / float64(ceiling)
}

// EstimateCostUSD prices one exchange from per-1k token rates.
func EstimateCostUSD(inputTokens, outputTokens int, inputPer1K, outputPer1K float64) float64 {
	input := float64(inputTokens) / 1000 * inputPer1K
	output := float64(outputTokens) / 1000 * outputPer1K
	return input + output
}

// Clamp bounds value to [minValue, maxValue].
func Clamp(value, minValue, maxValue float64) float64 {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}
	return value
}
