package probe

import (
	"fmt"

	"github.com/Lengi96/ai-qa-framework/internal/provider"
	"github.com/Lengi96/ai-qa-framework/internal/score"
)

// PerformanceProbe checks latency and token budgets. Every configured
// bound must hold for the case to pass; the score is the fraction of
// bounds satisfied. Bounds are inclusive: measured == limit passes. By
// default the completion must also have finished cleanly; set
// Criteria.AllowIncomplete to score truncated or refused responses on
// the numeric bounds alone.
type PerformanceProbe struct{}

func (PerformanceProbe) Category() Category { return CategoryPerformance }

func (PerformanceProbe) Evaluate(reqs []provider.Request, resps []provider.Response, criteria Criteria) (Verdict, error) {
	if err := checkInputs(CategoryPerformance, reqs, resps); err != nil {
		return Verdict{}, err
	}
	criteria = criteria.withDefaults()
	resp := resps[0]

	checked := 0
	satisfied := 0
	var failures []string

	measured := map[string]float64{
		"latency_ms":    resp.LatencyMS,
		"input_tokens":  float64(resp.InputTokens),
		"output_tokens": float64(resp.OutputTokens),
	}

	if criteria.MaxLatencyMS > 0 {
		checked++
		if resp.LatencyMS <= criteria.MaxLatencyMS {
			satisfied++
		} else {
			failures = append(failures, fmt.Sprintf("latency %.0fms > %.0fms", resp.LatencyMS, criteria.MaxLatencyMS))
		}
		measured["max_latency_ms"] = criteria.MaxLatencyMS
	}

	if criteria.ExpectedOutputTokens > 0 {
		checked++
		ratio := score.TokenRatio(resp.OutputTokens, criteria.ExpectedOutputTokens)
		measured["token_ratio"] = ratio
		measured["max_token_ratio"] = criteria.MaxTokenRatio
		if ratio <= criteria.MaxTokenRatio {
			satisfied++
		} else {
			failures = append(failures, fmt.Sprintf("output tokens %d exceed budget %d (ratio %.2f > %.2f)",
				resp.OutputTokens, criteria.ExpectedOutputTokens, ratio, criteria.MaxTokenRatio))
		}
	}

	if !criteria.AllowIncomplete {
		checked++
		if resp.FinishReason == provider.FinishCompleted {
			satisfied++
		} else {
			failures = append(failures, fmt.Sprintf("finish reason %q, want %q", resp.FinishReason, provider.FinishCompleted))
		}
	}

	if criteria.InputCostPer1K > 0 || criteria.OutputCostPer1K > 0 {
		measured["est_cost_usd"] = score.EstimateCostUSD(resp.InputTokens, resp.OutputTokens, criteria.InputCostPer1K, criteria.OutputCostPer1K)
	}

	if checked == 0 {
		return Verdict{}, fmt.Errorf("performance probe: criteria carry no bounds to check")
	}
	s := float64(satisfied) / float64(checked)
	v := Verdict{Score: s, Measured: measured}
	if satisfied == checked {
		v.Passed = true
		v.Reason = fmt.Sprintf("all %d budget checks satisfied", checked)
	} else {
		v.Reason = joinReasons(failures, "budget check failed")
	}
	return v, nil
}
