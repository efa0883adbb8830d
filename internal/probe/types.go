// Package probe turns raw model responses into pass/fail verdicts along
// the six quality dimensions: security, consistency, hallucination,
// performance, bias and grounding. Probes are pure functions of their
// inputs; all thresholds are policy carried in Criteria, never
// hard-coded.
package probe

import (
	"strings"

	"github.com/Lengi96/ai-qa-framework/internal/provider"
)

type Category string

const (
	CategorySecurity      Category = "security"
	CategoryConsistency   Category = "consistency"
	CategoryHallucination Category = "hallucination"
	CategoryPerformance   Category = "performance"
	CategoryBias          Category = "bias"
	CategoryGrounding     Category = "grounding"
)

func ParseCategory(value string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(value))) {
	case CategorySecurity:
		return CategorySecurity, true
	case CategoryConsistency:
		return CategoryConsistency, true
	case CategoryHallucination:
		return CategoryHallucination, true
	case CategoryPerformance:
		return CategoryPerformance, true
	case CategoryBias:
		return CategoryBias, true
	case CategoryGrounding:
		return CategoryGrounding, true
	}
	return "", false
}

func AllCategories() []Category {
	return []Category{
		CategorySecurity,
		CategoryConsistency,
		CategoryHallucination,
		CategoryPerformance,
		CategoryBias,
		CategoryGrounding,
	}
}

// Verdict is the immutable outcome of one probe evaluation. Score lies
// in [0,1]; Passed is a deterministic function of Score and the
// criteria thresholds, so identical inputs always yield identical
// verdicts.
type Verdict struct {
	Passed   bool               `json:"passed"`
	Score    float64            `json:"score"`
	Reason   string             `json:"reason"`
	Measured map[string]float64 `json:"measured_values,omitempty"`
}

// Criteria is the per-case scoring policy supplied by the calling test
// case. Probes read it, never mutate it; zero values fall back to the
// defaults in withDefaults.
type Criteria struct {
	// Shared thresholds.
	MinSimilarity   float64 `json:"min_similarity,omitempty" yaml:"min_similarity,omitempty"`
	ConsistencyRuns int     `json:"consistency_runs,omitempty" yaml:"consistency_runs,omitempty"`

	// Pattern sets (case-insensitive, `*` wildcard).
	DenyPatterns        []string `json:"deny_patterns,omitempty" yaml:"deny_patterns,omitempty"`
	CompliancePatterns  []string `json:"compliance_patterns,omitempty" yaml:"compliance_patterns,omitempty"`
	StereotypePatterns  []string `json:"stereotype_patterns,omitempty" yaml:"stereotype_patterns,omitempty"`
	AffirmationPatterns []string `json:"affirmation_patterns,omitempty" yaml:"affirmation_patterns,omitempty"`
	HonestyPatterns     []string `json:"honesty_patterns,omitempty" yaml:"honesty_patterns,omitempty"`
	CautionPatterns     []string `json:"caution_patterns,omitempty" yaml:"caution_patterns,omitempty"`

	// Reference material.
	ReferenceAnswer   string   `json:"reference_answer,omitempty" yaml:"reference_answer,omitempty"`
	ExpectedFragments []string `json:"expected_fragments,omitempty" yaml:"expected_fragments,omitempty"`
	ExpectedNumber    *float64 `json:"expected_number,omitempty" yaml:"expected_number,omitempty"`
	RelTolerance      float64  `json:"rel_tolerance,omitempty" yaml:"rel_tolerance,omitempty"`
	AbsTolerance      float64  `json:"abs_tolerance,omitempty" yaml:"abs_tolerance,omitempty"`

	// Performance SLA bounds. AllowIncomplete waives the default
	// requirement that the completion finished cleanly.
	AllowIncomplete      bool    `json:"allow_incomplete,omitempty" yaml:"allow_incomplete,omitempty"`
	MaxLatencyMS         float64 `json:"max_latency_ms,omitempty" yaml:"max_latency_ms,omitempty"`
	MaxTokenRatio        float64 `json:"max_token_ratio,omitempty" yaml:"max_token_ratio,omitempty"`
	ExpectedOutputTokens int     `json:"expected_output_tokens,omitempty" yaml:"expected_output_tokens,omitempty"`
	InputCostPer1K       float64 `json:"input_cost_per_1k,omitempty" yaml:"input_cost_per_1k,omitempty"`
	OutputCostPer1K      float64 `json:"output_cost_per_1k,omitempty" yaml:"output_cost_per_1k,omitempty"`

	// Bias dispersion bound (response length ratio against the mean).
	MaxLengthRatio float64 `json:"max_length_ratio,omitempty" yaml:"max_length_ratio,omitempty"`

	// Grounding context and thresholds.
	Context             string  `json:"context,omitempty" yaml:"context,omitempty"`
	ClaimAlignThreshold float64 `json:"claim_align_threshold,omitempty" yaml:"claim_align_threshold,omitempty"`
	CoverageThreshold   float64 `json:"coverage_threshold,omitempty" yaml:"coverage_threshold,omitempty"`
}

func (c Criteria) withDefaults() Criteria {
	out := c
	if out.MinSimilarity <= 0 {
		out.MinSimilarity = 0.75
	}
	if out.ConsistencyRuns <= 0 {
		out.ConsistencyRuns = 3
	}
	if out.MaxTokenRatio <= 0 {
		out.MaxTokenRatio = 1.0
	}
	if out.MaxLengthRatio <= 0 {
		out.MaxLengthRatio = 1.5
	}
	if out.ClaimAlignThreshold <= 0 {
		out.ClaimAlignThreshold = 0.4
	}
	if out.CoverageThreshold <= 0 {
		out.CoverageThreshold = 0.6
	}
	return out
}

// Probe evaluates one complete set of prompt/response pairs against the
// criteria. Implementations are stateless: they may be shared across
// workers and re-invoked with identical inputs to identical effect. A
// returned error means the inputs were unscorable (infrastructure
// problem), never that the model answered badly.
type Probe interface {
	Category() Category
	Evaluate(reqs []provider.Request, resps []provider.Response, criteria Criteria) (Verdict, error)
}

// TestCase pairs the prompts to issue with the criteria to score them
// under. Multi-sample categories list explicit variants, or a single
// prompt the runner replicates.
type TestCase struct {
	ID       string             `json:"id" yaml:"id"`
	Name     string             `json:"name,omitempty" yaml:"name,omitempty"`
	Category Category           `json:"category" yaml:"category"`
	Prompts  []provider.Request `json:"prompts" yaml:"prompts"`
	Criteria Criteria           `json:"criteria" yaml:"criteria"`
}

// Record is the handoff unit to the external verdict aggregator. Error
// marks an infrastructure failure (no verdict was produced), which the
// aggregator must keep distinct from a failed verdict.
type Record struct {
	TestID     string   `json:"test_id"`
	Name       string   `json:"name,omitempty"`
	Category   Category `json:"category"`
	Verdict    Verdict  `json:"verdict"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// DefaultProbes maps every category to its evaluator.
func DefaultProbes() map[Category]Probe {
	return map[Category]Probe{
		CategorySecurity:      SecurityProbe{},
		CategoryConsistency:   ConsistencyProbe{},
		CategoryHallucination: HallucinationProbe{},
		CategoryPerformance:   PerformanceProbe{},
		CategoryBias:          BiasProbe{},
		CategoryGrounding:     GroundingProbe{},
	}
}
