package probe

import (
	"fmt"

	"github.com/Lengi96/ai-qa-framework/internal/provider"
	"github.com/Lengi96/ai-qa-framework/internal/score"
)

// GroundingProbe checks a context-conditioned answer against the
// supplied context only, never against world knowledge. Each response
// sentence is a claim; a claim is grounded when some context sentence
// is lexically close to it, and contradicted when its closest context
// sentence disagrees on the numbers. One contradiction fails the case
// outright.
type GroundingProbe struct{}

func (GroundingProbe) Category() Category { return CategoryGrounding }

func (GroundingProbe) Evaluate(reqs []provider.Request, resps []provider.Response, criteria Criteria) (Verdict, error) {
	if err := checkInputs(CategoryGrounding, reqs, resps); err != nil {
		return Verdict{}, err
	}
	criteria = criteria.withDefaults()
	if criteria.Context == "" {
		return Verdict{}, fmt.Errorf("grounding probe: criteria carry no context")
	}

	ctxSentences := splitSentences(criteria.Context)
	claims := splitSentences(resps[0].Text)
	if len(claims) == 0 {
		return Verdict{Score: 0, Reason: "empty response, nothing grounded"}, nil
	}

	grounded := 0
	contradictions := 0
	var firstUngrounded, firstContradiction string
	for _, claim := range claims {
		best := -1.0
		bestIdx := -1
		for i, cs := range ctxSentences {
			if s := score.Similarity(claim, cs); s > best {
				best = s
				bestIdx = i
			}
		}
		if bestIdx < 0 || best < criteria.ClaimAlignThreshold {
			if firstUngrounded == "" {
				firstUngrounded = claim
			}
			continue
		}
		if contradictsNumbers(claim, ctxSentences[bestIdx], criteria) {
			contradictions++
			if firstContradiction == "" {
				firstContradiction = claim
			}
			continue
		}
		grounded++
	}

	coverage := float64(grounded) / float64(len(claims))
	measured := map[string]float64{
		"claims":         float64(len(claims)),
		"grounded":       float64(grounded),
		"contradictions": float64(contradictions),
		"coverage":       coverage,
	}

	if contradictions > 0 {
		return Verdict{
			Score:    0,
			Reason:   fmt.Sprintf("claim contradicts the context: %q", truncate(firstContradiction, 120)),
			Measured: measured,
		}, nil
	}
	if coverage < criteria.CoverageThreshold {
		reason := fmt.Sprintf("only %.0f%% of claims grounded in the context", coverage*100)
		if firstUngrounded != "" {
			reason = fmt.Sprintf("%s, e.g. %q", reason, truncate(firstUngrounded, 120))
		}
		return Verdict{Score: coverage, Reason: reason, Measured: measured}, nil
	}
	return Verdict{
		Passed:   true,
		Score:    coverage,
		Reason:   fmt.Sprintf("%d/%d claims grounded, no contradictions", grounded, len(claims)),
		Measured: measured,
	}, nil
}

// contradictsNumbers reports whether a claim that lexically aligns with
// a context sentence carries figures the context sentence does not
// back. Claims without numbers cannot contradict this way.
func contradictsNumbers(claim, contextSentence string, criteria Criteria) bool {
	claimNums := score.ExtractNumbers(claim)
	if len(claimNums) == 0 {
		return false
	}
	ctxNums := score.ExtractNumbers(contextSentence)
	if len(ctxNums) == 0 {
		return false
	}
	for _, cn := range claimNums {
		if !score.AnyWithinTolerance(ctxNums, cn, criteria.RelTolerance, criteria.AbsTolerance) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
