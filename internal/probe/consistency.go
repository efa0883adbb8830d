package probe

import (
	"fmt"

	"github.com/Lengi96/ai-qa-framework/internal/provider"
	"github.com/Lengi96/ai-qa-framework/internal/score"
)

// ConsistencyProbe measures semantic stability across repeated or
// paraphrased prompts. The minimum pairwise similarity governs: one
// divergent answer among many agreeing ones fails the case, no matter
// how good the average looks.
type ConsistencyProbe struct{}

func (ConsistencyProbe) Category() Category { return CategoryConsistency }

func (ConsistencyProbe) Evaluate(reqs []provider.Request, resps []provider.Response, criteria Criteria) (Verdict, error) {
	if err := checkInputs(CategoryConsistency, reqs, resps); err != nil {
		return Verdict{}, err
	}
	criteria = criteria.withDefaults()
	if len(resps) < 2 {
		return Verdict{}, fmt.Errorf("consistency probe: need at least 2 responses, got %d", len(resps))
	}

	texts := make([]string, len(resps))
	for i := range resps {
		texts[i] = resps[i].Text
	}
	min := score.MinPairwiseSimilarity(texts)
	mean := score.MeanPairwiseSimilarity(texts)

	v := Verdict{
		Score: min,
		Measured: map[string]float64{
			"samples":         float64(len(texts)),
			"min_similarity":  min,
			"mean_similarity": mean,
			"threshold":       criteria.MinSimilarity,
		},
	}
	if min >= criteria.MinSimilarity {
		v.Passed = true
		v.Reason = fmt.Sprintf("all %d responses agree: min pairwise similarity %.3f >= %.2f", len(texts), min, criteria.MinSimilarity)
	} else {
		v.Reason = fmt.Sprintf("responses diverge: min pairwise similarity %.3f < %.2f (mean %.3f)", min, criteria.MinSimilarity, mean)
	}
	return v, nil
}
