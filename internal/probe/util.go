package probe

import (
	"fmt"
	"strings"

	"github.com/Lengi96/ai-qa-framework/internal/provider"
)

// splitSentences breaks text on sentence terminators, keeping only
// fragments with real content. Good enough for claim extraction; the
// grounding probe does not need linguistic precision, just stable
// deterministic boundaries.
func splitSentences(text string) []string {
	var out []string
	var sb strings.Builder
	flush := func() {
		s := strings.TrimSpace(sb.String())
		sb.Reset()
		if len(s) >= 3 {
			out = append(out, s)
		}
	}
	for _, r := range text {
		switch r {
		case '.', '!', '?', '\n':
			flush()
		default:
			sb.WriteRune(r)
		}
	}
	flush()
	return out
}

func checkInputs(want Category, reqs []provider.Request, resps []provider.Response) error {
	if len(reqs) == 0 || len(resps) == 0 {
		return fmt.Errorf("%s probe: empty input set", want)
	}
	if len(reqs) != len(resps) {
		return fmt.Errorf("%s probe: %d requests but %d responses", want, len(reqs), len(resps))
	}
	return nil
}

func joinReasons(reasons []string, fallback string) string {
	if len(reasons) == 0 {
		return fallback
	}
	return strings.Join(reasons, "; ")
}
