package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lengi96/ai-qa-framework/internal/provider"
	"github.com/Lengi96/ai-qa-framework/internal/telemetry"
)

// Sender issues one prompt and returns the model's response. Satisfied
// by provider.Caller; tests substitute fakes.
type Sender interface {
	Send(ctx context.Context, req provider.Request) (*provider.Response, error)
}

// Runner drives test cases through a Sender and scores the responses.
// Cases run concurrently up to Workers; the prompts inside one case
// run in order, and the probe only ever sees the complete set.
type Runner struct {
	sender  Sender
	probes  map[Category]Probe
	workers int
	obs     *telemetry.Observability
	log     *slog.Logger
}

func NewRunner(sender Sender, workers int, obs *telemetry.Observability, log *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		sender:  sender,
		probes:  DefaultProbes(),
		workers: workers,
		obs:     obs,
		log:     log,
	}
}

// Run executes all cases and returns one record per case, in input
// order. An infrastructure failure in one case is captured in its
// record and never aborts the rest; Run itself only fails when the
// context is cancelled.
func (r *Runner) Run(ctx context.Context, cases []TestCase) ([]Record, error) {
	records := make([]Record, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = r.runCase(gctx, cases[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return records, err
	}
	return records, nil
}

func (r *Runner) runCase(ctx context.Context, tc TestCase) Record {
	ctx, span := r.obs.StartCase(ctx, tc.ID, string(tc.Category))
	defer span.End()

	started := time.Now()
	rec := Record{TestID: tc.ID, Name: tc.Name, Category: tc.Category}
	finish := func() Record {
		rec.DurationMS = time.Since(started).Milliseconds()
		return rec
	}

	p, ok := r.probes[tc.Category]
	if !ok {
		rec.Error = fmt.Sprintf("no probe for category %q", tc.Category)
		r.obs.MarkInfraError(ctx, "unknown_category")
		r.obs.MarkCase(ctx, string(tc.Category), "error")
		return finish()
	}

	reqs := expandPrompts(tc)
	if len(reqs) == 0 {
		rec.Error = "test case carries no prompts"
		r.obs.MarkInfraError(ctx, "empty_case")
		r.obs.MarkCase(ctx, string(tc.Category), "error")
		return finish()
	}

	resps := make([]provider.Response, 0, len(reqs))
	for _, req := range reqs {
		resp, err := r.sender.Send(ctx, req)
		if err != nil {
			kind := "provider"
			if ce, ok := provider.AsCallError(err); ok {
				kind = string(ce.Kind)
			}
			rec.Error = err.Error()
			r.log.Error("case aborted", "test_id", tc.ID, "category", tc.Category, "error", err)
			r.obs.MarkInfraError(ctx, kind)
			r.obs.MarkCase(ctx, string(tc.Category), "error")
			return finish()
		}
		resps = append(resps, *resp)
	}

	verdict, err := p.Evaluate(reqs, resps, tc.Criteria)
	if err != nil {
		rec.Error = err.Error()
		r.obs.MarkInfraError(ctx, "evaluate")
		r.obs.MarkCase(ctx, string(tc.Category), "error")
		return finish()
	}
	rec.Verdict = verdict

	outcome := "fail"
	if verdict.Passed {
		outcome = "pass"
	}
	r.obs.MarkCase(ctx, string(tc.Category), outcome)
	r.log.Info("case scored",
		"test_id", tc.ID,
		"category", tc.Category,
		"passed", verdict.Passed,
		"score", verdict.Score,
	)
	return finish()
}

// expandPrompts materializes the prompt set the probe will see. A
// consistency case listing a single prompt means "ask it N times"; all
// other shapes pass through unchanged.
func expandPrompts(tc TestCase) []provider.Request {
	if tc.Category == CategoryConsistency && len(tc.Prompts) == 1 {
		runs := tc.Criteria.withDefaults().ConsistencyRuns
		reqs := make([]provider.Request, runs)
		for i := range reqs {
			reqs[i] = tc.Prompts[0]
		}
		return reqs
	}
	return tc.Prompts
}

// Summary aggregates a run's records for reporting and exit-code
// decisions.
type Summary struct {
	Total      int              `json:"total"`
	Passed     int              `json:"passed"`
	Failed     int              `json:"failed"`
	Errors     int              `json:"errors"`
	ByCategory map[Category]int `json:"failed_by_category,omitempty"`
}

func Summarize(records []Record) Summary {
	s := Summary{Total: len(records), ByCategory: map[Category]int{}}
	for _, rec := range records {
		switch {
		case rec.Error != "":
			s.Errors++
		case rec.Verdict.Passed:
			s.Passed++
		default:
			s.Failed++
			s.ByCategory[rec.Category]++
		}
	}
	return s
}
