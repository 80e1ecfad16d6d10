package scenarios

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/evbill/core/prediction"
)

// Failure describes a case whose outcome did not match expectations.
type Failure struct {
	Scenario string
	Case     string
	Reason   string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s/%s: %s", f.Scenario, f.Case, f.Reason)
}

// Result summarises a run.
type Result struct {
	Cases    int
	Failures []Failure
}

// Passed reports whether every case matched.
func (r Result) Passed() bool { return len(r.Failures) == 0 }

// Run evaluates every case of sc against engine.
func Run(ctx context.Context, engine prediction.Engine, sc *Scenario) Result {
	ctx = prediction.WithSource(ctx, prediction.SourceQA)
	var res Result
	for _, c := range sc.Cases {
		res.Cases++
		if reason := check(ctx, engine, c); reason != "" {
			res.Failures = append(res.Failures, Failure{Scenario: sc.Name, Case: c.Name, Reason: reason})
		}
	}
	return res
}

// RunAll evaluates several scenarios and merges the results.
func RunAll(ctx context.Context, engine prediction.Engine, scs []*Scenario) Result {
	var total Result
	for _, sc := range scs {
		r := Run(ctx, engine, sc)
		total.Cases += r.Cases
		total.Failures = append(total.Failures, r.Failures...)
	}
	return total
}

func check(ctx context.Context, engine prediction.Engine, c Case) string {
	_, cost, err := engine.PredictRaw(ctx, c.Input.Raw())
	if c.ExpectError {
		if err == nil {
			return fmt.Sprintf("expected an error, got %.2f", cost)
		}
		if !errors.Is(err, prediction.ErrInvalidInput) {
			return fmt.Sprintf("expected invalid input, got %v", err)
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("unexpected error: %v", err)
	}
	if c.Min != nil && cost < *c.Min {
		return fmt.Sprintf("cost %.2f below %.2f", cost, *c.Min)
	}
	if c.Max != nil && cost > *c.Max {
		return fmt.Sprintf("cost %.2f above %.2f", cost, *c.Max)
	}
	return ""
}
