package optimizer

import (
	"fmt"

	"github.com/iwvelando/meal-budget/pkg/money"
	"github.com/iwvelando/meal-budget/pkg/optimization"
)

// StopReason records why the loop ended.
type StopReason string

const (
	// StopWithinBudget means the initial plan already fit the limit.
	StopWithinBudget StopReason = "within_budget"
	// StopConverged means an attempt brought the cost to or under the limit.
	StopConverged StopReason = "converged"
	// StopNonConvergentTier means an attempt failed to lower the cost.
	StopNonConvergentTier StopReason = "non_convergent_tier"
	// StopIterationCap means the attempt budget ran out over the limit.
	StopIterationCap StopReason = "iteration_cap"
	// StopCancelled means the context ended between iterations.
	StopCancelled StopReason = "cancelled"
	// StopCollaboratorFailure means the oracle or a tier returned an error.
	StopCollaboratorFailure StopReason = "collaborator_failure"
	// StopNoApplicableTier means the registered tiers do not cover the
	// current cost bucket, a configuration error.
	StopNoApplicableTier StopReason = "no_applicable_tier"
)

// Attempt is one immutable entry of the audit trail.
type Attempt struct {
	Tier       TierID
	TierName   string
	CostBefore money.Amount
	CostAfter  money.Amount
	Savings    money.Amount
}

func newAttempt(tierID TierID, name string, before, after money.Amount) Attempt {
	return Attempt{
		Tier:       tierID,
		TierName:   name,
		CostBefore: before,
		CostAfter:  after,
		Savings:    before - after,
	}
}

// Progress reports whether the attempt lowered the cost.
func (a Attempt) Progress() bool {
	return a.Savings > 0
}

// Result is the outcome of one Optimize call. FinalPlan and FinalCost are the
// best plan reached; callers must check Converged before assuming
// FinalCost <= Limit.
type Result[P any] struct {
	FinalPlan      P
	InitialCost    money.Amount
	FinalCost      money.Amount
	Limit          money.Amount
	Attempts       []Attempt
	Converged      bool
	IterationsUsed int
	StopReason     StopReason
}

// TotalSavings is the cost removed between the initial and final plan.
func (r *Result[P]) TotalSavings() money.Amount {
	return r.InitialCost - r.FinalCost
}

// Headroom is the limit minus the final cost; negative when over budget.
func (r *Result[P]) Headroom() money.Amount {
	return r.Limit - r.FinalCost
}

// Summary converts the result into the serializable audit report.
func (r *Result[P]) Summary() optimization.Summary {
	summary := optimization.Summary{
		Limit:        r.Limit,
		InitialCost:  r.InitialCost,
		FinalCost:    r.FinalCost,
		TotalSavings: r.TotalSavings(),
		Headroom:     r.Headroom(),
		Iterations:   r.IterationsUsed,
		Converged:    r.Converged,
		StopReason:   string(r.StopReason),
		Attempts:     make([]optimization.AttemptSummary, 0, len(r.Attempts)),
	}
	for _, a := range r.Attempts {
		summary.Attempts = append(summary.Attempts, optimization.AttemptSummary{
			Tier:       int(a.Tier),
			TierName:   a.TierName,
			CostBefore: a.CostBefore,
			CostAfter:  a.CostAfter,
			Savings:    a.Savings,
		})
	}

	switch r.StopReason {
	case StopNonConvergentTier:
		last := r.Attempts[len(r.Attempts)-1]
		summary.Notes = append(summary.Notes, fmt.Sprintf(
			"%s did not reduce cost (%s -> %s); kept the plan at %s",
			last.TierName, last.CostBefore, last.CostAfter, r.FinalCost))
	case StopIterationCap:
		summary.Notes = append(summary.Notes, fmt.Sprintf(
			"unable to reach limit %s within %d attempts; best cost %s",
			r.Limit, r.IterationsUsed, r.FinalCost))
	case StopCancelled:
		summary.Notes = append(summary.Notes, fmt.Sprintf(
			"optimization cancelled after %d attempts; best cost %s", r.IterationsUsed, r.FinalCost))
	case StopCollaboratorFailure:
		summary.Notes = append(summary.Notes, "optimization aborted by a collaborator failure")
	case StopNoApplicableTier:
		summary.Notes = append(summary.Notes, fmt.Sprintf(
			"no strategy tier is registered for cost %s against limit %s", r.FinalCost, r.Limit))
	}
	return summary
}
