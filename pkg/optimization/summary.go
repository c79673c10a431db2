// Package optimization provides the serializable report of a budget
// optimization run, shared by the store, the HTTP API and the CLI output.
package optimization

import "github.com/iwvelando/meal-budget/pkg/money"

// AttemptSummary is one line of the audit trail.
type AttemptSummary struct {
	Tier       int          `json:"tier"`
	TierName   string       `json:"tierName"`
	CostBefore money.Amount `json:"costBefore"`
	CostAfter  money.Amount `json:"costAfter"`
	Savings    money.Amount `json:"savings"`
}

// Summary captures the result of a single optimization run.
type Summary struct {
	RunID        string           `json:"runId,omitempty"`
	Limit        money.Amount     `json:"limit"`
	InitialCost  money.Amount     `json:"initialCost"`
	FinalCost    money.Amount     `json:"finalCost"`
	TotalSavings money.Amount     `json:"totalSavings"`
	Headroom     money.Amount     `json:"headroom"`
	Iterations   int              `json:"iterations"`
	Converged    bool             `json:"converged"`
	StopReason   string           `json:"stopReason"`
	Attempts     []AttemptSummary `json:"attempts"`
	Notes        []string         `json:"notes,omitempty"`
}

// TierSequence returns the tier of every attempt in order.
func (s Summary) TierSequence() []int {
	out := make([]int, 0, len(s.Attempts))
	for _, a := range s.Attempts {
		out = append(out, a.Tier)
	}
	return out
}
