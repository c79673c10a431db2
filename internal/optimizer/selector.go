package optimizer

import (
	"fmt"
	"sort"

	"github.com/iwvelando/meal-budget/pkg/money"
)

// Selector picks the tier to apply for the current cost. It re-evaluates on
// every call, so tiers can be skipped or repeated across iterations.
type Selector[P any] struct {
	tiers []Tier[P]
}

// NewSelector orders tiers by ID and rejects duplicates or unknown IDs.
func NewSelector[P any](tiers ...Tier[P]) (*Selector[P], error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: at least one strategy tier is required", ErrInvalidInput)
	}
	seen := make(map[TierID]struct{}, len(tiers))
	ordered := make([]Tier[P], 0, len(tiers))
	for _, tier := range tiers {
		if tier == nil {
			return nil, fmt.Errorf("%w: strategy tier cannot be nil", ErrInvalidInput)
		}
		id := tier.ID()
		if id < TierBrandSubstitution || id > TierPortionAdjustment {
			return nil, fmt.Errorf("%w: unknown strategy tier %d", ErrInvalidInput, int(id))
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: strategy tier %s registered twice", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
		ordered = append(ordered, tier)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID() < ordered[j].ID() })
	return &Selector[P]{tiers: ordered}, nil
}

// Select returns the first tier, from least to most intrusive, whose
// predicate accepts cost against limit.
func (s *Selector[P]) Select(cost, limit money.Amount) (Tier[P], error) {
	for _, tier := range s.tiers {
		if tier.Applies(cost, limit) {
			return tier, nil
		}
	}
	return nil, fmt.Errorf("%w: cost %s against limit %s", ErrNoApplicableTier, cost, limit)
}
