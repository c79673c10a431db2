package optimizer

import (
	"context"
	"fmt"

	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/pkg/money"
	"github.com/shopspring/decimal"
)

// TierID identifies a cost reduction strategy. Lower IDs are less intrusive.
type TierID int

// Strategy tiers in order of increasing intrusiveness.
const (
	TierBrandSubstitution TierID = iota + 1
	TierIngredientSubstitution
	TierPlanRestructuring
	TierPortionAdjustment
)

// AllTiers lists every tier from least to most intrusive.
var AllTiers = []TierID{
	TierBrandSubstitution,
	TierIngredientSubstitution,
	TierPlanRestructuring,
	TierPortionAdjustment,
}

func (id TierID) String() string {
	switch id {
	case TierBrandSubstitution:
		return "brand_substitution"
	case TierIngredientSubstitution:
		return "ingredient_substitution"
	case TierPlanRestructuring:
		return "plan_restructuring"
	case TierPortionAdjustment:
		return "portion_adjustment"
	default:
		return fmt.Sprintf("tier_%d", int(id))
	}
}

// Tier is one cost reduction strategy over plans of type P. Apply must not
// mutate its input and must return a plan the oracle can price. Calling
// Apply repeatedly on its own output must keep trying to save.
type Tier[P any] interface {
	ID() TierID
	Name() string
	Applies(cost, limit money.Amount) bool
	Apply(ctx context.Context, plan P) (P, error)
}

// CostOracle prices a plan. It must be a pure function of plan state.
type CostOracle[P any] interface {
	Price(ctx context.Context, plan P) (money.Amount, error)
}

// Thresholds is the ratio bucket table mapping overspend to a tier.
type Thresholds struct {
	Far      decimal.Decimal
	Over     decimal.Decimal
	Marginal decimal.Decimal
}

// ThresholdsFromConfig validates cfg and converts its ratios to exact decimals.
func ThresholdsFromConfig(cfg config.OptimizerConfig) (Thresholds, error) {
	if err := cfg.Validate(); err != nil {
		return Thresholds{}, err
	}
	return Thresholds{
		Far:      decimal.NewFromFloat(cfg.Thresholds.FarRatio),
		Over:     decimal.NewFromFloat(cfg.Thresholds.OverRatio),
		Marginal: decimal.NewFromFloat(cfg.Thresholds.MarginalRatio),
	}, nil
}

// Bucket evaluates the table high to low; the first match wins. Costs at or
// under the limit fall through to portion adjustment.
func (t Thresholds) Bucket(cost, limit money.Amount) TierID {
	switch {
	case cost.Exceeds(limit, t.Far):
		return TierBrandSubstitution
	case cost.Exceeds(limit, t.Over):
		return TierIngredientSubstitution
	case cost.Exceeds(limit, t.Marginal):
		return TierPlanRestructuring
	default:
		return TierPortionAdjustment
	}
}
