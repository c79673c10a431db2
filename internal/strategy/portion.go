package strategy

import (
	"context"

	"github.com/iwvelando/meal-budget/internal/mealplan"
	"github.com/shopspring/decimal"
)

// servingPlaces bounds the precision servings are kept at after scaling.
const servingPlaces = 4

// PortionAdjustment scales every meal's servings by a fixed factor, never
// below the configured floor. Meals already at or under the floor are kept.
type PortionAdjustment struct {
	base
	factor      decimal.Decimal
	minServings decimal.Decimal
}

func (t *PortionAdjustment) Apply(ctx context.Context, plan *mealplan.Plan) (*mealplan.Plan, error) {
	out, err := t.begin(ctx, plan)
	if err != nil {
		return nil, err
	}

	changes := 0
	for i := range out.Meals {
		servings := decimal.NewFromFloat(out.Meals[i].Servings)
		if servings.LessThanOrEqual(t.minServings) {
			continue
		}
		scaled := decimal.Max(servings.Mul(t.factor).Round(servingPlaces), t.minServings)
		out.Meals[i].Servings, _ = scaled.Float64()
		changes++
	}

	t.logChanges(out, changes)
	return out, nil
}
