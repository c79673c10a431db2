package strategy

import (
	"context"

	"github.com/iwvelando/meal-budget/internal/mealplan"
)

// BrandSubstitution swaps every ingredient line to the cheapest product of
// the same ingredient. Recipe structure is unchanged.
type BrandSubstitution struct {
	base
}

func (t *BrandSubstitution) Apply(ctx context.Context, plan *mealplan.Plan) (*mealplan.Plan, error) {
	out, err := t.begin(ctx, plan)
	if err != nil {
		return nil, err
	}

	changes := t.swapPlan(out, false)
	t.logChanges(out, changes)
	return out, nil
}

// IngredientSubstitution swaps every ingredient line for the cheapest of its
// own brands and its configured substitutes. Substitutes share the
// original's category and unit, so the plan keeps its categories and line
// count.
type IngredientSubstitution struct {
	base
}

func (t *IngredientSubstitution) Apply(ctx context.Context, plan *mealplan.Plan) (*mealplan.Plan, error) {
	in, err := t.begin(ctx, plan)
	if err != nil {
		return nil, err
	}

	out, changes, err := t.substitute(ctx, in)
	if err != nil {
		return nil, err
	}
	t.logChanges(out, changes)
	return out, nil
}
