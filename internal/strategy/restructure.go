package strategy

import (
	"context"
	"fmt"
	"sort"

	"github.com/iwvelando/meal-budget/internal/catalog"
	"github.com/iwvelando/meal-budget/internal/mealplan"
	"github.com/iwvelando/meal-budget/pkg/money"
)

// PlanRestructuring starts from the ingredient substitution result and then
// replaces the most expensive meals with the cheapest recipe for the same
// slot that delivers the same calories for less. Replacement recipes get the
// same product swaps.
type PlanRestructuring struct {
	base
	meals int
}

type pricedMeal struct {
	index int
	cost  money.Amount
}

func (t *PlanRestructuring) Apply(ctx context.Context, plan *mealplan.Plan) (*mealplan.Plan, error) {
	in, err := t.begin(ctx, plan)
	if err != nil {
		return nil, err
	}
	substituted, swaps, err := t.substitute(ctx, in)
	if err != nil {
		return nil, err
	}
	out := substituted.Clone()

	priced := make([]pricedMeal, 0, len(out.Meals))
	for i, meal := range out.Meals {
		cost, err := t.catalog.RecipeCost(meal.Recipe, meal.Servings)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.id, err)
		}
		priced = append(priced, pricedMeal{index: i, cost: cost})
	}
	sort.SliceStable(priced, func(i, j int) bool { return priced[i].cost > priced[j].cost })

	replaced := 0
	for _, pm := range priced {
		if replaced >= t.meals {
			break
		}
		meal := &out.Meals[pm.index]
		calories := float64(meal.Recipe.CaloriesPerServing) * meal.Servings

		recipe, servings, ok, err := t.cheapestReplacement(meal.Slot, calories, pm.cost)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		meal.Recipe = recipe
		meal.Servings = servings
		replaced++
	}

	if replaced > 0 {
		keep, err := t.cheaper(ctx, out, substituted)
		if err != nil {
			return nil, err
		}
		if keep {
			t.logChanges(out, swaps+replaced)
			return out, nil
		}
	}
	t.logChanges(substituted, swaps)
	return substituted, nil
}

func (t *PlanRestructuring) cheapestReplacement(slot string, calories float64, below money.Amount) (catalog.Recipe, float64, bool, error) {
	var (
		best         catalog.Recipe
		bestServings float64
		bestCost     = below
		found        bool
	)
	for _, candidate := range t.catalog.RecipesForSlot(slot) {
		t.swapRecipe(&candidate, true)
		servings := mealplan.ServingsFor(calories, candidate.CaloriesPerServing)
		cost, err := t.catalog.RecipeCost(candidate, servings)
		if err != nil {
			return catalog.Recipe{}, 0, false, fmt.Errorf("%s: %w", t.id, err)
		}
		if cost < bestCost {
			best, bestServings, bestCost, found = candidate, servings, cost, true
		}
	}
	return best, bestServings, found, nil
}
