// Package strategy implements the four cost reduction tiers the optimizer
// chooses between for meal plans. Every tier returns a deep copy and leaves
// its input untouched.
//
// Tiers 1 to 3 are cumulative: ingredient substitution includes the brand
// swaps, and plan restructuring starts from the ingredient substitution
// result. Each of them is priced against the tier below and never returns a
// plan that costs more than that tier would for the same input.
package strategy

import (
	"context"
	"fmt"

	"github.com/iwvelando/meal-budget/internal/catalog"
	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/internal/mealplan"
	"github.com/iwvelando/meal-budget/internal/optimizer"
	"github.com/iwvelando/meal-budget/internal/shopping"
	"github.com/iwvelando/meal-budget/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// base carries what every tier shares: identity, the bucket table its
// Applies predicate delegates to, the catalog and the pricer.
type base struct {
	id         optimizer.TierID
	thresholds optimizer.Thresholds
	catalog    *catalog.Catalog
	pricer     *shopping.Generator
	logger     *zap.Logger
}

func (b base) ID() optimizer.TierID { return b.id }

func (b base) Name() string { return b.id.String() }

func (b base) Applies(cost, limit money.Amount) bool {
	return b.thresholds.Bucket(cost, limit) == b.id
}

func (b base) begin(ctx context.Context, plan *mealplan.Plan) (*mealplan.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("%s: plan cannot be nil", b.id)
	}
	return plan.Clone(), nil
}

// cheaperProduct returns the cheapest product that can replace the line: the
// same ingredient of another brand or, with substitutes set, a configured
// substitute sold in the same unit. ok is false when nothing is cheaper.
func (b base) cheaperProduct(line catalog.RecipeIngredient, substitutes bool) (catalog.Product, bool) {
	current, ok := b.catalog.Product(line.Product)
	if !ok {
		return catalog.Product{}, false
	}
	best := current
	consider := func(ingredient string) {
		candidate, ok := b.catalog.CheapestFor(ingredient)
		if ok && candidate.Unit == current.Unit && candidate.UnitPrice < best.UnitPrice {
			best = candidate
		}
	}
	consider(line.Ingredient)
	if substitutes {
		for _, sub := range b.catalog.Substitutes(line.Ingredient) {
			consider(sub)
		}
	}
	return best, best.ID != current.ID
}

// swapRecipe moves every line of r to its cheaper product in place.
func (b base) swapRecipe(r *catalog.Recipe, substitutes bool) int {
	changes := 0
	for j := range r.Ingredients {
		line := &r.Ingredients[j]
		p, ok := b.cheaperProduct(*line, substitutes)
		if !ok {
			continue
		}
		line.Ingredient, line.Product, line.Unit = p.Ingredient, p.ID, p.Unit
		changes++
	}
	return changes
}

func (b base) swapPlan(plan *mealplan.Plan, substitutes bool) int {
	changes := 0
	for i := range plan.Meals {
		changes += b.swapRecipe(&plan.Meals[i].Recipe, substitutes)
	}
	return changes
}

// substitute is the ingredient substitution step: the full swap including
// substitutes, unless the brand-only swap prices lower.
func (b base) substitute(ctx context.Context, plan *mealplan.Plan) (*mealplan.Plan, int, error) {
	brands := plan.Clone()
	brandChanges := b.swapPlan(brands, false)
	full := plan.Clone()
	fullChanges := b.swapPlan(full, true)

	keep, err := b.cheaper(ctx, full, brands)
	if err != nil {
		return nil, 0, err
	}
	if keep {
		return full, fullChanges, nil
	}
	return brands, brandChanges, nil
}

// cheaper reports whether candidate prices strictly below fallback.
func (b base) cheaper(ctx context.Context, candidate, fallback *mealplan.Plan) (bool, error) {
	candidateCost, err := b.pricer.Price(ctx, candidate)
	if err != nil {
		return false, fmt.Errorf("%s: %w", b.id, err)
	}
	fallbackCost, err := b.pricer.Price(ctx, fallback)
	if err != nil {
		return false, fmt.Errorf("%s: %w", b.id, err)
	}
	return candidateCost < fallbackCost, nil
}

func (b base) logChanges(plan *mealplan.Plan, changes int) {
	b.logger.Debug("strategy tier applied",
		zap.String("op", "strategy.Apply"),
		zap.String("tier", b.id.String()),
		zap.String("planID", plan.ID),
		zap.Int("changes", changes),
	)
}

// Tiers builds all four tiers from the optimizer configuration.
func Tiers(logger *zap.Logger, c *catalog.Catalog, cfg config.OptimizerConfig) ([]optimizer.Tier[*mealplan.Plan], error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	thresholds, err := optimizer.ThresholdsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	pricer := shopping.NewGenerator(logger, c)
	newBase := func(id optimizer.TierID) base {
		return base{id: id, thresholds: thresholds, catalog: c, pricer: pricer, logger: logger}
	}

	return []optimizer.Tier[*mealplan.Plan]{
		&BrandSubstitution{base: newBase(optimizer.TierBrandSubstitution)},
		&IngredientSubstitution{base: newBase(optimizer.TierIngredientSubstitution)},
		&PlanRestructuring{base: newBase(optimizer.TierPlanRestructuring), meals: cfg.RestructureMeals},
		&PortionAdjustment{
			base:        newBase(optimizer.TierPortionAdjustment),
			factor:      decimal.NewFromFloat(cfg.PortionFactor),
			minServings: decimal.NewFromFloat(cfg.MinServings),
		},
	}, nil
}
