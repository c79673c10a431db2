// Package shopping turns a meal plan into a priced shopping list. Its
// Generator is the cost oracle the optimizer re-prices plans with.
package shopping

import (
	"context"
	"fmt"
	"sort"

	"github.com/iwvelando/meal-budget/internal/catalog"
	"github.com/iwvelando/meal-budget/internal/mealplan"
	"github.com/iwvelando/meal-budget/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Item is one aggregated product line.
type Item struct {
	ProductID string       `json:"productId"`
	Name      string       `json:"name"`
	Category  string       `json:"category"`
	Brand     string       `json:"brand"`
	Quantity  float64      `json:"quantity"`
	Unit      string       `json:"unit"`
	Cost      money.Amount `json:"cost"`
}

// List is a priced shopping list.
type List struct {
	PlanID     string       `json:"planId"`
	Items      []Item       `json:"items"`
	TotalCost  money.Amount `json:"totalCost"`
	ItemsCount int          `json:"itemsCount"`
	Categories []string     `json:"categories"`
}

// Generator prices plans against a catalog. It holds no mutable state.
type Generator struct {
	logger  *zap.Logger
	catalog *catalog.Catalog
}

// NewGenerator constructs a Generator.
func NewGenerator(logger *zap.Logger, c *catalog.Catalog) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger, catalog: c}
}

// Generate aggregates every ingredient across the plan by product and prices
// each line once, so rounding happens per product rather than per meal.
func (g *Generator) Generate(plan *mealplan.Plan) (*List, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan cannot be nil")
	}

	quantities := make(map[string]decimal.Decimal)
	for _, meal := range plan.Meals {
		if meal.Servings < 0 {
			return nil, fmt.Errorf("day %d %s: servings cannot be negative", meal.Day, meal.Slot)
		}
		servings := decimal.NewFromFloat(meal.Servings)
		for _, ing := range meal.Recipe.Ingredients {
			qty := decimal.NewFromFloat(ing.Quantity).Mul(servings)
			quantities[ing.Product] = quantities[ing.Product].Add(qty)
		}
	}

	list := &List{PlanID: plan.ID, Items: make([]Item, 0, len(quantities))}
	categories := make(map[string]struct{})
	for productID, qty := range quantities {
		product, ok := g.catalog.Product(productID)
		if !ok {
			return nil, fmt.Errorf("plan %s references unknown product %q", plan.ID, productID)
		}
		cost, err := g.catalog.LineCost(productID, qty)
		if err != nil {
			return nil, err
		}
		quantity, _ := qty.Round(3).Float64()
		list.Items = append(list.Items, Item{
			ProductID: productID,
			Name:      product.Name,
			Category:  product.Category,
			Brand:     product.Brand,
			Quantity:  quantity,
			Unit:      product.Unit,
			Cost:      cost,
		})
		list.TotalCost += cost
		categories[product.Category] = struct{}{}
	}

	sort.Slice(list.Items, func(i, j int) bool {
		if list.Items[i].Category != list.Items[j].Category {
			return list.Items[i].Category < list.Items[j].Category
		}
		return list.Items[i].Name < list.Items[j].Name
	})

	list.ItemsCount = len(list.Items)
	for category := range categories {
		list.Categories = append(list.Categories, category)
	}
	sort.Strings(list.Categories)

	return list, nil
}

// Price returns the total cost of plan.
func (g *Generator) Price(ctx context.Context, plan *mealplan.Plan) (money.Amount, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	list, err := g.Generate(plan)
	if err != nil {
		return 0, err
	}
	g.logger.Debug("priced plan",
		zap.String("op", "shopping.Price"),
		zap.String("planID", plan.ID),
		zap.Int64("totalCost", int64(list.TotalCost)),
		zap.Int("items", list.ItemsCount),
	)
	return list.TotalCost, nil
}
