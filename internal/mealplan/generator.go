package mealplan

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/iwvelando/meal-budget/internal/catalog"
	"github.com/iwvelando/meal-budget/pkg/constants"
	"github.com/iwvelando/meal-budget/pkg/money"
	"go.uber.org/zap"
)

var slotOrder = []string{
	catalog.SlotBreakfast,
	catalog.SlotLunch,
	catalog.SlotDinner,
	catalog.SlotSnack,
	catalog.SlotSnack,
	catalog.SlotSnack,
}

// Request holds the targets a plan is generated for.
type Request struct {
	UserID         int64        `json:"userId"`
	Budget         money.Amount `json:"budget"`
	CaloriesTarget int          `json:"caloriesTarget"`
	Days           int          `json:"days"`
	MealsPerDay    int          `json:"mealsPerDay"`
}

// Validate returns an error when the request cannot produce a plan.
func (r Request) Validate() error {
	if r.CaloriesTarget <= 0 {
		return fmt.Errorf("calories target must be positive, got %d", r.CaloriesTarget)
	}
	if r.Days <= 0 || r.Days > constants.MaxPlanDays {
		return fmt.Errorf("days must be between 1 and %d, got %d", constants.MaxPlanDays, r.Days)
	}
	if r.MealsPerDay <= 0 || r.MealsPerDay > constants.MaxMealsPerDay {
		return fmt.Errorf("meals per day must be between 1 and %d, got %d", constants.MaxMealsPerDay, r.MealsPerDay)
	}
	if r.Budget < 0 {
		return fmt.Errorf("budget cannot be negative")
	}
	return nil
}

// Generator builds plans from the catalog recipe book.
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

// Generate builds a plan. Each slot rotates through the recipes tagged for it
// so consecutive days differ; servings are sized to the per-meal calorie
// share and rounded to a quarter serving.
func (g *Generator) Generate(req Request) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	perMeal := float64(req.CaloriesTarget) / float64(req.MealsPerDay)
	plan := &Plan{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Budget:         req.Budget,
		CaloriesPerDay: req.CaloriesTarget,
		Days:           req.Days,
		MealsPerDay:    req.MealsPerDay,
		Meals:          make([]Meal, 0, req.Days*req.MealsPerDay),
	}

	slotUse := make(map[string]int)
	for day := 1; day <= req.Days; day++ {
		for i := 0; i < req.MealsPerDay; i++ {
			slot := slotOrder[i]
			options := g.catalog.RecipesForSlot(slot)
			if len(options) == 0 {
				return nil, fmt.Errorf("catalog has no recipes for slot %s", slot)
			}
			recipe := options[slotUse[slot]%len(options)]
			slotUse[slot]++

			plan.Meals = append(plan.Meals, Meal{
				Day:      day,
				Slot:     slot,
				Recipe:   recipe,
				Servings: ServingsFor(perMeal, recipe.CaloriesPerServing),
			})
		}
	}

	g.logger.Debug("generated meal plan",
		zap.String("op", "mealplan.Generate"),
		zap.String("planID", plan.ID),
		zap.Int64("userID", plan.UserID),
		zap.Int("meals", len(plan.Meals)),
		zap.Int("calories", plan.Calories()),
	)

	return plan, nil
}

// ServingsFor returns the servings needed to reach calories, rounded to the
// nearest quarter and never below one quarter.
func ServingsFor(calories float64, perServing int) float64 {
	if perServing <= 0 {
		return constants.ServingStep
	}
	servings := math.Round(calories/float64(perServing)/constants.ServingStep) * constants.ServingStep
	if servings < constants.ServingStep {
		return constants.ServingStep
	}
	return servings
}
