// Package mealplan defines the meal plan payload and the generator that
// builds an initial plan from calorie and schedule targets.
package mealplan

import (
	"github.com/iwvelando/meal-budget/internal/catalog"
	"github.com/iwvelando/meal-budget/pkg/money"
)

// Plan is a multi-day meal schedule for one user or household.
type Plan struct {
	ID             string       `json:"id"`
	UserID         int64        `json:"userId"`
	Budget         money.Amount `json:"budget"`
	CaloriesPerDay int          `json:"caloriesPerDay"`
	Days           int          `json:"days"`
	MealsPerDay    int          `json:"mealsPerDay"`
	Meals          []Meal       `json:"meals"`
}

// Meal is one recipe scheduled at a day and slot.
type Meal struct {
	Day      int            `json:"day"`
	Slot     string         `json:"slot"`
	Recipe   catalog.Recipe `json:"recipe"`
	Servings float64        `json:"servings"`
}

// Clone returns a deep copy so strategies never mutate their input.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p
	out.Meals = make([]Meal, len(p.Meals))
	for i, m := range p.Meals {
		m.Recipe = m.Recipe.Clone()
		out.Meals[i] = m
	}
	return &out
}

// Calories returns the planned calories across all meals.
func (p *Plan) Calories() int {
	total := 0.0
	for _, m := range p.Meals {
		total += float64(m.Recipe.CaloriesPerServing) * m.Servings
	}
	return int(total + 0.5)
}
