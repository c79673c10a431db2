// Package testutil provides common utility functions for testing.
package testutil

import (
	"testing"

	"github.com/iwvelando/meal-budget/internal/catalog"
	"github.com/iwvelando/meal-budget/internal/mealplan"
	"github.com/iwvelando/meal-budget/internal/shopping"
	"github.com/iwvelando/meal-budget/pkg/optimization"
	"go.uber.org/zap"
)

// Catalog returns the embedded default catalog, failing the test if it
// cannot be loaded.
func Catalog(tb testing.TB) *catalog.Catalog {
	tb.Helper()
	c, err := catalog.Default()
	if err != nil {
		tb.Fatalf("loading default catalog: %v", err)
	}
	return c
}

// GeneratedPlan builds a plan for req against the default catalog together
// with its priced shopping list.
func GeneratedPlan(tb testing.TB, req mealplan.Request) (*mealplan.Plan, *shopping.List) {
	tb.Helper()
	c := Catalog(tb)
	plan, err := mealplan.NewGenerator(zap.NewNop(), c).Generate(req)
	if err != nil {
		tb.Fatalf("generating plan: %v", err)
	}
	list, err := shopping.NewGenerator(zap.NewNop(), c).Generate(plan)
	if err != nil {
		tb.Fatalf("pricing plan: %v", err)
	}
	return plan, list
}

// FindItem finds a shopping list line by product ID.
// Returns a pointer to the item if found, nil otherwise.
func FindItem(list *shopping.List, productID string) *shopping.Item {
	if list == nil {
		return nil
	}
	for i := range list.Items {
		if list.Items[i].ProductID == productID {
			return &list.Items[i]
		}
	}
	return nil
}

// FindAttempt finds the first attempt of the given tier in a report.
// Returns a pointer to the attempt if found, nil otherwise.
func FindAttempt(summary optimization.Summary, tier int) *optimization.AttemptSummary {
	for i := range summary.Attempts {
		if summary.Attempts[i].Tier == tier {
			return &summary.Attempts[i]
		}
	}
	return nil
}
