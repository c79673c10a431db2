package planner

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/internal/mealplan"
	"github.com/iwvelando/meal-budget/internal/shopping"
	"github.com/iwvelando/meal-budget/internal/store"
	"github.com/iwvelando/meal-budget/pkg/money"
	"github.com/iwvelando/meal-budget/pkg/optimization"
	"github.com/iwvelando/meal-budget/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryPersister struct {
	plans  []*mealplan.Plan
	lists  []*shopping.List
	runs   []optimization.Summary
	failOn string
}

func (m *memoryPersister) SaveOutcome(_ context.Context, plan *mealplan.Plan, list *shopping.List, summary *optimization.Summary) (string, string, string, error) {
	if m.failOn != "" {
		return "", "", "", errors.New("disk full")
	}
	m.plans = append(m.plans, plan)
	m.lists = append(m.lists, list)
	runID := ""
	if summary != nil {
		m.runs = append(m.runs, *summary)
		runID = "run-1"
	}
	return plan.ID, "list-1", runID, nil
}

func newService(t *testing.T, persister Persister) *Service {
	t.Helper()
	svc, err := NewService(zap.NewNop(), config.DefaultOptimizerConfig(), testutil.Catalog(t), persister)
	require.NoError(t, err)
	return svc
}

func baseRequest() Request {
	return Request{Request: mealplan.Request{UserID: 1, CaloriesTarget: 2000, Days: 7, MealsPerDay: 3}}
}

// unconstrainedCost prices the request without a budget.
func unconstrainedCost(t *testing.T, svc *Service) money.Amount {
	t.Helper()
	outcome, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	return outcome.ShoppingList.TotalCost
}

func TestRunWithoutBudgetSkipsOptimization(t *testing.T) {
	persister := &memoryPersister{}
	svc := newService(t, persister)

	outcome, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Nil(t, outcome.Optimization)
	assert.True(t, outcome.WithinBudget)
	assert.True(t, outcome.Persisted)
	assert.Len(t, outcome.Plan.Meals, 21)
	assert.Positive(t, int64(outcome.ShoppingList.TotalCost))
	assert.Empty(t, persister.runs)
}

func TestRunWithinBudget(t *testing.T) {
	persister := &memoryPersister{}
	svc := newService(t, persister)

	req := baseRequest()
	req.Budget = money.FromMajor(10000)
	outcome, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, outcome.Optimization)
	assert.Equal(t, "within_budget", outcome.Optimization.StopReason)
	assert.Empty(t, outcome.Optimization.Attempts)
	assert.True(t, outcome.Persisted)
	assert.Equal(t, "run-1", outcome.RunID)
	assert.Equal(t, "run-1", outcome.Optimization.RunID)
	require.Len(t, persister.runs, 1)
}

func TestRunMarginallyOverBudgetAdjustsPortions(t *testing.T) {
	svc := newService(t, &memoryPersister{})
	initial := unconstrainedCost(t, svc)

	req := baseRequest()
	req.Budget = initial.Scale(decimal.RequireFromString("0.97"))
	outcome, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, outcome.Optimization)
	assert.Equal(t, []int{4}, outcome.Optimization.TierSequence())
	portion := testutil.FindAttempt(*outcome.Optimization, 4)
	require.NotNil(t, portion)
	assert.Equal(t, initial-portion.CostAfter, portion.Savings)
	assert.True(t, outcome.WithinBudget)
	assert.LessOrEqual(t, outcome.ShoppingList.TotalCost, req.Budget)
	assert.Equal(t, outcome.Optimization.FinalCost, outcome.ShoppingList.TotalCost)
	assert.Equal(t, outcome.Plan.ID, outcome.ShoppingList.PlanID)
}

func TestRunUnreachableBudget(t *testing.T) {
	t.Run("partial result is not persisted", func(t *testing.T) {
		persister := &memoryPersister{}
		svc := newService(t, persister)

		req := baseRequest()
		req.Budget = 1
		outcome, err := svc.Run(context.Background(), req)
		require.NoError(t, err)

		assert.False(t, outcome.WithinBudget)
		assert.False(t, outcome.Persisted)
		assert.False(t, outcome.Optimization.Converged)
		assert.NotEmpty(t, outcome.Optimization.Notes)
		assert.Empty(t, persister.plans)
	})

	t.Run("accepted partial result is persisted", func(t *testing.T) {
		persister := &memoryPersister{}
		svc := newService(t, persister)

		req := baseRequest()
		req.Budget = 1
		req.AcceptPartial = true
		outcome, err := svc.Run(context.Background(), req)
		require.NoError(t, err)

		assert.False(t, outcome.WithinBudget)
		assert.True(t, outcome.Persisted)
		require.Len(t, persister.runs, 1)
		assert.False(t, persister.runs[0].Converged)
	})
}

func TestRunErrors(t *testing.T) {
	svc := newService(t, &memoryPersister{failOn: "list"})

	_, err := svc.Run(context.Background(), Request{Request: mealplan.Request{CaloriesTarget: 2000, Days: 0, MealsPerDay: 3}})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Run(context.Background(), baseRequest())
	assert.ErrorContains(t, err, "saving outcome")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Run(ctx, baseRequest())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewService(nil, config.DefaultOptimizerConfig(), nil, nil)
	assert.Error(t, err)
}

func TestRunPersistsToSQLite(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, zap.NewNop(), config.StorageConfig{
		Enabled: true,
		Driver:  "sqlite",
		DSN:     filepath.Join(t.TempDir(), "plans.db"),
	})
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	svc := newService(t, st)
	req := baseRequest()
	req.Budget = money.FromMajor(10000)
	outcome, err := svc.Run(ctx, req)
	require.NoError(t, err)
	require.True(t, outcome.Persisted)

	loaded, err := st.LoadPlan(ctx, outcome.PlanID)
	require.NoError(t, err)
	assert.Equal(t, outcome.Plan.Meals, loaded.Meals)

	runs, err := st.Runs(ctx, outcome.PlanID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, outcome.RunID, runs[0].RunID)
}

func TestRunPersistsNothingWhenAWriteFails(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "plans.db")
	st, err := store.Open(ctx, zap.NewNop(), config.StorageConfig{Enabled: true, Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, "DROP TABLE shopping_lists")
	require.NoError(t, err)

	svc := newService(t, st)
	req := baseRequest()
	req.Budget = money.FromMajor(10000)
	outcome, err := svc.Run(ctx, req)
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.ErrorContains(t, err, "saving outcome")

	var plans int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plans").Scan(&plans))
	assert.Zero(t, plans)
	var runs int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM optimization_runs").Scan(&runs))
	assert.Zero(t, runs)
}
