package optimizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testPlan stands in for a real plan: its cost is carried in the payload and
// it remembers which tiers touched it.
type testPlan struct {
	cost  money.Amount
	tiers []TierID
}

type testOracle struct {
	calls  int
	failAt int // 1-based call number that fails; 0 never fails
	strict bool
}

func (o *testOracle) Price(ctx context.Context, p testPlan) (money.Amount, error) {
	if o.strict {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	o.calls++
	if o.failAt != 0 && o.calls == o.failAt {
		return 0, errors.New("pricing backend down")
	}
	return p.cost, nil
}

type testTier struct {
	id         TierID
	thresholds Thresholds
	next       func(money.Amount) money.Amount
	err        error
	onApply    func()
}

func (t testTier) ID() TierID   { return t.id }
func (t testTier) Name() string { return t.id.String() }

func (t testTier) Applies(cost, limit money.Amount) bool {
	return t.thresholds.Bucket(cost, limit) == t.id
}

func (t testTier) Apply(ctx context.Context, p testPlan) (testPlan, error) {
	if t.onApply != nil {
		t.onApply()
	}
	if err := ctx.Err(); err != nil {
		return testPlan{}, err
	}
	if t.err != nil {
		return testPlan{}, t.err
	}
	return testPlan{
		cost:  t.next(p.cost),
		tiers: append(append([]TierID(nil), p.tiers...), t.id),
	}, nil
}

func scaleBy(factor string) func(money.Amount) money.Amount {
	ratio := decimal.RequireFromString(factor)
	return func(cost money.Amount) money.Amount { return cost.Scale(ratio) }
}

func defaultThresholds(t *testing.T) Thresholds {
	t.Helper()
	thresholds, err := ThresholdsFromConfig(config.DefaultOptimizerConfig())
	require.NoError(t, err)
	return thresholds
}

// cascadeTiers reproduces the four-stage cascade 12000 -> 10200 -> 8160 ->
// 7344 -> 6977 when started from 12000 against a 7000 limit.
func cascadeTiers(t *testing.T) []Tier[testPlan] {
	th := defaultThresholds(t)
	return []Tier[testPlan]{
		testTier{id: TierBrandSubstitution, thresholds: th, next: scaleBy("0.85")},
		testTier{id: TierIngredientSubstitution, thresholds: th, next: scaleBy("0.80")},
		testTier{id: TierPlanRestructuring, thresholds: th, next: scaleBy("0.90")},
		testTier{id: TierPortionAdjustment, thresholds: th, next: scaleBy("0.95")},
	}
}

func newTestEngine(t *testing.T, oracle CostOracle[testPlan], tiers []Tier[testPlan]) *Engine[testPlan] {
	t.Helper()
	engine, err := NewEngine(zap.NewNop(), config.DefaultOptimizerConfig(), oracle, tiers...)
	require.NoError(t, err)
	return engine
}

func tierIDs(attempts []Attempt) []TierID {
	ids := make([]TierID, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.Tier)
	}
	return ids
}

func TestOptimizeWithinBudgetReturnsPlanUnchanged(t *testing.T) {
	engine := newTestEngine(t, &testOracle{}, cascadeTiers(t))
	plan := testPlan{cost: 7000}

	result, err := engine.Optimize(context.Background(), plan, 7000)
	require.NoError(t, err)

	assert.True(t, result.Converged)
	assert.Empty(t, result.Attempts)
	assert.Equal(t, 0, result.IterationsUsed)
	assert.Equal(t, StopWithinBudget, result.StopReason)
	assert.Equal(t, plan, result.FinalPlan)
	assert.Equal(t, money.Amount(7000), result.FinalCost)

	again, err := engine.Optimize(context.Background(), result.FinalPlan, 7000)
	require.NoError(t, err)
	assert.Equal(t, result.FinalPlan, again.FinalPlan)
	assert.Empty(t, again.Attempts)
}

func TestOptimizeScenarioSingleAttempt(t *testing.T) {
	engine := newTestEngine(t, &testOracle{}, cascadeTiers(t))

	result, err := engine.Optimize(context.Background(), testPlan{cost: 8500}, 8000)
	require.NoError(t, err)

	require.Len(t, result.Attempts, 1)
	assert.Contains(t, []TierID{TierIngredientSubstitution, TierPlanRestructuring}, result.Attempts[0].Tier)
	assert.True(t, result.Converged)
	assert.LessOrEqual(t, result.FinalCost, money.Amount(8000))
	assert.Equal(t, StopConverged, result.StopReason)
}

func TestOptimizeScenarioFourStageCascade(t *testing.T) {
	engine := newTestEngine(t, &testOracle{}, cascadeTiers(t))

	result, err := engine.Optimize(context.Background(), testPlan{cost: 12000}, 7000)
	require.NoError(t, err)

	assert.Equal(t, []TierID{1, 2, 3, 4}, tierIDs(result.Attempts))
	assert.True(t, result.Converged)
	assert.Equal(t, money.Amount(6977), result.FinalCost)
	assert.Equal(t, 4, result.IterationsUsed)

	expected := []struct{ before, after, savings money.Amount }{
		{12000, 10200, 1800},
		{10200, 8160, 2040},
		{8160, 7344, 816},
		{7344, 6977, 367},
	}
	for i, want := range expected {
		got := result.Attempts[i]
		assert.Equal(t, want.before, got.CostBefore, "attempt %d cost before", i)
		assert.Equal(t, want.after, got.CostAfter, "attempt %d cost after", i)
		assert.Equal(t, want.savings, got.Savings, "attempt %d savings", i)
	}
	assert.Equal(t, []TierID{1, 2, 3, 4}, result.FinalPlan.tiers)
	assert.Equal(t, money.Amount(5023), result.TotalSavings())
	assert.Equal(t, money.Amount(23), result.Headroom())
}

func TestOptimizeScenarioNonConvergentTier(t *testing.T) {
	th := defaultThresholds(t)
	tiers := cascadeTiers(t)
	tiers[3] = testTier{id: TierPortionAdjustment, thresholds: th, next: func(money.Amount) money.Amount { return 7060 }}
	engine := newTestEngine(t, &testOracle{}, tiers)

	result, err := engine.Optimize(context.Background(), testPlan{cost: 7050}, 7000)
	require.NoError(t, err)

	require.Len(t, result.Attempts, 1)
	assert.Equal(t, TierPortionAdjustment, result.Attempts[0].Tier)
	assert.Equal(t, money.Amount(-10), result.Attempts[0].Savings)
	assert.False(t, result.Converged)
	assert.Equal(t, StopNonConvergentTier, result.StopReason)
	// The worse plan is discarded; the best plan reached is returned.
	assert.Equal(t, money.Amount(7050), result.FinalCost)
	assert.Empty(t, result.FinalPlan.tiers)

	summary := result.Summary()
	require.Len(t, summary.Notes, 1)
	assert.Contains(t, summary.Notes[0], "did not reduce cost")
}

func TestOptimizeRejectsInvalidLimit(t *testing.T) {
	oracle := &testOracle{}
	engine := newTestEngine(t, oracle, cascadeTiers(t))

	for _, limit := range []money.Amount{0, -100} {
		result, err := engine.Optimize(context.Background(), testPlan{cost: 12000}, limit)
		require.ErrorIs(t, err, ErrInvalidInput)
		assert.Nil(t, result)
	}
	assert.Equal(t, 0, oracle.calls)
}

func TestOptimizeRejectsUnpriceablePlan(t *testing.T) {
	engine := newTestEngine(t, &testOracle{failAt: 1}, cascadeTiers(t))

	result, err := engine.Optimize(context.Background(), testPlan{cost: 12000}, 7000)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, result)

	engine = newTestEngine(t, &testOracle{}, cascadeTiers(t))
	result, err = engine.Optimize(context.Background(), testPlan{cost: -1}, 7000)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, result)
}

func TestOptimizeStopsAtIterationCap(t *testing.T) {
	th := defaultThresholds(t)
	var tiers []Tier[testPlan]
	for _, id := range AllTiers {
		tiers = append(tiers, testTier{id: id, thresholds: th, next: scaleBy("0.99")})
	}
	engine := newTestEngine(t, &testOracle{}, tiers)

	result, err := engine.Optimize(context.Background(), testPlan{cost: 12000}, 7000)
	require.NoError(t, err)

	assert.Len(t, result.Attempts, engine.MaxIterations())
	assert.False(t, result.Converged)
	assert.Equal(t, StopIterationCap, result.StopReason)
	// 12000 * 0.99^4 = 11527.4412 with rounding at every step.
	assert.Equal(t, money.Amount(11527), result.FinalCost)
	assert.Equal(t, result.Attempts[3].CostAfter, result.FinalCost)
	assert.Contains(t, result.Summary().Notes[0], "within 4 attempts")
}

func TestOptimizeHonoursConfiguredCap(t *testing.T) {
	th := defaultThresholds(t)
	var tiers []Tier[testPlan]
	for _, id := range AllTiers {
		tiers = append(tiers, testTier{id: id, thresholds: th, next: scaleBy("0.99")})
	}
	cfg := config.DefaultOptimizerConfig()
	cfg.MaxIterations = 7
	engine, err := NewEngine[testPlan](zap.NewNop(), cfg, &testOracle{}, tiers...)
	require.NoError(t, err)

	result, err := engine.Optimize(context.Background(), testPlan{cost: 12000}, 7000)
	require.NoError(t, err)
	assert.Len(t, result.Attempts, 7)
}

func TestOptimizeRepeatsAndSkipsTiersByBucket(t *testing.T) {
	th := defaultThresholds(t)

	t.Run("repeat portion adjustment while marginal", func(t *testing.T) {
		tiers := cascadeTiers(t)
		tiers[3] = testTier{id: TierPortionAdjustment, thresholds: th, next: scaleBy("0.98")}
		engine := newTestEngine(t, &testOracle{}, tiers)

		result, err := engine.Optimize(context.Background(), testPlan{cost: 7300}, 7000)
		require.NoError(t, err)
		// 7300 -> 7154 -> 7011 -> 6871
		assert.Equal(t, []TierID{4, 4, 4}, tierIDs(result.Attempts))
		assert.True(t, result.Converged)
		assert.Equal(t, money.Amount(6871), result.FinalCost)
	})

	t.Run("overshoot skips into a lower bucket", func(t *testing.T) {
		tiers := cascadeTiers(t)
		tiers[0] = testTier{id: TierBrandSubstitution, thresholds: th, next: scaleBy("0.60")}
		engine := newTestEngine(t, &testOracle{}, tiers)

		result, err := engine.Optimize(context.Background(), testPlan{cost: 12000}, 7000)
		require.NoError(t, err)
		// 12000 -> 7200 (marginal) -> 6840
		assert.Equal(t, []TierID{1, 4}, tierIDs(result.Attempts))
		assert.True(t, result.Converged)
	})
}

func TestOptimizeCollaboratorFailureKeepsPartialHistory(t *testing.T) {
	th := defaultThresholds(t)

	t.Run("tier apply fails", func(t *testing.T) {
		tiers := cascadeTiers(t)
		tiers[1] = testTier{id: TierIngredientSubstitution, thresholds: th, err: errors.New("substitution service offline")}
		engine := newTestEngine(t, &testOracle{}, tiers)

		result, err := engine.Optimize(context.Background(), testPlan{cost: 12000}, 7000)
		require.ErrorIs(t, err, ErrCollaboratorUnavailable)
		require.NotNil(t, result)
		assert.Len(t, result.Attempts, 1)
		assert.Equal(t, money.Amount(10200), result.FinalCost)
		assert.False(t, result.Converged)
		assert.Equal(t, StopCollaboratorFailure, result.StopReason)
	})

	t.Run("oracle fails mid run", func(t *testing.T) {
		engine := newTestEngine(t, &testOracle{failAt: 3}, cascadeTiers(t))

		result, err := engine.Optimize(context.Background(), testPlan{cost: 12000}, 7000)
		require.ErrorIs(t, err, ErrCollaboratorUnavailable)
		require.NotNil(t, result)
		assert.Len(t, result.Attempts, 1)
		assert.Equal(t, money.Amount(10200), result.FinalCost)
	})
}

func TestOptimizeCancellationBetweenIterations(t *testing.T) {
	t.Run("cancelled before first attempt", func(t *testing.T) {
		engine := newTestEngine(t, &testOracle{}, cascadeTiers(t))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := engine.Optimize(ctx, testPlan{cost: 12000}, 7000)
		require.NoError(t, err)
		assert.Empty(t, result.Attempts)
		assert.False(t, result.Converged)
		assert.Equal(t, StopCancelled, result.StopReason)
		assert.Equal(t, money.Amount(12000), result.FinalCost)
	})

	t.Run("cancelled during a tier application", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		th := defaultThresholds(t)
		tiers := cascadeTiers(t)
		tiers[0] = testTier{id: TierBrandSubstitution, thresholds: th, next: scaleBy("0.85"), onApply: cancel}
		engine := newTestEngine(t, &testOracle{}, tiers)

		result, err := engine.Optimize(ctx, testPlan{cost: 12000}, 7000)
		require.NoError(t, err)
		// The running tier completes; the loop stops before the next one.
		require.Len(t, result.Attempts, 1)
		assert.Equal(t, money.Amount(10200), result.FinalCost)
		assert.Equal(t, StopCancelled, result.StopReason)
	})

	t.Run("deadline expires while a context aware tier and oracle run", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		th := defaultThresholds(t)
		tiers := cascadeTiers(t)
		tiers[1] = testTier{id: TierIngredientSubstitution, thresholds: th, next: scaleBy("0.80"), onApply: cancel}
		oracle := &testOracle{strict: true}
		engine := newTestEngine(t, oracle, tiers)

		result, err := engine.Optimize(ctx, testPlan{cost: 12000}, 7000)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, []TierID{1, 2}, tierIDs(result.Attempts))
		assert.Equal(t, money.Amount(8160), result.FinalCost)
		assert.Equal(t, []TierID{1, 2}, result.FinalPlan.tiers)
		assert.False(t, result.Converged)
		assert.Equal(t, StopCancelled, result.StopReason)
		assert.Equal(t, 3, oracle.calls)
	})

	t.Run("cancelled before the initial pricing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		engine := newTestEngine(t, &testOracle{strict: true}, cascadeTiers(t))

		result, err := engine.Optimize(ctx, testPlan{cost: 12000}, 7000)
		require.NoError(t, err)
		assert.Empty(t, result.Attempts)
		assert.Equal(t, money.Amount(12000), result.InitialCost)
		assert.Equal(t, StopCancelled, result.StopReason)
	})
}

func TestNewEngineValidation(t *testing.T) {
	th := defaultThresholds(t)
	tier := testTier{id: TierPortionAdjustment, thresholds: th, next: scaleBy("0.9")}

	_, err := NewEngine[testPlan](zap.NewNop(), config.DefaultOptimizerConfig(), nil, tier)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewEngine[testPlan](zap.NewNop(), config.DefaultOptimizerConfig(), &testOracle{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewEngine[testPlan](zap.NewNop(), config.DefaultOptimizerConfig(), &testOracle{}, tier, tier)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewEngine[testPlan](zap.NewNop(), config.DefaultOptimizerConfig(), &testOracle{}, testTier{id: 9})
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad := config.DefaultOptimizerConfig()
	bad.Thresholds.OverRatio = 2
	_, err = NewEngine[testPlan](zap.NewNop(), bad, &testOracle{}, tier)
	assert.Error(t, err)

	engine, err := NewEngine[testPlan](nil, config.OptimizerConfig{}, &testOracle{}, tier)
	require.NoError(t, err)
	assert.Equal(t, 4, engine.MaxIterations())
}

func TestSelectWithoutApplicableTier(t *testing.T) {
	th := defaultThresholds(t)
	engine := newTestEngine(t, &testOracle{}, []Tier[testPlan]{
		testTier{id: TierBrandSubstitution, thresholds: th, next: scaleBy("0.5")},
	})

	result, err := engine.Optimize(context.Background(), testPlan{cost: 7100}, 7000)
	require.ErrorIs(t, err, ErrNoApplicableTier)
	assert.NotErrorIs(t, err, ErrCollaboratorUnavailable)
	require.NotNil(t, result)
	assert.Empty(t, result.Attempts)
	assert.Equal(t, StopNoApplicableTier, result.StopReason)
	assert.Contains(t, result.Summary().Notes[0], "no strategy tier")
}
