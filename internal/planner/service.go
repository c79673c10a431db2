// Package planner runs the end-to-end workflow: generate a plan, price it,
// optimize it against the budget and persist the outcome.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/meal-budget/internal/catalog"
	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/internal/mealplan"
	"github.com/iwvelando/meal-budget/internal/optimizer"
	"github.com/iwvelando/meal-budget/internal/shopping"
	"github.com/iwvelando/meal-budget/internal/strategy"
	"github.com/iwvelando/meal-budget/pkg/optimization"
	"go.uber.org/zap"
)

// ErrInvalidRequest marks a request that cannot produce a plan.
var ErrInvalidRequest = errors.New("invalid plan request")

// Persister stores the outcome of a run as one transactional step: the plan,
// its list and the optimization run (when summary is not nil) are written
// together or not at all. *store.Store satisfies it.
type Persister interface {
	SaveOutcome(ctx context.Context, plan *mealplan.Plan, list *shopping.List, summary *optimization.Summary) (planID, listID, runID string, err error)
}

// Request is a plan request. A zero Budget disables optimization.
type Request struct {
	mealplan.Request
	AcceptPartial bool `json:"acceptPartial"`
}

// Outcome is the result of Run.
type Outcome struct {
	Plan         *mealplan.Plan        `json:"plan"`
	ShoppingList *shopping.List        `json:"shoppingList"`
	Optimization *optimization.Summary `json:"optimization,omitempty"`
	WithinBudget bool                  `json:"withinBudget"`
	Persisted    bool                  `json:"persisted"`
	PlanID       string                `json:"planId,omitempty"`
	ListID       string                `json:"listId,omitempty"`
	RunID        string                `json:"runId,omitempty"`
}

// Service wires the generator, the shopping list pricer and the optimizer.
type Service struct {
	logger    *zap.Logger
	plans     *mealplan.Generator
	lists     *shopping.Generator
	engine    *optimizer.Engine[*mealplan.Plan]
	persister Persister
	timeout   time.Duration
}

// NewService builds a Service over c. persister may be nil, in which case
// nothing is stored.
func NewService(logger *zap.Logger, cfg config.OptimizerConfig, c *catalog.Catalog, persister Persister) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lists := shopping.NewGenerator(logger, c)
	tiers, err := strategy.Tiers(logger, c, cfg)
	if err != nil {
		return nil, err
	}
	engine, err := optimizer.NewEngine[*mealplan.Plan](logger, cfg, lists, tiers...)
	if err != nil {
		return nil, err
	}

	return &Service{
		logger:    logger,
		plans:     mealplan.NewGenerator(logger, c),
		lists:     lists,
		engine:    engine,
		persister: persister,
		timeout:   cfg.Timeout,
	}, nil
}

// Run generates, optimizes and persists a plan. The plan is persisted when
// it fits the budget, or when AcceptPartial is set and it does not.
func (s *Service) Run(ctx context.Context, req Request) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan, err := s.plans.Generate(req.Request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	list, err := s.lists.Generate(plan)
	if err != nil {
		return nil, fmt.Errorf("pricing plan: %w", err)
	}

	outcome := &Outcome{Plan: plan, ShoppingList: list, WithinBudget: true}
	if req.Budget > 0 {
		if err := s.optimize(ctx, req, outcome); err != nil {
			return nil, err
		}
	}

	if s.persister != nil && (outcome.WithinBudget || req.AcceptPartial) {
		if err := s.persist(ctx, outcome); err != nil {
			return nil, err
		}
	}

	s.logger.Info("plan request completed",
		zap.String("op", "planner.Run"),
		zap.String("planID", outcome.Plan.ID),
		zap.Int64("totalCost", int64(outcome.ShoppingList.TotalCost)),
		zap.Int64("budget", int64(req.Budget)),
		zap.Bool("withinBudget", outcome.WithinBudget),
		zap.Bool("persisted", outcome.Persisted),
	)
	return outcome, nil
}

func (s *Service) optimize(ctx context.Context, req Request, outcome *Outcome) error {
	octx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		octx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.engine.Optimize(octx, outcome.Plan, req.Budget)
	if errors.Is(err, optimizer.ErrInvalidInput) {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err != nil {
		return fmt.Errorf("optimizing plan: %w", err)
	}

	summary := result.Summary()
	outcome.Optimization = &summary
	outcome.WithinBudget = result.Converged
	if len(result.Attempts) == 0 {
		return nil
	}

	list, err := s.lists.Generate(result.FinalPlan)
	if err != nil {
		return fmt.Errorf("pricing optimized plan: %w", err)
	}
	outcome.Plan = result.FinalPlan
	outcome.ShoppingList = list
	return nil
}

func (s *Service) persist(ctx context.Context, outcome *Outcome) error {
	planID, listID, runID, err := s.persister.SaveOutcome(ctx, outcome.Plan, outcome.ShoppingList, outcome.Optimization)
	if err != nil {
		return fmt.Errorf("saving outcome: %w", err)
	}
	outcome.PlanID, outcome.ListID, outcome.RunID = planID, listID, runID
	if outcome.Optimization != nil {
		outcome.Optimization.RunID = runID
	}
	outcome.Persisted = true
	return nil
}
