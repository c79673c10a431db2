// Package optimizer implements the budget optimization loop: it re-prices a
// plan after each strategy application, picks the next strategy from the size
// of the overspend, and stops on convergence, lack of progress or the
// iteration cap.
package optimizer

import (
	"context"
	"fmt"

	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/pkg/money"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/iwvelando/meal-budget/internal/optimizer"

// Engine runs the optimization loop for plans of type P. It holds no
// per-request state; one Engine may serve concurrent Optimize calls when its
// oracle and tiers are safe for concurrent use.
type Engine[P any] struct {
	logger         *zap.Logger
	oracle         CostOracle[P]
	selector       *Selector[P]
	maxIterations  int
	tracer         trace.Tracer
	runCounter     metric.Int64Counter
	attemptCounter metric.Int64Counter
}

// NewEngine constructs an Engine from the optimizer configuration, a cost
// oracle and the strategy tiers to choose from.
func NewEngine[P any](logger *zap.Logger, cfg config.OptimizerConfig, oracle CostOracle[P], tiers ...Tier[P]) (*Engine[P], error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if oracle == nil {
		return nil, fmt.Errorf("%w: cost oracle cannot be nil", ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	selector, err := NewSelector(tiers...)
	if err != nil {
		return nil, err
	}

	meter := otel.Meter(instrumentationName)
	runCounter, err := meter.Int64Counter("optimizer_runs_total",
		metric.WithDescription("Total number of optimization runs"))
	if err != nil {
		logger.Warn("optimizer metrics disabled", zap.String("op", "optimizer.NewEngine"), zap.String("instrument", "optimizer_runs_total"), zap.Error(err))
		runCounter = noop.Int64Counter{}
	}
	attemptCounter, err := meter.Int64Counter("optimizer_attempts_total",
		metric.WithDescription("Total number of strategy tier applications"))
	if err != nil {
		logger.Warn("optimizer metrics disabled", zap.String("op", "optimizer.NewEngine"), zap.String("instrument", "optimizer_attempts_total"), zap.Error(err))
		attemptCounter = noop.Int64Counter{}
	}

	return &Engine[P]{
		logger:         logger,
		oracle:         oracle,
		selector:       selector,
		maxIterations:  cfg.MaxIterations,
		tracer:         otel.Tracer(instrumentationName),
		runCounter:     runCounter,
		attemptCounter: attemptCounter,
	}, nil
}

// MaxIterations returns the attempt cap.
func (e *Engine[P]) MaxIterations() int {
	return e.maxIterations
}

// Optimize drives plan toward limit. Non-convergence is reported in the
// result, not as an error. Errors are returned only for invalid input (nil
// result) and collaborator failures (partial result).
//
// Cancellation of ctx is observed between iterations only. Tiers and the
// oracle run under a context that keeps ctx's values but not its deadline,
// so a running tier always completes and the best result reached so far is
// returned with StopCancelled.
func (e *Engine[P]) Optimize(ctx context.Context, plan P, limit money.Amount) (*Result[P], error) {
	ctx, span := e.tracer.Start(ctx, "optimizer.Optimize",
		trace.WithAttributes(attribute.Int64("budget.limit", int64(limit))))
	defer span.End()

	if limit <= 0 {
		return nil, e.reject(span, fmt.Errorf("%w: budget limit must be positive, got %s", ErrInvalidInput, limit))
	}

	work := context.WithoutCancel(ctx)

	cost, err := e.oracle.Price(work, plan)
	if err != nil {
		return nil, e.reject(span, fmt.Errorf("%w: initial plan cannot be priced: %w", ErrInvalidInput, err))
	}
	if cost < 0 {
		return nil, e.reject(span, fmt.Errorf("%w: initial plan priced at negative cost %s", ErrInvalidInput, cost))
	}

	e.runCounter.Add(ctx, 1)
	result := &Result[P]{
		FinalPlan:   plan,
		InitialCost: cost,
		FinalCost:   cost,
		Limit:       limit,
		Attempts:    []Attempt{},
	}

	if cost <= limit {
		result.Converged = true
		result.StopReason = StopWithinBudget
		e.finish(span, result)
		return result, nil
	}

	current := plan
	for cost > limit {
		if ctx.Err() != nil {
			result.StopReason = StopCancelled
			break
		}

		tier, err := e.selector.Select(cost, limit)
		if err != nil {
			return e.abort(span, result, StopNoApplicableTier, err)
		}

		next, err := tier.Apply(work, current)
		if err != nil {
			return e.abort(span, result, StopCollaboratorFailure, fmt.Errorf("%w: %s apply: %w", ErrCollaboratorUnavailable, tier.Name(), err))
		}
		nextCost, err := e.oracle.Price(work, next)
		if err != nil {
			return e.abort(span, result, StopCollaboratorFailure, fmt.Errorf("%w: pricing after %s: %w", ErrCollaboratorUnavailable, tier.Name(), err))
		}
		if nextCost < 0 {
			return e.abort(span, result, StopCollaboratorFailure, fmt.Errorf("%w: %s produced negative cost %s", ErrCollaboratorUnavailable, tier.Name(), nextCost))
		}

		attempt := newAttempt(tier.ID(), tier.Name(), cost, nextCost)
		result.Attempts = append(result.Attempts, attempt)
		result.IterationsUsed = len(result.Attempts)
		e.recordAttempt(ctx, span, attempt)

		// A tier that cannot lower the cost will not do better on a repeat.
		if !attempt.Progress() {
			result.StopReason = StopNonConvergentTier
			break
		}

		current, cost = next, nextCost
		result.FinalPlan, result.FinalCost = current, cost

		if len(result.Attempts) >= e.maxIterations {
			break
		}
	}

	result.Converged = cost <= limit
	if result.StopReason == "" {
		if result.Converged {
			result.StopReason = StopConverged
		} else {
			result.StopReason = StopIterationCap
		}
	}

	e.finish(span, result)
	return result, nil
}

func (e *Engine[P]) recordAttempt(ctx context.Context, span trace.Span, a Attempt) {
	e.attemptCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", a.Tier.String())))
	span.AddEvent("attempt", trace.WithAttributes(
		attribute.Int("tier", int(a.Tier)),
		attribute.Int64("cost.before", int64(a.CostBefore)),
		attribute.Int64("cost.after", int64(a.CostAfter)),
		attribute.Int64("savings", int64(a.Savings)),
	))
	e.logger.Debug("optimizer applied strategy tier",
		zap.String("op", "optimizer.Optimize"),
		zap.Int("tier", int(a.Tier)),
		zap.String("tierName", a.TierName),
		zap.Int64("costBefore", int64(a.CostBefore)),
		zap.Int64("costAfter", int64(a.CostAfter)),
		zap.Int64("savings", int64(a.Savings)),
	)
}

func (e *Engine[P]) finish(span trace.Span, r *Result[P]) {
	span.SetAttributes(
		attribute.Bool("converged", r.Converged),
		attribute.Int("iterations", r.IterationsUsed),
		attribute.String("stop.reason", string(r.StopReason)),
		attribute.Int64("cost.final", int64(r.FinalCost)),
	)
	e.logger.Info("optimizer finished",
		zap.String("op", "optimizer.Optimize"),
		zap.Int64("limit", int64(r.Limit)),
		zap.Int64("initialCost", int64(r.InitialCost)),
		zap.Int64("finalCost", int64(r.FinalCost)),
		zap.Int("iterations", r.IterationsUsed),
		zap.Bool("converged", r.Converged),
		zap.String("stopReason", string(r.StopReason)),
	)
}

func (e *Engine[P]) reject(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.logger.Warn("optimizer rejected input",
		zap.String("op", "optimizer.Optimize"),
		zap.Error(err),
	)
	return err
}

func (e *Engine[P]) abort(span trace.Span, r *Result[P], reason StopReason, err error) (*Result[P], error) {
	r.Converged = false
	r.StopReason = reason
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.logger.Error("optimizer aborted",
		zap.String("op", "optimizer.Optimize"),
		zap.String("stopReason", string(reason)),
		zap.Int("iterations", r.IterationsUsed),
		zap.Int64("bestCost", int64(r.FinalCost)),
		zap.Error(err),
	)
	return r, err
}
