package main

import (
	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/internal/mealplan"
	"github.com/iwvelando/meal-budget/internal/planner"
	"github.com/iwvelando/meal-budget/internal/store"
	"github.com/iwvelando/meal-budget/pkg/money"
	"github.com/iwvelando/meal-budget/pkg/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type planOptions struct {
	userID        int64
	budget        float64
	calories      int
	days          int
	mealsPerDay   int
	acceptPartial bool
	save          bool
}

func newPlanCmd(root *rootOptions) *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a meal plan and fit it to the budget",
		Long: "Generate a meal plan from the calorie and schedule targets, price its shopping list " +
			"and, when a budget is set, run the tiered optimizer until the plan fits.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&opts.userID, "user", 0, "user the plan is generated for")
	flags.Float64Var(&opts.budget, "budget", 0, "budget for the whole plan in major currency units (0 disables optimization)")
	flags.IntVar(&opts.calories, "calories", 0, "daily calorie target")
	flags.IntVar(&opts.days, "days", 0, "number of days to plan")
	flags.IntVar(&opts.mealsPerDay, "meals", 0, "meals per day")
	flags.BoolVar(&opts.acceptPartial, "accept-partial", false, "persist the best plan even when it stays over budget")
	flags.BoolVar(&opts.save, "save", false, "persist the plan using the configured storage")
	return cmd
}

// request merges the configured plan defaults with the flags that were set.
func (o *planOptions) request(cmd *cobra.Command, defaults config.PlanConfig) planner.Request {
	flags := cmd.Flags()
	if flags.Changed("user") {
		defaults.UserID = o.userID
	}
	if flags.Changed("budget") {
		defaults.Budget = o.budget
	}
	if flags.Changed("calories") {
		defaults.CaloriesTarget = o.calories
	}
	if flags.Changed("days") {
		defaults.Days = o.days
	}
	if flags.Changed("meals") {
		defaults.MealsPerDay = o.mealsPerDay
	}
	if flags.Changed("accept-partial") {
		defaults.AcceptPartial = o.acceptPartial
	}

	return planner.Request{
		Request: mealplan.Request{
			UserID:         defaults.UserID,
			Budget:         money.FromMajor(defaults.Budget),
			CaloriesTarget: defaults.CaloriesTarget,
			Days:           defaults.Days,
			MealsPerDay:    defaults.MealsPerDay,
		},
		AcceptPartial: defaults.AcceptPartial,
	}
}

func runPlan(cmd *cobra.Command, root *rootOptions, opts *planOptions) error {
	conf, logger, err := root.setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	outputFormat, err := root.format(conf)
	if err != nil {
		return err
	}

	c, symbol, err := loadCatalog(conf)
	if err != nil {
		return err
	}

	var persister planner.Persister
	if opts.save || conf.Storage.Enabled {
		st, err := store.Open(cmd.Context(), logger, conf.Storage)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Warn("failed to close store", zap.String("op", "main.plan"), zap.Error(err))
			}
		}()
		persister = st
	}

	svc, err := planner.NewService(logger, conf.Optimizer, c, persister)
	if err != nil {
		return err
	}

	outcome, err := svc.Run(cmd.Context(), opts.request(cmd, conf.Plan))
	if err != nil {
		logger.Error("failed to plan meals",
			zap.String("op", "main.plan"),
			zap.Error(err),
		)
		return err
	}

	return output.Write(cmd.OutOrStdout(), outputFormat, outcome, symbol)
}
