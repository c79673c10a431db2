package main

import (
	"fmt"

	"github.com/iwvelando/meal-budget/internal/household"
	"github.com/iwvelando/meal-budget/pkg/money"
	"github.com/iwvelando/meal-budget/pkg/output"
	"github.com/spf13/cobra"
)

func newDistributeCmd(root *rootOptions) *cobra.Command {
	var (
		total    float64
		adults   int
		children int
	)

	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Split a household food budget between adults and children",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if adults < 0 || children < 0 {
				return fmt.Errorf("member counts cannot be negative")
			}

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
			_, symbol, err := loadCatalog(conf)
			if err != nil {
				return err
			}

			distributor, err := household.NewDistributor(logger, conf.Household)
			if err != nil {
				return err
			}
			d, err := distributor.Distribute(members(adults, children), money.FromMajor(total))
			if err != nil {
				return err
			}
			return output.WriteDistribution(cmd.OutOrStdout(), outputFormat, d, symbol)
		},
	}

	cmd.Flags().Float64Var(&total, "total", 0, "total budget in major currency units")
	cmd.Flags().IntVar(&adults, "adults", 2, "number of adults")
	cmd.Flags().IntVar(&children, "children", 0, "number of children")
	return cmd
}

// members numbers adults first, starting at 1.
func members(adults, children int) []household.Member {
	out := make([]household.Member, 0, adults+children)
	for i := 0; i < adults; i++ {
		out = append(out, household.Member{ID: int64(len(out) + 1), Role: household.RoleAdult})
	}
	for i := 0; i < children; i++ {
		out = append(out, household.Member{ID: int64(len(out) + 1), Role: household.RoleChild})
	}
	return out
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
