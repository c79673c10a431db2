package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/iwvelando/meal-budget/internal/catalog"
	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/pkg/constants"
	"github.com/iwvelando/meal-budget/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath   string
	outputFormat string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "meal-budget",
		Short:         "Budget-constrained meal planning",
		Long:          "Generate meal plans, price their shopping lists and optimize them to fit a food budget.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", constants.DefaultConfigFile, "path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.outputFormat, "output-format", "", "type of output override: pretty, csv, json")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newPlanCmd(opts),
		newDistributeCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfiguration reads the configuration file. A missing file at the
// default location falls back to defaults; an explicit path must exist.
func (o *rootOptions) loadConfiguration(cmd *cobra.Command) (*config.Configuration, error) {
	if _, err := os.Stat(o.configPath); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		conf := config.Default()
		return &conf, nil
	}
	conf, err := config.LoadConfiguration(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration at %s: %w", o.configPath, err)
	}
	return conf, nil
}

// setup loads configuration and builds the logger, reporting configuration
// warnings through it.
func (o *rootOptions) setup(cmd *cobra.Command) (*config.Configuration, *zap.Logger, error) {
	conf, err := o.loadConfiguration(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger, err := initializeLogger(conf.Logging, o.logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}
	return conf, logger, nil
}

// format resolves the output format. The CLI override takes precedence over
// the configuration.
func (o *rootOptions) format(conf *config.Configuration) (string, error) {
	outputFormat := conf.Output.Format
	if o.outputFormat != "" {
		outputFormat = o.outputFormat
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return "", err
	}
	return outputFormat, nil
}

func loadCatalog(conf *config.Configuration) (*catalog.Catalog, string, error) {
	c, err := catalog.Load(conf.Catalog.Path)
	if err != nil {
		return nil, "", err
	}
	symbol := c.Currency()
	if symbol == "" {
		symbol = constants.DefaultCurrencySymbol
	}
	return c, symbol, nil
}
