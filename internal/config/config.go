// Package config defines the data structures related to configuration and
// includes functions for loading, normalizing and validating it.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/meal-budget/pkg/constants"
	"github.com/iwvelando/meal-budget/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for meal-budget.
type Configuration struct {
	Logging   LoggingConfig   `yaml:"logging,omitempty" mapstructure:"logging"`
	Output    OutputConfig    `yaml:"output,omitempty" mapstructure:"output"`
	Optimizer OptimizerConfig `yaml:"optimizer,omitempty" mapstructure:"optimizer"`
	Storage   StorageConfig   `yaml:"storage,omitempty" mapstructure:"storage"`
	Catalog   CatalogConfig   `yaml:"catalog,omitempty" mapstructure:"catalog"`
	Household HouseholdConfig `yaml:"household,omitempty" mapstructure:"household"`
	Plan      PlanConfig      `yaml:"plan,omitempty" mapstructure:"plan"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv, json
}

// StorageConfig selects where plans, lists and optimization runs are kept.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled,omitempty" mapstructure:"enabled"`
	Driver  string `yaml:"driver,omitempty" mapstructure:"driver"` // sqlite, postgres
	DSN     string `yaml:"dsn,omitempty" mapstructure:"dsn"`
}

// CatalogConfig points at a product catalog. An empty path uses the
// embedded catalog.
type CatalogConfig struct {
	Path string `yaml:"path,omitempty" mapstructure:"path"`
}

// PlanConfig holds the default plan request.
type PlanConfig struct {
	UserID         int64   `yaml:"userId,omitempty" mapstructure:"userId"`
	Budget         float64 `yaml:"budget,omitempty" mapstructure:"budget"` // major units
	CaloriesTarget int     `yaml:"caloriesTarget,omitempty" mapstructure:"caloriesTarget"`
	Days           int     `yaml:"days,omitempty" mapstructure:"days"`
	MealsPerDay    int     `yaml:"mealsPerDay,omitempty" mapstructure:"mealsPerDay"`
	AcceptPartial  bool    `yaml:"acceptPartial,omitempty" mapstructure:"acceptPartial"`
}

const (
	defaultCaloriesTarget = 2000
	defaultDays           = 7
	defaultMealsPerDay    = 3
)

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Environment variables prefixed with MEALBUDGET_
// override file values (e.g. MEALBUDGET_PLAN_BUDGET).
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("optimizer.thresholds.farRatio", d.Optimizer.Thresholds.FarRatio)
	v.SetDefault("optimizer.thresholds.overRatio", d.Optimizer.Thresholds.OverRatio)
	v.SetDefault("optimizer.thresholds.marginalRatio", d.Optimizer.Thresholds.MarginalRatio)
	v.SetDefault("optimizer.maxIterations", d.Optimizer.MaxIterations)
	v.SetDefault("optimizer.timeout", d.Optimizer.Timeout)
	v.SetDefault("optimizer.portionFactor", d.Optimizer.PortionFactor)
	v.SetDefault("optimizer.minServings", d.Optimizer.MinServings)
	v.SetDefault("optimizer.restructureMeals", d.Optimizer.RestructureMeals)
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dsn", d.Storage.DSN)
	v.SetDefault("catalog.path", "")
	v.SetDefault("household.adultWeight", d.Household.AdultWeight)
	v.SetDefault("household.childWeight", d.Household.ChildWeight)
	v.SetDefault("plan.userId", 0)
	v.SetDefault("plan.budget", 0)
	v.SetDefault("plan.caloriesTarget", d.Plan.CaloriesTarget)
	v.SetDefault("plan.days", d.Plan.Days)
	v.SetDefault("plan.mealsPerDay", d.Plan.MealsPerDay)
	v.SetDefault("plan.acceptPartial", false)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// Default returns a normalized configuration with every default applied.
func Default() Configuration {
	var c Configuration
	c.Normalize()
	return c
}

// Normalize applies defaults to unset fields.
func (c *Configuration) Normalize() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "" {
		c.Output.Format = constants.OutputFormatPretty
	}
	c.Optimizer.Normalize()
	c.Storage.Normalize()
	c.Household.Normalize()
	c.Plan.Normalize()
}

// Validate normalizes the configuration and returns the first error found.
func (c *Configuration) Validate() error {
	c.Normalize()

	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		return err
	}
	if _, err := validation.ParseLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if err := validation.ValidateLogFormat(c.Logging.Format); err != nil {
		return err
	}
	if err := c.Optimizer.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Household.Validate(); err != nil {
		return err
	}
	return c.Plan.Validate()
}

// ValidateConfiguration returns non-fatal warnings about the configuration.
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string
	if c.Plan.Budget == 0 {
		warnings = append(warnings, "plan.budget is not set; plans will be generated without optimization")
	}
	if c.Plan.AcceptPartial && !c.Storage.Enabled {
		warnings = append(warnings, "plan.acceptPartial has no effect while storage is disabled")
	}
	if c.Optimizer.Timeout == 0 {
		warnings = append(warnings, "optimizer.timeout is zero; optimization runs are unbounded")
	}
	return warnings
}

// Normalize applies storage defaults.
func (s *StorageConfig) Normalize() {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	if s.Driver == "" {
		s.Driver = constants.StorageDriverSQLite
	}
	if s.DSN == "" && s.Driver == constants.StorageDriverSQLite {
		s.DSN = constants.DefaultStorageDSN
	}
}

// Validate returns an error when the storage configuration is unusable.
func (s *StorageConfig) Validate() error {
	switch s.Driver {
	case constants.StorageDriverSQLite, constants.StorageDriverPostgres:
	default:
		return fmt.Errorf("unsupported storage driver %q", s.Driver)
	}
	if s.Enabled && s.DSN == "" {
		return fmt.Errorf("storage dsn is required for driver %s", s.Driver)
	}
	return nil
}

// Normalize applies plan request defaults.
func (p *PlanConfig) Normalize() {
	if p.CaloriesTarget == 0 {
		p.CaloriesTarget = defaultCaloriesTarget
	}
	if p.Days == 0 {
		p.Days = defaultDays
	}
	if p.MealsPerDay == 0 {
		p.MealsPerDay = defaultMealsPerDay
	}
}

// Validate returns an error when the default plan request is unusable.
func (p *PlanConfig) Validate() error {
	if p.Budget < 0 {
		return fmt.Errorf("plan budget cannot be negative")
	}
	if p.CaloriesTarget < 0 {
		return fmt.Errorf("plan calories target cannot be negative")
	}
	if p.Days < 0 || p.Days > constants.MaxPlanDays {
		return fmt.Errorf("plan days must be between 1 and %d", constants.MaxPlanDays)
	}
	if p.MealsPerDay < 0 || p.MealsPerDay > constants.MaxMealsPerDay {
		return fmt.Errorf("plan meals per day must be between 1 and %d", constants.MaxMealsPerDay)
	}
	return nil
}
