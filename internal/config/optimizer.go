package config

import (
	"fmt"
	"time"
)

const (
	defaultFarRatio         = 1.5
	defaultOverRatio        = 1.2
	defaultMarginalRatio    = 1.05
	defaultMaxIterations    = 4
	defaultTimeout          = 30 * time.Second
	defaultPortionFactor    = 0.95
	defaultMinServings      = 0.5
	defaultRestructureMeals = 1
)

// ThresholdsConfig holds the overspend ratios that bucket a cost into a
// strategy tier. Each ratio is relative to the budget limit.
type ThresholdsConfig struct {
	FarRatio      float64 `yaml:"farRatio,omitempty" mapstructure:"farRatio"`           // above: tier 1
	OverRatio     float64 `yaml:"overRatio,omitempty" mapstructure:"overRatio"`         // above: tier 2
	MarginalRatio float64 `yaml:"marginalRatio,omitempty" mapstructure:"marginalRatio"` // above: tier 3, else tier 4
}

// OptimizerConfig tunes the budget optimization loop and its strategies.
type OptimizerConfig struct {
	Thresholds       ThresholdsConfig `yaml:"thresholds,omitempty" mapstructure:"thresholds"`
	MaxIterations    int              `yaml:"maxIterations,omitempty" mapstructure:"maxIterations"`
	Timeout          time.Duration    `yaml:"timeout,omitempty" mapstructure:"timeout"`
	PortionFactor    float64          `yaml:"portionFactor,omitempty" mapstructure:"portionFactor"`
	MinServings      float64          `yaml:"minServings,omitempty" mapstructure:"minServings"`
	RestructureMeals int              `yaml:"restructureMeals,omitempty" mapstructure:"restructureMeals"`
}

// DefaultOptimizerConfig returns a normalized configuration.
func DefaultOptimizerConfig() OptimizerConfig {
	var o OptimizerConfig
	o.Normalize()
	return o
}

// Normalize ensures defaults are applied before validation.
func (o *OptimizerConfig) Normalize() {
	if o == nil {
		return
	}
	if o.Thresholds.FarRatio == 0 {
		o.Thresholds.FarRatio = defaultFarRatio
	}
	if o.Thresholds.OverRatio == 0 {
		o.Thresholds.OverRatio = defaultOverRatio
	}
	if o.Thresholds.MarginalRatio == 0 {
		o.Thresholds.MarginalRatio = defaultMarginalRatio
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = defaultMaxIterations
	}
	if o.Timeout == 0 {
		o.Timeout = defaultTimeout
	}
	if o.PortionFactor == 0 {
		o.PortionFactor = defaultPortionFactor
	}
	if o.MinServings == 0 {
		o.MinServings = defaultMinServings
	}
	if o.RestructureMeals == 0 {
		o.RestructureMeals = defaultRestructureMeals
	}
}

// Validate returns an error when the optimizer configuration is unusable.
func (o *OptimizerConfig) Validate() error {
	if o == nil {
		return fmt.Errorf("optimizer configuration cannot be nil")
	}

	o.Normalize()

	t := o.Thresholds
	if t.MarginalRatio < 1 {
		return fmt.Errorf("optimizer marginal ratio %.4f must be at least 1", t.MarginalRatio)
	}
	if t.OverRatio <= t.MarginalRatio {
		return fmt.Errorf("optimizer over ratio %.4f must be greater than marginal ratio %.4f", t.OverRatio, t.MarginalRatio)
	}
	if t.FarRatio <= t.OverRatio {
		return fmt.Errorf("optimizer far ratio %.4f must be greater than over ratio %.4f", t.FarRatio, t.OverRatio)
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("optimizer max iterations must be at least 1, got %d", o.MaxIterations)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("optimizer timeout cannot be negative")
	}
	if o.PortionFactor <= 0 || o.PortionFactor >= 1 {
		return fmt.Errorf("optimizer portion factor %.4f must be between 0 and 1", o.PortionFactor)
	}
	if o.MinServings <= 0 {
		return fmt.Errorf("optimizer min servings must be positive")
	}
	if o.RestructureMeals < 1 {
		return fmt.Errorf("optimizer restructure meals must be at least 1, got %d", o.RestructureMeals)
	}
	return nil
}
