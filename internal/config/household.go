package config

import "fmt"

const (
	defaultAdultWeight = 7
	defaultChildWeight = 3
)

// HouseholdConfig holds the per-role weights used to split a family budget.
type HouseholdConfig struct {
	AdultWeight float64 `yaml:"adultWeight,omitempty" mapstructure:"adultWeight"`
	ChildWeight float64 `yaml:"childWeight,omitempty" mapstructure:"childWeight"`
}

// Normalize applies default weights.
func (h *HouseholdConfig) Normalize() {
	if h.AdultWeight == 0 {
		h.AdultWeight = defaultAdultWeight
	}
	if h.ChildWeight == 0 {
		h.ChildWeight = defaultChildWeight
	}
}

// Validate returns an error when a weight is not positive.
func (h *HouseholdConfig) Validate() error {
	h.Normalize()
	if h.AdultWeight <= 0 || h.ChildWeight <= 0 {
		return fmt.Errorf("household weights must be positive, got adult %.2f child %.2f", h.AdultWeight, h.ChildWeight)
	}
	return nil
}
