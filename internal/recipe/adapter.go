// Package recipe adapts recipes to what is already in the pantry, splitting
// every ingredient into what can be used from stock and what must be bought.
package recipe

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source tells where an adapted ingredient line comes from.
type Source string

const (
	SourcePantry Source = "pantry"
	SourceBuy    Source = "buy"
)

// amountPlaces bounds the precision of split amounts.
const amountPlaces = 3

// Ingredient is one line of a recipe to adapt.
type Ingredient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Recipe is the input to Adapt.
type Recipe struct {
	Name        string       `json:"name"`
	Ingredients []Ingredient `json:"ingredients"`
}

// Stock is the amount of one ingredient on hand.
type Stock struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Pantry maps ingredient names to stock.
type Pantry map[string]Stock

// Line is one adapted ingredient line.
type Line struct {
	Name          string  `json:"name"`
	Amount        float64 `json:"amount"`
	Unit          string  `json:"unit"`
	Source        Source  `json:"source"`
	SubstituteFor string  `json:"substituteFor,omitempty"`
}

// Adapted is a recipe rewritten against a pantry.
type Adapted struct {
	Name        string `json:"name"`
	Original    string `json:"original"`
	Substituted bool   `json:"substituted"`
	Ingredients []Line `json:"ingredients"`
}

// BuyList returns the lines that must be purchased.
func (a *Adapted) BuyList() []Line {
	var out []Line
	for _, line := range a.Ingredients {
		if line.Source == SourceBuy {
			out = append(out, line)
		}
	}
	return out
}

// SubstituteSource supplies substitute ingredients; *catalog.Catalog
// satisfies it.
type SubstituteSource interface {
	Substitutes(ingredient string) []string
}

// Adapter rewrites recipes against pantries.
type Adapter struct {
	logger      *zap.Logger
	substitutes SubstituteSource
}

// NewAdapter constructs an Adapter. substitutes may be nil.
func NewAdapter(logger *zap.Logger, substitutes SubstituteSource) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{logger: logger, substitutes: substitutes}
}

type stock struct {
	amount decimal.Decimal
	unit   string
}

// Adapt splits every ingredient of r into pantry and buy lines. Stock drawn
// for one line is not available to later lines of the same recipe. An
// ingredient missing from the pantry is replaced by a substitute only when
// the substitute is on hand in the full amount.
func (a *Adapter) Adapt(r Recipe, pantry Pantry) (*Adapted, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, fmt.Errorf("recipe name cannot be empty")
	}

	available := make(map[string]*stock, len(pantry))
	for name, s := range pantry {
		if s.Amount < 0 {
			return nil, fmt.Errorf("pantry amount for %q cannot be negative", name)
		}
		available[normalize(name)] = &stock{amount: decimal.NewFromFloat(s.Amount), unit: s.Unit}
	}

	out := &Adapted{Name: r.Name, Original: r.Name}
	for _, ing := range r.Ingredients {
		if ing.Amount <= 0 {
			return nil, fmt.Errorf("ingredient %q of %q must have a positive amount", ing.Name, r.Name)
		}
		need := decimal.NewFromFloat(ing.Amount)

		have := decimal.Zero
		if s, ok := available[normalize(ing.Name)]; ok && s.unit == ing.Unit {
			have = decimal.Min(s.amount, need)
			s.amount = s.amount.Sub(have)
		}

		if have.IsPositive() {
			out.Ingredients = append(out.Ingredients, line(ing.Name, have, ing.Unit, SourcePantry, ""))
			if remainder := need.Sub(have); remainder.IsPositive() {
				out.Ingredients = append(out.Ingredients, line(ing.Name, remainder, ing.Unit, SourceBuy, ""))
			}
			continue
		}

		if sub, ok := a.substituteOnHand(ing, need, available); ok {
			out.Ingredients = append(out.Ingredients, line(sub, need, ing.Unit, SourcePantry, ing.Name))
			out.Substituted = true
			continue
		}

		out.Ingredients = append(out.Ingredients, line(ing.Name, need, ing.Unit, SourceBuy, ""))
	}

	if out.Substituted {
		out.Name = r.Name + " (adapted)"
	}

	a.logger.Debug("adapted recipe",
		zap.String("op", "recipe.Adapt"),
		zap.String("recipe", r.Name),
		zap.Bool("substituted", out.Substituted),
		zap.Int("lines", len(out.Ingredients)),
		zap.Int("buyLines", len(out.BuyList())),
	)
	return out, nil
}

func (a *Adapter) substituteOnHand(ing Ingredient, need decimal.Decimal, available map[string]*stock) (string, bool) {
	if a.substitutes == nil {
		return "", false
	}
	for _, sub := range a.substitutes.Substitutes(ing.Name) {
		s, ok := available[normalize(sub)]
		if !ok || s.unit != ing.Unit || s.amount.LessThan(need) {
			continue
		}
		s.amount = s.amount.Sub(need)
		return sub, true
	}
	return "", false
}

func line(name string, amount decimal.Decimal, unit string, source Source, substituteFor string) Line {
	f, _ := amount.Round(amountPlaces).Float64()
	return Line{Name: name, Amount: f, Unit: unit, Source: source, SubstituteFor: substituteFor}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
