// Package catalog holds the read-only product, substitute and recipe data the
// planner prices against. A Catalog is immutable after construction and safe
// for concurrent use.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/iwvelando/meal-budget/pkg/money"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Slot names used by recipes.
const (
	SlotBreakfast = "breakfast"
	SlotLunch     = "lunch"
	SlotDinner    = "dinner"
	SlotSnack     = "snack"
	SlotAny       = "any"
)

// Product is a purchasable item of a given brand.
type Product struct {
	ID         string       `yaml:"id" toml:"id" json:"id"`
	Name       string       `yaml:"name" toml:"name" json:"name"`
	Ingredient string       `yaml:"ingredient" toml:"ingredient" json:"ingredient"`
	Category   string       `yaml:"category" toml:"category" json:"category"`
	Brand      string       `yaml:"brand" toml:"brand" json:"brand"`
	Unit       string       `yaml:"unit" toml:"unit" json:"unit"`
	UnitPrice  money.Amount `yaml:"unitPrice" toml:"unitPrice" json:"unitPrice"` // minor units per Unit
}

// RecipeIngredient is one line of a recipe, per serving. Unit defaults to
// the product's unit and must match it when given.
type RecipeIngredient struct {
	Ingredient string  `yaml:"ingredient" toml:"ingredient" json:"ingredient"`
	Product    string  `yaml:"product" toml:"product" json:"product"`
	Quantity   float64 `yaml:"quantity" toml:"quantity" json:"quantity"`
	Unit       string  `yaml:"unit,omitempty" toml:"unit,omitempty" json:"unit"`
}

// Recipe is an entry of the recipe book.
type Recipe struct {
	Name               string             `yaml:"name" toml:"name" json:"name"`
	Slot               string             `yaml:"slot" toml:"slot" json:"slot"`
	CaloriesPerServing int                `yaml:"caloriesPerServing" toml:"caloriesPerServing" json:"caloriesPerServing"`
	Ingredients        []RecipeIngredient `yaml:"ingredients" toml:"ingredients" json:"ingredients"`
}

// Clone returns a deep copy of the recipe.
func (r Recipe) Clone() Recipe {
	out := r
	out.Ingredients = append([]RecipeIngredient(nil), r.Ingredients...)
	return out
}

// File is the on-disk catalog layout.
type File struct {
	Currency    string              `yaml:"currency" toml:"currency"`
	Products    []Product           `yaml:"products" toml:"products"`
	Substitutes map[string][]string `yaml:"substitutes" toml:"substitutes"`
	Recipes     []Recipe            `yaml:"recipes" toml:"recipes"`
}

// Catalog indexes a validated File.
type Catalog struct {
	currency     string
	products     map[string]Product
	byIngredient map[string][]Product
	categories   map[string]string
	substitutes  map[string][]string
	recipes      []Recipe
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, as TOML when the file ends in .toml and as
// YAML otherwise. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(data)
	}
	return Parse(data)
}

// ParseTOML decodes and validates a TOML catalog.
func ParseTOML(data []byte) (*Catalog, error) {
	var file File
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(file)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(file)
}

// New validates file and builds the lookup indexes.
func New(file File) (*Catalog, error) {
	c := &Catalog{
		currency:     strings.TrimSpace(file.Currency),
		products:     make(map[string]Product, len(file.Products)),
		byIngredient: make(map[string][]Product),
		categories:   make(map[string]string),
		substitutes:  make(map[string][]string),
	}

	for _, p := range file.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog product %q has no id", p.Name)
		}
		if _, dup := c.products[p.ID]; dup {
			return nil, fmt.Errorf("catalog product id %q is duplicated", p.ID)
		}
		if p.Ingredient == "" || p.Category == "" {
			return nil, fmt.Errorf("catalog product %q requires an ingredient and a category", p.ID)
		}
		if p.UnitPrice <= 0 {
			return nil, fmt.Errorf("catalog product %q must have a positive unit price", p.ID)
		}
		if existing, ok := c.categories[p.Ingredient]; ok && existing != p.Category {
			return nil, fmt.Errorf("ingredient %q is listed under categories %q and %q", p.Ingredient, existing, p.Category)
		}
		if others := c.byIngredient[p.Ingredient]; len(others) > 0 && others[0].Unit != p.Unit {
			return nil, fmt.Errorf("ingredient %q is sold in units %q and %q", p.Ingredient, others[0].Unit, p.Unit)
		}
		c.categories[p.Ingredient] = p.Category
		c.products[p.ID] = p
		c.byIngredient[p.Ingredient] = append(c.byIngredient[p.Ingredient], p)
	}

	for ingredient := range c.byIngredient {
		products := c.byIngredient[ingredient]
		sort.SliceStable(products, func(i, j int) bool {
			if products[i].UnitPrice != products[j].UnitPrice {
				return products[i].UnitPrice < products[j].UnitPrice
			}
			return products[i].ID < products[j].ID
		})
	}

	for ingredient, subs := range file.Substitutes {
		category, ok := c.categories[ingredient]
		if !ok {
			return nil, fmt.Errorf("substitutes reference unknown ingredient %q", ingredient)
		}
		for _, sub := range subs {
			subCategory, ok := c.categories[sub]
			if !ok {
				return nil, fmt.Errorf("substitute %q for %q is not in the catalog", sub, ingredient)
			}
			if subCategory != category {
				return nil, fmt.Errorf("substitute %q (%s) for %q (%s) must share a category", sub, subCategory, ingredient, category)
			}
		}
		c.substitutes[ingredient] = append([]string(nil), subs...)
	}

	for _, r := range file.Recipes {
		if r.Name == "" {
			return nil, fmt.Errorf("catalog recipe has no name")
		}
		if r.CaloriesPerServing <= 0 {
			return nil, fmt.Errorf("recipe %q must have positive calories per serving", r.Name)
		}
		if r.Slot == "" {
			r.Slot = SlotAny
		}
		r = r.Clone()
		for i := range r.Ingredients {
			ing := &r.Ingredients[i]
			p, ok := c.products[ing.Product]
			if !ok {
				return nil, fmt.Errorf("recipe %q uses unknown product %q", r.Name, ing.Product)
			}
			if p.Ingredient != ing.Ingredient {
				return nil, fmt.Errorf("recipe %q product %q is %q, not %q", r.Name, ing.Product, p.Ingredient, ing.Ingredient)
			}
			if ing.Quantity <= 0 {
				return nil, fmt.Errorf("recipe %q ingredient %q must have a positive quantity", r.Name, ing.Ingredient)
			}
			if ing.Unit == "" {
				ing.Unit = p.Unit
			} else if ing.Unit != p.Unit {
				return nil, fmt.Errorf("recipe %q ingredient %q is measured in %q but product %q is sold in %q", r.Name, ing.Ingredient, ing.Unit, p.ID, p.Unit)
			}
		}
		c.recipes = append(c.recipes, r)
	}

	return c, nil
}

// Currency returns the catalog currency symbol.
func (c *Catalog) Currency() string {
	return c.currency
}

// Product looks up a product by id.
func (c *Catalog) Product(id string) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// Category returns the category of an ingredient.
func (c *Catalog) Category(ingredient string) (string, bool) {
	category, ok := c.categories[ingredient]
	return category, ok
}

// CheapestFor returns the lowest priced product of an ingredient.
func (c *Catalog) CheapestFor(ingredient string) (Product, bool) {
	products := c.byIngredient[ingredient]
	if len(products) == 0 {
		return Product{}, false
	}
	return products[0], true
}

// Substitutes returns the configured substitute ingredients.
func (c *Catalog) Substitutes(ingredient string) []string {
	return append([]string(nil), c.substitutes[ingredient]...)
}

// Recipes returns a copy of the recipe book.
func (c *Catalog) Recipes() []Recipe {
	out := make([]Recipe, 0, len(c.recipes))
	for _, r := range c.recipes {
		out = append(out, r.Clone())
	}
	return out
}

// RecipesForSlot returns recipes tagged with slot, followed by those tagged any.
func (c *Catalog) RecipesForSlot(slot string) []Recipe {
	var tagged, anySlot []Recipe
	for _, r := range c.recipes {
		switch r.Slot {
		case slot:
			tagged = append(tagged, r.Clone())
		case SlotAny:
			anySlot = append(anySlot, r.Clone())
		}
	}
	return append(tagged, anySlot...)
}

// LineCost prices quantity units of a product, rounded to the minor unit.
func (c *Catalog) LineCost(productID string, quantity decimal.Decimal) (money.Amount, error) {
	p, ok := c.products[productID]
	if !ok {
		return 0, fmt.Errorf("unknown product %q", productID)
	}
	return money.FromDecimal(p.UnitPrice.Decimal().Mul(quantity)), nil
}

// RecipeCost prices a recipe for the given servings.
func (c *Catalog) RecipeCost(r Recipe, servings float64) (money.Amount, error) {
	total := money.Zero
	s := decimal.NewFromFloat(servings)
	for _, ing := range r.Ingredients {
		cost, err := c.LineCost(ing.Product, decimal.NewFromFloat(ing.Quantity).Mul(s))
		if err != nil {
			return 0, fmt.Errorf("recipe %q: %w", r.Name, err)
		}
		total += cost
	}
	return total, nil
}
