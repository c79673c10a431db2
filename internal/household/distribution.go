// Package household splits a family food budget between adults and
// children by role weight.
package household

import (
	"errors"
	"fmt"
	"sort"

	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Role of a household member.
type Role string

const (
	RoleAdult Role = "adult"
	RoleChild Role = "child"
)

// sharePlaces is the precision the adults' share is rounded to.
const sharePlaces = 4

// ErrNoMembers is returned when a distribution is requested for nobody.
var ErrNoMembers = errors.New("household has no members")

// Member is one person in the household.
type Member struct {
	ID          int64    `json:"id"`
	Role        Role     `json:"role"`
	Allergies   []string `json:"allergies,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
}

// MemberBudget is the slice of the budget allotted to one member.
type MemberBudget struct {
	ID     int64        `json:"id"`
	Role   Role         `json:"role"`
	Budget money.Amount `json:"budget"`
}

// Distribution is the outcome of Distribute. AdultsShare + ChildrenShare is
// exactly 1 and AdultsBudget + ChildrenBudget is exactly TotalBudget.
type Distribution struct {
	AdultsShare    float64        `json:"adultsShare"`
	ChildrenShare  float64        `json:"childrenShare"`
	TotalBudget    money.Amount   `json:"totalBudget"`
	AdultsBudget   money.Amount   `json:"adultsBudget"`
	ChildrenBudget money.Amount   `json:"childrenBudget"`
	Members        []MemberBudget `json:"members"`
}

// Distributor applies configured role weights.
type Distributor struct {
	logger      *zap.Logger
	adultWeight decimal.Decimal
	childWeight decimal.Decimal
}

// NewDistributor validates cfg and returns a Distributor.
func NewDistributor(logger *zap.Logger, cfg config.HouseholdConfig) (*Distributor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Distributor{
		logger:      logger,
		adultWeight: decimal.NewFromFloat(cfg.AdultWeight),
		childWeight: decimal.NewFromFloat(cfg.ChildWeight),
	}, nil
}

// Distribute splits total between adults and children. Within each group
// the budget is divided evenly by member ID, the leftover minor units going
// to the lowest IDs.
func (d *Distributor) Distribute(members []Member, total money.Amount) (*Distribution, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}
	if total < 0 {
		return nil, fmt.Errorf("total budget cannot be negative, got %s", total)
	}

	var adults, children []Member
	for _, m := range members {
		switch m.Role {
		case RoleAdult:
			adults = append(adults, m)
		case RoleChild:
			children = append(children, m)
		default:
			return nil, fmt.Errorf("member %d has unknown role %q", m.ID, m.Role)
		}
	}

	adultWeight := d.adultWeight.Mul(decimal.NewFromInt(int64(len(adults))))
	childWeight := d.childWeight.Mul(decimal.NewFromInt(int64(len(children))))
	share := adultWeight.Div(adultWeight.Add(childWeight)).Round(sharePlaces)

	adultsShare, childrenShare := shares(share)
	adultsBudget := total.Scale(share)

	dist := &Distribution{
		AdultsShare:    adultsShare,
		ChildrenShare:  childrenShare,
		TotalBudget:    total,
		AdultsBudget:   adultsBudget,
		ChildrenBudget: total - adultsBudget,
	}
	dist.Members = append(split(adults, dist.AdultsBudget), split(children, dist.ChildrenBudget)...)

	d.logger.Debug("distributed household budget",
		zap.String("op", "household.Distribute"),
		zap.Int("adults", len(adults)),
		zap.Int("children", len(children)),
		zap.Int64("total", int64(total)),
		zap.Float64("adultsShare", dist.AdultsShare),
	)
	return dist, nil
}

// shares converts the adults' share and its complement to float64 so that
// their float sum is exactly 1. The decimal complement is used when it keeps
// that property, 1 - adults otherwise.
func shares(adults decimal.Decimal) (float64, float64) {
	a, _ := adults.Float64()
	c, _ := decimal.NewFromInt(1).Sub(adults).Float64()
	if a+c != 1 {
		c = 1 - a
	}
	return a, c
}

func split(members []Member, budget money.Amount) []MemberBudget {
	if len(members) == 0 {
		return nil
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	n := money.Amount(len(members))
	each, leftover := budget/n, budget%n
	out := make([]MemberBudget, 0, len(members))
	for i, m := range members {
		b := each
		if money.Amount(i) < leftover {
			b++
		}
		out = append(out, MemberBudget{ID: m.ID, Role: m.Role, Budget: b})
	}
	return out
}
