package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iwvelando/meal-budget/internal/household"
	"github.com/iwvelando/meal-budget/internal/mealplan"
	"github.com/iwvelando/meal-budget/internal/planner"
	"github.com/iwvelando/meal-budget/internal/shopping"
	"github.com/iwvelando/meal-budget/pkg/optimization"
)

func sampleOutcome() *planner.Outcome {
	return &planner.Outcome{
		Plan: &mealplan.Plan{
			ID:             "plan-1",
			UserID:         7,
			Budget:         8000,
			CaloriesPerDay: 2000,
			Days:           7,
			MealsPerDay:    3,
		},
		ShoppingList: &shopping.List{
			PlanID: "plan-1",
			Items: []shopping.Item{
				{ProductID: "beans-store", Name: "Black beans", Category: "pantry", Brand: "Store", Quantity: 1.5, Unit: "kg", Cost: 450},
				{ProductID: "beef-prime", Name: "Beef chuck", Category: "protein", Brand: "Prime", Quantity: 2, Unit: "kg", Cost: 7527},
			},
			TotalCost:  7977,
			ItemsCount: 2,
			Categories: []string{"pantry", "protein"},
		},
		Optimization: &optimization.Summary{
			Limit:        8000,
			InitialCost:  123456,
			FinalCost:    7977,
			TotalSavings: 115479,
			Headroom:     23,
			Iterations:   1,
			Converged:    true,
			StopReason:   "converged",
			Attempts: []optimization.AttemptSummary{
				{Tier: 1, TierName: "brand substitution", CostBefore: 123456, CostAfter: 7977, Savings: 115479},
			},
		},
		WithinBudget: true,
	}
}

func TestPrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := PrettyFormat(&buf, sampleOutcome(), "$"); err != nil {
		t.Fatalf("PrettyFormat() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Meal plan plan-1",
		"Budget: $80.00",
		"Cost: $79.77",
		"within budget",
		"brand substitution",
		"$1,234.56",
		"$1,154.79",
		"Shopping list (2 items)",
		"Black beans",
		"Total: $79.77",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Saved plan") {
		t.Errorf("unpersisted outcome should not report a saved plan")
	}
}

func TestPrettyFormatOverBudget(t *testing.T) {
	outcome := sampleOutcome()
	outcome.WithinBudget = false
	outcome.Persisted = true
	outcome.PlanID = "stored-1"
	outcome.ListID = "list-1"
	outcome.Optimization.Headroom = -150
	outcome.Optimization.Notes = []string{"tier 3 made no progress"}

	var buf bytes.Buffer
	if err := PrettyFormat(&buf, outcome, "$"); err != nil {
		t.Fatalf("PrettyFormat() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"over budget", "headroom -$1.50", "note: tier 3 made no progress", "Saved plan stored-1 (list list-1)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrettyFormatWithoutBudget(t *testing.T) {
	outcome := sampleOutcome()
	outcome.Plan.Budget = 0
	outcome.Optimization = nil

	var buf bytes.Buffer
	if err := PrettyFormat(&buf, outcome, "€"); err != nil {
		t.Fatalf("PrettyFormat() error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "Budget:") || strings.Contains(out, "Optimization") {
		t.Errorf("expected no budget section, got:\n%s", out)
	}
	if !strings.Contains(out, "Cost: €79.77") {
		t.Errorf("expected euro cost line, got:\n%s", out)
	}
}

func TestCsvFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := CsvFormat(&buf, sampleOutcome()); err != nil {
		t.Fatalf("CsvFormat() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header, 2 items and a total row, got %d rows", len(records))
	}
	if records[0][0] != "product_id" || records[0][6] != "cost" {
		t.Errorf("unexpected header %v", records[0])
	}
	if got := records[1]; got[0] != "beans-store" || got[4] != "1.5" || got[6] != "4.50" {
		t.Errorf("unexpected first item row %v", got)
	}
	if got := records[3]; got[2] != "total" || got[6] != "79.77" {
		t.Errorf("unexpected total row %v", got)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := JSONFormat(&buf, sampleOutcome()); err != nil {
		t.Fatalf("JSONFormat() error = %v", err)
	}

	var decoded struct {
		WithinBudget bool `json:"withinBudget"`
		Optimization struct {
			StopReason string `json:"stopReason"`
			Headroom   int64  `json:"headroom"`
		} `json:"optimization"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if !decoded.WithinBudget || decoded.Optimization.StopReason != "converged" || decoded.Optimization.Headroom != 23 {
		t.Errorf("unexpected decoded outcome %+v", decoded)
	}
}

func TestWriteRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "xml", sampleOutcome(), "$"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if err := PrettyFormat(&buf, &planner.Outcome{}, "$"); err == nil {
		t.Fatal("expected error for incomplete outcome")
	}
}

func TestWriteDistribution(t *testing.T) {
	d := &household.Distribution{
		AdultsShare:    0.7,
		ChildrenShare:  0.3,
		TotalBudget:    600000,
		AdultsBudget:   420000,
		ChildrenBudget: 180000,
		Members: []household.MemberBudget{
			{ID: 1, Role: household.RoleAdult, Budget: 210000},
			{ID: 2, Role: household.RoleAdult, Budget: 210000},
			{ID: 3, Role: household.RoleChild, Budget: 90000},
			{ID: 4, Role: household.RoleChild, Budget: 90000},
		},
	}

	var pretty bytes.Buffer
	if err := WriteDistribution(&pretty, "pretty", d, "$"); err != nil {
		t.Fatalf("WriteDistribution(pretty) error = %v", err)
	}
	for _, want := range []string{"Total: $6,000.00", "Adults: $4,200.00 (70.00%)", "Children: $1,800.00 (30.00%)", "$2,100.00"} {
		if !strings.Contains(pretty.String(), want) {
			t.Errorf("expected pretty output to contain %q, got:\n%s", want, pretty.String())
		}
	}

	var csvOut bytes.Buffer
	if err := WriteDistribution(&csvOut, "csv", d, "$"); err != nil {
		t.Fatalf("WriteDistribution(csv) error = %v", err)
	}
	if !strings.Contains(csvOut.String(), "3,child,900.00") {
		t.Errorf("unexpected csv output:\n%s", csvOut.String())
	}

	if err := WriteDistribution(&csvOut, "pretty", nil, "$"); err == nil {
		t.Error("expected error for nil distribution")
	}
}
