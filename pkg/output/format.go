// Package output provides utilities for formatting and displaying plan results.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iwvelando/meal-budget/internal/household"
	"github.com/iwvelando/meal-budget/internal/planner"
	"github.com/iwvelando/meal-budget/pkg/constants"
	"github.com/iwvelando/meal-budget/pkg/money"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3AA99F"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#879A39"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#DA702C"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#575653")).
			Padding(0, 1)
)

// Write renders outcome in the requested format.
func Write(w io.Writer, format string, outcome *planner.Outcome, symbol string) error {
	switch format {
	case constants.OutputFormatPretty:
		return PrettyFormat(w, outcome, symbol)
	case constants.OutputFormatCSV:
		return CsvFormat(w, outcome)
	case constants.OutputFormatJSON:
		return JSONFormat(w, outcome)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// PrettyFormat outputs a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, outcome *planner.Outcome, symbol string) error {
	if outcome == nil || outcome.Plan == nil || outcome.ShoppingList == nil {
		return fmt.Errorf("outcome is incomplete")
	}
	p := message.NewPrinter(language.English)
	plan, list := outcome.Plan, outcome.ShoppingList

	var b strings.Builder
	b.WriteString(titleStyle.Render(p.Sprintf("--- Meal plan %s ---", plan.ID)))
	b.WriteString("\n")
	_, _ = p.Fprintf(&b, "%d days x %d meals, %d kcal/day (user %d)\n",
		plan.Days, plan.MealsPerDay, plan.CaloriesPerDay, plan.UserID)

	if plan.Budget > 0 {
		status := okStyle.Render("within budget")
		if !outcome.WithinBudget {
			status = warnStyle.Render("over budget")
		}
		_, _ = fmt.Fprintf(&b, "Budget: %s | Cost: %s | %s\n",
			currency(p, plan.Budget, symbol), currency(p, list.TotalCost, symbol), status)
	} else {
		_, _ = fmt.Fprintf(&b, "Cost: %s\n", currency(p, list.TotalCost, symbol))
	}

	if s := outcome.Optimization; s != nil {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Optimization"))
		b.WriteString("\n")
		_, _ = fmt.Fprintf(&b, "Stop: %s after %d iteration(s), savings %s, headroom %s\n",
			s.StopReason, s.Iterations, currency(p, s.TotalSavings, symbol), currency(p, s.Headroom, symbol))
		if len(s.Attempts) > 0 {
			rows := make([][]string, 0, len(s.Attempts))
			for i, a := range s.Attempts {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					a.TierName,
					currency(p, a.CostBefore, symbol),
					currency(p, a.CostAfter, symbol),
					currency(p, a.Savings, symbol),
				})
			}
			b.WriteString(boxStyle.Render(table([]string{"#", "Tier", "Before", "After", "Savings"}, rows)))
			b.WriteString("\n")
		}
		for _, note := range s.Notes {
			_, _ = fmt.Fprintf(&b, "note: %s\n", note)
		}
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render(p.Sprintf("Shopping list (%d items)", list.ItemsCount)))
	b.WriteString("\n")
	rows := make([][]string, 0, len(list.Items))
	for _, item := range list.Items {
		rows = append(rows, []string{
			item.Category,
			item.Name,
			item.Brand,
			p.Sprintf("%.3f %s", item.Quantity, item.Unit),
			currency(p, item.Cost, symbol),
		})
	}
	b.WriteString(boxStyle.Render(table([]string{"Category", "Item", "Brand", "Quantity", "Cost"}, rows)))
	b.WriteString("\n")
	_, _ = fmt.Fprintf(&b, "Total: %s\n", currency(p, list.TotalCost, symbol))
	if outcome.Persisted {
		_, _ = fmt.Fprintf(&b, "Saved plan %s (list %s)\n", outcome.PlanID, outcome.ListID)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// CsvFormat outputs the shopping list in comma-separated value format. The
// last row carries the total.
func CsvFormat(w io.Writer, outcome *planner.Outcome) error {
	if outcome == nil || outcome.ShoppingList == nil {
		return fmt.Errorf("outcome is incomplete")
	}
	cw := csv.NewWriter(w)
	records := [][]string{{"product_id", "category", "name", "brand", "quantity", "unit", "cost"}}
	for _, item := range outcome.ShoppingList.Items {
		records = append(records, []string{
			item.ProductID,
			item.Category,
			item.Name,
			item.Brand,
			strconv.FormatFloat(item.Quantity, 'f', -1, 64),
			item.Unit,
			decimalString(item.Cost),
		})
	}
	records = append(records, []string{"", "", "total", "", "", "", decimalString(outcome.ShoppingList.TotalCost)})
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// JSONFormat outputs v as indented JSON.
func JSONFormat(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// WriteDistribution renders a household split in the requested format.
func WriteDistribution(w io.Writer, format string, d *household.Distribution, symbol string) error {
	if d == nil {
		return fmt.Errorf("distribution cannot be nil")
	}
	switch format {
	case constants.OutputFormatJSON:
		return JSONFormat(w, d)
	case constants.OutputFormatCSV:
		cw := csv.NewWriter(w)
		records := [][]string{{"id", "role", "budget"}}
		for _, m := range d.Members {
			records = append(records, []string{strconv.FormatInt(m.ID, 10), string(m.Role), decimalString(m.Budget)})
		}
		if err := cw.WriteAll(records); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		return nil
	case constants.OutputFormatPretty:
		p := message.NewPrinter(language.English)
		var b strings.Builder
		_, _ = fmt.Fprintf(&b, "%s\n", titleStyle.Render("--- Household budget ---"))
		_, _ = fmt.Fprintf(&b, "Total: %s\n", currency(p, d.TotalBudget, symbol))
		_, _ = p.Fprintf(&b, "Adults: %s (%.2f%%)\n", currency(p, d.AdultsBudget, symbol), d.AdultsShare*100)
		_, _ = p.Fprintf(&b, "Children: %s (%.2f%%)\n", currency(p, d.ChildrenBudget, symbol), d.ChildrenShare*100)
		rows := make([][]string, 0, len(d.Members))
		for _, m := range d.Members {
			rows = append(rows, []string{strconv.FormatInt(m.ID, 10), string(m.Role), currency(p, m.Budget, symbol)})
		}
		b.WriteString(boxStyle.Render(table([]string{"ID", "Role", "Budget"}, rows)))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// currency renders a with grouped thousands, e.g. "-$1,234.56".
func currency(p *message.Printer, a money.Amount, symbol string) string {
	if a < 0 {
		return "-" + symbol + p.Sprintf("%.2f", (-a).Major())
	}
	return symbol + p.Sprintf("%.2f", a.Major())
}

func decimalString(a money.Amount) string {
	return strconv.FormatFloat(a.Major(), 'f', 2, 64)
}

func table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string) string {
		padded := make([]string, len(cells))
		for i, cell := range cells {
			padded[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		return strings.Join(padded, " | ")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(line(headers)))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(line(row))
	}
	return b.String()
}
