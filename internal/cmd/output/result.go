package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/agentstation/registrar/internal/cmd/emoji"
	"github.com/agentstation/registrar/pkg/reconciler"
)

// FormatResult writes a run result in the requested format. Table formats
// get a summary table; wide adds one row per role grant.
func FormatResult(w io.Writer, result *reconciler.Result, format Format) error {
	formatter := NewFormatter(format)

	switch format {
	case FormatTable, FormatWide, "":
		if err := formatter.Format(w, ResultToTableData(result)); err != nil {
			return err
		}
		if format == FormatWide && len(result.RoleGrants) > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
			return formatter.Format(w, RoleGrantsToTableData(result.RoleGrants))
		}
		return nil
	default:
		return formatter.Format(w, result)
	}
}

// ResultToTableData summarizes a result as property/value rows.
func ResultToTableData(result *reconciler.Result) Data {
	rows := [][]string{
		{"Outcome", OutcomeSymbol(result.Outcome) + " " + result.Outcome.String()},
		{"Name", result.Name},
	}
	if result.QualifiedName != "" {
		rows = append(rows, []string{"Qualified Name", result.QualifiedName})
	}
	rows = append(rows,
		[]string{"URL", result.URL},
		[]string{"Status", result.Status},
		[]string{"Build", buildLabel(result)},
	)
	if result.Action != "" {
		rows = append(rows, []string{"Action", actionLabel(result)})
	}
	if result.ResourceID != "" {
		rows = append(rows, []string{"Resource ID", result.ResourceID.String()})
	}
	rows = append(rows,
		[]string{"Linked", yesNo(result.Linked)},
		[]string{"Roles", strings.Join(result.Roles, ", ")},
	)
	if len(result.RoleGrants) > 0 {
		rows = append(rows, []string{"Role Grants", grantSummary(result.RoleGrants)})
	}
	rows = append(rows, []string{"Writes", fmt.Sprintf("%d", result.Writes)})
	if result.Metadata.DryRun {
		rows = append(rows, []string{"Dry Run", "yes"})
	}
	rows = append(rows, []string{"Duration", result.Metadata.Duration.Round(time.Millisecond).String()})
	if result.Error != "" {
		rows = append(rows, []string{"Error", result.Error})
	}

	return Data{
		Headers:         []string{"Property", "Value"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft},
	}
}

// RoleGrantsToTableData lists role grants one per row.
func RoleGrantsToTableData(grants []reconciler.RoleOutcome) Data {
	rows := make([][]string, 0, len(grants))
	for _, g := range grants {
		rows = append(rows, []string{g.Role, grantLabel(g), g.Error})
	}
	return Data{
		Headers: []string{"Role", "Result", "Error"},
		Rows:    rows,
	}
}

// OutcomeSymbol returns the status symbol for an outcome.
func OutcomeSymbol(o reconciler.Outcome) string {
	switch o {
	case reconciler.OutcomeUpdated:
		return emoji.Success
	case reconciler.OutcomeIgnored:
		return emoji.Unchanged
	case reconciler.OutcomeFailed:
		return emoji.Error
	default:
		return emoji.Unknown
	}
}

func buildLabel(result *reconciler.Result) string {
	if result.BuildName == "" {
		return result.BuildID
	}
	return fmt.Sprintf("%s (%s)", result.BuildID, result.BuildName)
}

func actionLabel(result *reconciler.Result) string {
	if result.MatchedBy != "" {
		return fmt.Sprintf("%s (matched by %s)", result.Action, result.MatchedBy)
	}
	return result.Action.String()
}

func grantLabel(g reconciler.RoleOutcome) string {
	switch {
	case g.Planned:
		return emoji.Planned + " planned"
	case g.Granted:
		return emoji.Success + " granted"
	default:
		return emoji.Error + " failed"
	}
}

func grantSummary(grants []reconciler.RoleOutcome) string {
	parts := make([]string, 0, len(grants))
	for _, g := range grants {
		parts = append(parts, g.Role+" "+grantLabel(g))
	}
	return strings.Join(parts, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
