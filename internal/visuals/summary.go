package visuals

import (
	"fmt"
	"strings"

	"dqa/internal/quality"
)

// RunSummary renders a Markdown summary of a run. Charts are embedded when
// withCharts is set.
func RunSummary(res *quality.Result, withCharts bool) string {
	r := res.Report

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Data quality run %s\n\n", r.RunID))

	sb.WriteString("| Metric | Value |\n|---|---|\n")
	rows := []struct {
		name  string
		value any
	}{
		{"Observations", r.Observations},
		{"Periods", len(r.Periods)},
		{"Facility level", r.FacilityLevel},
		{"Rollup level", r.RollupLevel},
		{"Expected cells", r.Availability.ExpectedCells},
		{"Available cells", r.Availability.Available},
		{"Dropped observations", r.Availability.Dropped},
		{"Outliers", r.Outliers},
		{"Extreme values", r.Extremes},
		{"Zeros", r.Zeros},
		{"Rollup groups", r.Rollup.Groups},
		{"Rollup orphans", r.Rollup.Orphans},
	}
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %v |\n", row.name, row.value))
	}

	if len(r.Periods) > 0 {
		sb.WriteString(fmt.Sprintf("\nPeriods: %s to %s\n", r.Periods[0], r.Periods[len(r.Periods)-1]))
	}

	if len(r.MissingCatalog) > 0 {
		sb.WriteString("\n## Elements missing from the catalog\n\n")
		for _, k := range r.MissingCatalog {
			sb.WriteString(fmt.Sprintf("- `%s`\n", k))
		}
	}

	sb.WriteString("\n## Reporting style\n\n")
	for _, style := range quality.Styles {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", style, r.Styles[style]))
	}

	if withCharts {
		charts := []string{
			GenerateStylePie(r.Styles),
			GenerateAvailabilityChart(res.Records),
			GenerateOutlierRateChart(res.Rollup),
		}
		for _, c := range charts {
			if c != "" {
				sb.WriteString("\n")
				sb.WriteString(c)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}
