package visuals

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"dqa/internal/period"
	"dqa/internal/quality"
)

// maxBars caps the bars of a chart; Mermaid's xychart overlaps labels beyond it.
const maxBars = 20

// GenerateStylePie creates a Mermaid pie chart of the reporting style counts.
func GenerateStylePie(styles map[quality.ReportingStyle]int) string {
	total := 0
	for _, n := range styles {
		total += n
	}
	if total == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("pie title Reporting Style (Facility Series)\n")
	for _, style := range quality.Styles {
		if n := styles[style]; n > 0 {
			sb.WriteString(fmt.Sprintf("    \"%s\" : %d\n", style, n))
		}
	}
	sb.WriteString("```")
	return sb.String()
}

// GenerateAvailabilityChart creates a Mermaid line chart of the share of
// available expected cells per period.
func GenerateAvailabilityChart(records []quality.QualityRecord) string {
	type tally struct{ available, expected int }
	byPeriod := make(map[string]*tally)
	var periods []string
	for _, r := range records {
		t, ok := byPeriod[r.Period]
		if !ok {
			t = &tally{}
			byPeriod[r.Period] = t
			periods = append(periods, r.Period)
		}
		t.expected++
		if r.Availability.IsTrue() {
			t.available++
		}
	}
	if len(periods) == 0 {
		return ""
	}
	slices.SortFunc(periods, period.Compare)

	var labels []string
	var values []string
	for _, p := range periods {
		t := byPeriod[p]
		labels = append(labels, fmt.Sprintf("\"%s\"", p))
		values = append(values, fmt.Sprintf("%.1f", 100*float64(t.available)/float64(t.expected)))
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Availability per Period\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString("    y-axis \"Available (%)\" 0 --> 100\n")
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateOutlierRateChart creates a Mermaid bar chart of the mean outlier
// rate per rollup unit, highest first.
func GenerateOutlierRateChart(rollup []quality.RollupStat) string {
	type unitRate struct {
		name string
		sum  float64
		n    int
	}
	byUnit := make(map[string]*unitRate)
	for _, r := range rollup {
		if r.OutlierRate == nil {
			continue
		}
		u, ok := byUnit[r.OrgUnit]
		if !ok {
			u = &unitRate{name: r.OrgUnitName}
			byUnit[r.OrgUnit] = u
		}
		u.sum += *r.OutlierRate
		u.n++
	}
	if len(byUnit) == 0 {
		return ""
	}

	units := make([]*unitRate, 0, len(byUnit))
	for _, u := range byUnit {
		units = append(units, u)
	}
	slices.SortFunc(units, func(a, b *unitRate) int {
		if c := cmp.Compare(b.sum/float64(b.n), a.sum/float64(a.n)); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	if len(units) > maxBars {
		units = units[:maxBars]
	}

	var labels []string
	var values []string
	maxVal := 0.0
	for _, u := range units {
		rate := 100 * u.sum / float64(u.n)
		// Quotes break the axis syntax
		labels = append(labels, fmt.Sprintf("\"%s\"", strings.ReplaceAll(u.name, "\"", "'")))
		values = append(values, fmt.Sprintf("%.1f", rate))
		maxVal = max(maxVal, rate)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Outlier Rate by Unit (Top 20)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Outliers (%%)\" 0 --> %d\n", int(math.Max(1, math.Ceil(maxVal*1.2)))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}
