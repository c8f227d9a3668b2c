package quality

import (
	"slices"

	"dqa/internal/dataset"
	"dqa/internal/stats"
)

// Presentation statistic labels, in output order.
var PresentationStats = []string{"25%", "50%", "75%", "max", "mean", "min", "std"}

// PresentationColumns are the rollup metrics described per element key.
var PresentationColumns = []string{
	"VALUE", "AVAILABILITY_BOOL", "OUTLIER_RS", "EXTREME_RS", "OUTLIER_FOSA",
	"OUTLIER_VALUES", "ZERO", "ALWAYS", "NEVER", "STOPPED", "INCONSISTENT",
}

// PresentationRow is one (element key, statistic) row of the wide table.
// Values align with PresentationColumns; nil means the statistic is undefined.
type PresentationRow struct {
	Key    dataset.ElementKey `json:"key"`
	Stat   string             `json:"agg"`
	Values []*float64         `json:"values"`
}

// PresentationTable is the wide, visualization-ready description of the rollup.
type PresentationTable struct {
	Columns []string          `json:"columns"`
	Rows    []PresentationRow `json:"rows"`
}

// Present describes the rollup rows of each element key across the rollup
// units: quartiles, extremes, mean and sample standard deviation of every
// metric column.
func Present(rollup []RollupStat) PresentationTable {
	byKey := make(map[dataset.ElementKey][][]float64)
	var keys []dataset.ElementKey
	for _, r := range rollup {
		cols, ok := byKey[r.Key]
		if !ok {
			keys = append(keys, r.Key)
			cols = make([][]float64, len(PresentationColumns))
		}
		for i, v := range rollupMetrics(r) {
			cols[i] = append(cols[i], v)
		}
		byKey[r.Key] = cols
	}
	slices.SortFunc(keys, dataset.ElementKey.Compare)

	table := PresentationTable{Columns: slices.Clone(PresentationColumns)}
	for _, k := range keys {
		cols := byKey[k]
		for _, stat := range PresentationStats {
			row := PresentationRow{Key: k, Stat: stat, Values: make([]*float64, len(cols))}
			for i, col := range cols {
				row.Values[i] = ptr(describe(col, stat))
			}
			table.Rows = append(table.Rows, row)
		}
	}
	return table
}

func rollupMetrics(r RollupStat) []float64 {
	return []float64{
		deref(r.MeanValue), deref(r.MeanAvailability), deref(r.OutlierRate), deref(r.ExtremeRate), deref(r.OutlierFOSA),
		r.OutlierValues, r.Zero, r.Always, r.Never, r.Stopped, r.Inconsistent,
	}
}

func describe(values []float64, stat string) float64 {
	switch stat {
	case "25%":
		return stats.CalculateQuantile(values, 0.25)
	case "50%":
		return stats.CalculateQuantile(values, 0.5)
	case "75%":
		return stats.CalculateQuantile(values, 0.75)
	case "max":
		return stats.CalculateQuantile(values, 1)
	case "min":
		return stats.CalculateQuantile(values, 0)
	case "mean":
		return stats.CalculateMean(values)
	default: // std
		return stats.CalculateSampleStdDev(values)
	}
}
