package quality

import (
	"cmp"
	"slices"

	"dqa/internal/dataset"
	"dqa/internal/stats"
)

// FacilityStat summarises one (facility, element key) series.
type FacilityStat struct {
	OrgUnit string             `json:"ou"`
	Key     dataset.ElementKey `json:"key"`

	Periods         int `json:"periods"`
	ReportingMonths int `json:"reportingMonthsCount"` // REPORTING_MONTHS_COUNT
	OutlierCount    int `json:"outlierRSCount"`       // OUTLIER_RS_COUNT
	ExtremeCount    int `json:"extremeRSCount"`
	ZeroCount       int `json:"zeroCount"`

	MeanValue        *float64 `json:"value"`
	MeanAvailability *float64 `json:"availability"`
	OutlierRate      *float64 `json:"outlierRS"`
	ExtremeRate      *float64 `json:"extremeRS"`
	// ZeroShare is ZeroCount over ReportingMonths, 0 without reporting months.
	ZeroShare float64 `json:"zero"`

	// OutlierFOSA is set when the facility had at least one outlier.
	OutlierFOSA dataset.Flag   `json:"outlierFOSA"`
	Style       ReportingStyle `json:"style"`
}

// AggregateFacilities computes facility statistics from availability
// records and joins each series with its reporting style. Means skip
// missing values. Output is ordered by OU then key.
func AggregateFacilities(records []QualityRecord, styles []SeriesStyle, mode dataset.KeyMode) []FacilityStat {
	type acc struct {
		stat                              FacilityStat
		values, avail, outliers, extremes []float64
	}
	groups := make(map[unitKey]*acc)
	for _, r := range records {
		k := unitKey{OrgUnit: r.OrgUnit, Key: r.Key(mode)}
		a, ok := groups[k]
		if !ok {
			a = &acc{stat: FacilityStat{OrgUnit: k.OrgUnit, Key: k.Key}}
			groups[k] = a
		}

		a.stat.Periods++
		if r.HasValue() {
			a.values = append(a.values, *r.Value)
		}
		if f, ok := r.Availability.Float(); ok {
			a.avail = append(a.avail, f)
		}
		if f, ok := r.OutlierRS.Float(); ok {
			a.outliers = append(a.outliers, f)
		}
		if f, ok := r.ExtremeRS.Float(); ok {
			a.extremes = append(a.extremes, f)
		}
		if r.Availability.IsTrue() {
			a.stat.ReportingMonths++
		}
		if r.OutlierRS.IsTrue() {
			a.stat.OutlierCount++
		}
		if r.ExtremeRS.IsTrue() {
			a.stat.ExtremeCount++
		}
		if r.Zero.IsTrue() {
			a.stat.ZeroCount++
		}
	}

	styleOf := make(map[unitKey]ReportingStyle, len(styles))
	for _, s := range styles {
		styleOf[unitKey{OrgUnit: s.OrgUnit, Key: s.Key}] = s.Style
	}

	out := make([]FacilityStat, 0, len(groups))
	for k, a := range groups {
		s := a.stat
		s.MeanValue = ptr(stats.CalculateMean(a.values))
		s.MeanAvailability = ptr(stats.CalculateMean(a.avail))
		s.OutlierRate = ptr(stats.CalculateMean(a.outliers))
		s.ExtremeRate = ptr(stats.CalculateMean(a.extremes))
		s.ZeroShare = safeRatio(float64(s.ZeroCount), float64(s.ReportingMonths))
		s.OutlierFOSA = dataset.FlagOf(s.OutlierRate != nil && *s.OutlierRate > 0)
		s.Style = styleOf[k]
		out = append(out, s)
	}

	slices.SortFunc(out, func(a, b FacilityStat) int {
		if c := cmp.Compare(a.OrgUnit, b.OrgUnit); c != 0 {
			return c
		}
		return a.Key.Compare(b.Key)
	})
	return out
}

// safeRatio divides, returning 0 when the denominator is 0.
func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
