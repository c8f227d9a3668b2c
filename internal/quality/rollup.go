package quality

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"dqa/internal/dataset"
)

// Weighting selects how facility means are averaged in the rollup.
type Weighting string

const (
	// WeightUnweighted gives every facility the same weight.
	WeightUnweighted Weighting = "unweighted"
	// WeightReportingMonths weights facilities by REPORTING_MONTHS_COUNT.
	WeightReportingMonths Weighting = "reporting_months"
)

// ParseWeighting accepts "unweighted" (or "") and "reporting_months".
func ParseWeighting(s string) (Weighting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unweighted", "none":
		return WeightUnweighted, nil
	case "reporting_months", "reporting-months", "weighted":
		return WeightReportingMonths, nil
	}
	return "", fmt.Errorf("unknown rollup weighting %q", s)
}

// RollupStat is one (ancestor unit, element key) row of the level rollup.
type RollupStat struct {
	OrgUnit     string             `json:"ou"`
	OrgUnitName string             `json:"ouName"`
	Level       int                `json:"level"`
	Key         dataset.ElementKey `json:"key"`

	DataElementName string `json:"deName,omitempty"`
	COCName         string `json:"cocName,omitempty"`

	Facilities      int `json:"facilities"`
	ReportingMonths int `json:"reportingMonthsCount"`
	OutlierCount    int `json:"outlierRSCount"`
	ZeroCount       int `json:"zeroCount"`

	MeanValue        *float64 `json:"value"`
	MeanAvailability *float64 `json:"availability"`
	OutlierRate      *float64 `json:"outlierRS"`
	ExtremeRate      *float64 `json:"extremeRS"`
	OutlierFOSA      *float64 `json:"outlierFOSA"`

	// OutlierValues and Zero are counts over summed reporting months, 0 when
	// no month was reported.
	OutlierValues float64 `json:"outlierValues"`
	Zero          float64 `json:"zero"`

	// Style indicators, averaged over facilities. SINCE_FULL is counted as ALWAYS.
	Always       float64 `json:"always"`
	Never        float64 `json:"never"`
	Stopped      float64 `json:"stopped"`
	Inconsistent float64 `json:"inconsistent"`
}

// RollupReport counts facilities the rollup could not place.
type RollupReport struct {
	Groups int `json:"groups"`
	// Orphans are facility rows without an ancestor at the target level.
	Orphans int `json:"orphans"`
}

// FoldStyle maps SINCE_FULL onto ALWAYS before indicator expansion.
func FoldStyle(s ReportingStyle) ReportingStyle {
	if s == StyleSinceFull {
		return StyleAlways
	}
	return s
}

// Rollup groups facility statistics by their ancestor at the target level and
// element key. Means are averaged across facilities (weighted per the
// weighting), ratios are re-derived from summed counts.
func Rollup(facilities []FacilityStat, tree *dataset.Tree, level int, weighting Weighting) ([]RollupStat, RollupReport) {
	type group struct {
		ancestor dataset.Ancestor
		key      dataset.ElementKey
		rows     []FacilityStat
	}
	groups := make(map[unitKey]*group)
	var report RollupReport

	for _, f := range facilities {
		unit, ok := tree.Unit(f.OrgUnit)
		if !ok {
			report.Orphans++
			continue
		}
		anc, ok := unit.AncestorAt(level)
		if !ok {
			report.Orphans++
			continue
		}
		k := unitKey{OrgUnit: anc.ID, Key: f.Key}
		g, ok := groups[k]
		if !ok {
			g = &group{ancestor: anc, key: f.Key}
			groups[k] = g
		}
		g.rows = append(g.rows, f)
	}

	out := make([]RollupStat, 0, len(groups))
	for _, g := range groups {
		name := g.ancestor.Name
		if name == "" {
			name = tree.Name(g.ancestor.ID)
		}
		r := RollupStat{
			OrgUnit:     g.ancestor.ID,
			OrgUnitName: name,
			Level:       level,
			Key:         g.key,
			Facilities:  len(g.rows),
		}

		weights := make([]float64, len(g.rows))
		var means [5][]float64
		var indicators [4][]float64
		for i, f := range g.rows {
			r.ReportingMonths += f.ReportingMonths
			r.OutlierCount += f.OutlierCount
			r.ZeroCount += f.ZeroCount

			weights[i] = 1
			if weighting == WeightReportingMonths {
				weights[i] = float64(f.ReportingMonths)
			}
			fosa, _ := f.OutlierFOSA.Float()
			means[0] = append(means[0], deref(f.MeanValue))
			means[1] = append(means[1], deref(f.MeanAvailability))
			means[2] = append(means[2], deref(f.OutlierRate))
			means[3] = append(means[3], deref(f.ExtremeRate))
			means[4] = append(means[4], fosa)

			style := FoldStyle(f.Style)
			indicators[0] = append(indicators[0], indicator(style == StyleAlways))
			indicators[1] = append(indicators[1], indicator(style == StyleNever))
			indicators[2] = append(indicators[2], indicator(style == StyleStopped))
			indicators[3] = append(indicators[3], indicator(style == StyleInconsistent))
		}

		r.MeanValue = ptr(weightedMean(means[0], weights))
		r.MeanAvailability = ptr(weightedMean(means[1], weights))
		r.OutlierRate = ptr(weightedMean(means[2], weights))
		r.ExtremeRate = ptr(weightedMean(means[3], weights))
		r.OutlierFOSA = ptr(weightedMean(means[4], weights))
		r.Always = zeroIfNaN(weightedMean(indicators[0], weights))
		r.Never = zeroIfNaN(weightedMean(indicators[1], weights))
		r.Stopped = zeroIfNaN(weightedMean(indicators[2], weights))
		r.Inconsistent = zeroIfNaN(weightedMean(indicators[3], weights))

		r.OutlierValues = safeRatio(float64(r.OutlierCount), float64(r.ReportingMonths))
		r.Zero = safeRatio(float64(r.ZeroCount), float64(r.ReportingMonths))
		out = append(out, r)
	}

	slices.SortFunc(out, func(a, b RollupStat) int {
		if c := cmp.Compare(a.OrgUnit, b.OrgUnit); c != 0 {
			return c
		}
		return a.Key.Compare(b.Key)
	})
	report.Groups = len(out)
	return out, report
}

// weightedMean averages the non-NaN values. When every weight of the
// defined values is 0 it falls back to the plain mean.
func weightedMean(values, weights []float64) float64 {
	var sum, wsum, plain float64
	n := 0
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v * weights[i]
		wsum += weights[i]
		plain += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	if wsum == 0 {
		return plain / float64(n)
	}
	return sum / wsum
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
