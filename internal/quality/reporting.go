package quality

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"dqa/internal/dataset"
	"dqa/internal/period"
)

// ReportingStyle is the reporting pattern of one facility/element series.
type ReportingStyle string

const (
	StyleAlways       ReportingStyle = "ALWAYS"
	StyleNever        ReportingStyle = "NEVER"
	StyleSinceFull    ReportingStyle = "SINCE_FULL"
	StyleStopped      ReportingStyle = "STOPPED"
	StyleInconsistent ReportingStyle = "INCONSISTENT"
)

// Styles lists the reporting styles in precedence order.
var Styles = []ReportingStyle{StyleAlways, StyleNever, StyleSinceFull, StyleStopped, StyleInconsistent}

// ParseReportingStyle parses a style name, case-insensitively.
func ParseReportingStyle(s string) (ReportingStyle, error) {
	for _, st := range Styles {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown reporting style %q", s)
}

// ClassifySeries classifies a period-ordered availability series. The first
// matching rule wins: ALWAYS, NEVER, SINCE_FULL (non-decreasing), STOPPED
// (non-increasing), INCONSISTENT. An empty series is ALWAYS.
func ClassifySeries(series []bool) ReportingStyle {
	all, none := true, true
	increasing, decreasing := true, true
	for i, v := range series {
		if v {
			none = false
		} else {
			all = false
		}
		if i > 0 {
			prev := series[i-1]
			if prev && !v {
				increasing = false
			}
			if !prev && v {
				decreasing = false
			}
		}
	}

	switch {
	case all:
		return StyleAlways
	case none:
		return StyleNever
	case increasing:
		return StyleSinceFull
	case decreasing:
		return StyleStopped
	default:
		return StyleInconsistent
	}
}

// SeriesStyle is the classification of one (OU, element key) series.
type SeriesStyle struct {
	OrgUnit string             `json:"ou"`
	Key     dataset.ElementKey `json:"key"`
	Periods int                `json:"periods"`
	Style   ReportingStyle     `json:"style"`
}

// ClassifyReporting groups availability records by (OU, element key), sorts
// each series by period and classifies it. Output is ordered by OU then key.
func ClassifyReporting(records []QualityRecord, mode dataset.KeyMode) []SeriesStyle {
	type point struct {
		period    string
		available bool
	}
	series := make(map[unitKey][]point)
	for _, r := range records {
		k := unitKey{OrgUnit: r.OrgUnit, Key: r.Key(mode)}
		series[k] = append(series[k], point{period: r.Period, available: r.Availability.IsTrue()})
	}

	out := make([]SeriesStyle, 0, len(series))
	for k, points := range series {
		slices.SortStableFunc(points, func(a, b point) int { return period.Compare(a.period, b.period) })
		bools := make([]bool, len(points))
		for i, p := range points {
			bools[i] = p.available
		}
		out = append(out, SeriesStyle{OrgUnit: k.OrgUnit, Key: k.Key, Periods: len(points), Style: ClassifySeries(bools)})
	}

	slices.SortFunc(out, func(a, b SeriesStyle) int {
		if c := cmp.Compare(a.OrgUnit, b.OrgUnit); c != 0 {
			return c
		}
		return a.Key.Compare(b.Key)
	})
	return out
}
