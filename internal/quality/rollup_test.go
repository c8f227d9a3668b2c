package quality

import (
	"math"
	"testing"

	"dqa/internal/dataset"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregateFacilities(t *testing.T) {
	key := dataset.ElementKey{DataElement: "de1"}
	recs := []QualityRecord{
		{OrgUnit: "F1", DataElement: "de1", Period: "202101", Value: dataset.Float64(5),
			Availability: dataset.FlagTrue, OutlierRS: dataset.FlagFalse, ExtremeRS: dataset.FlagFalse, Zero: dataset.FlagFalse},
		{OrgUnit: "F1", DataElement: "de1", Period: "202102", Value: dataset.Float64(0),
			Availability: dataset.FlagTrue, OutlierRS: dataset.FlagFalse, ExtremeRS: dataset.FlagFalse, Zero: dataset.FlagTrue},
		{OrgUnit: "F1", DataElement: "de1", Period: "202103", Availability: dataset.FlagFalse},
		{OrgUnit: "F1", DataElement: "de1", Period: "202104", Value: dataset.Float64(100),
			Availability: dataset.FlagTrue, OutlierRS: dataset.FlagTrue, ExtremeRS: dataset.FlagFalse, Zero: dataset.FlagFalse},
		{OrgUnit: "F2", DataElement: "de1", Period: "202101", Availability: dataset.FlagFalse},
	}
	styles := []SeriesStyle{
		{OrgUnit: "F1", Key: key, Style: StyleInconsistent},
		{OrgUnit: "F2", Key: key, Style: StyleNever},
	}

	got := AggregateFacilities(recs, styles, dataset.KeyDataElement)
	if len(got) != 2 {
		t.Fatalf("expected 2 facility rows, got %d", len(got))
	}

	f1 := got[0]
	if f1.OrgUnit != "F1" || f1.Periods != 4 || f1.ReportingMonths != 3 || f1.OutlierCount != 1 || f1.ZeroCount != 1 {
		t.Errorf("unexpected F1 counts %+v", f1)
	}
	if f1.MeanValue == nil || !approx(*f1.MeanValue, 35) {
		t.Errorf("expected mean value 35, got %v", f1.MeanValue)
	}
	if f1.MeanAvailability == nil || !approx(*f1.MeanAvailability, 0.75) {
		t.Errorf("expected mean availability 0.75, got %v", f1.MeanAvailability)
	}
	if f1.OutlierRate == nil || !approx(*f1.OutlierRate, 1.0/3) {
		t.Errorf("expected outlier rate 1/3, got %v", f1.OutlierRate)
	}
	if !approx(f1.ZeroShare, 1.0/3) || !f1.OutlierFOSA.IsTrue() || f1.Style != StyleInconsistent {
		t.Errorf("unexpected F1 derived fields %+v", f1)
	}

	f2 := got[1]
	if f2.MeanValue != nil || f2.OutlierRate != nil {
		t.Errorf("F2 has no values: means must be missing, got %+v", f2)
	}
	if f2.ZeroShare != 0 || f2.OutlierFOSA != dataset.FlagFalse {
		t.Errorf("unexpected F2 derived fields %+v", f2)
	}
}

func facility(ou string, months, outliers, zeros int, value float64, style ReportingStyle) FacilityStat {
	return FacilityStat{
		OrgUnit:          ou,
		Key:              dataset.ElementKey{DataElement: "de1"},
		ReportingMonths:  months,
		OutlierCount:     outliers,
		ZeroCount:        zeros,
		MeanValue:        dataset.Float64(value),
		MeanAvailability: dataset.Float64(float64(months) / 6),
		OutlierRate:      dataset.Float64(0),
		OutlierFOSA:      dataset.FlagOf(outliers > 0),
		Style:            style,
	}
}

func TestRollup(t *testing.T) {
	tree := testTree(t)
	facilities := []FacilityStat{
		facility("F1", 4, 1, 2, 10, StyleSinceFull),
		facility("F2", 2, 1, 0, 20, StyleStopped),
		facility("F3", 0, 0, 0, 0, StyleNever),
		facility("FX", 3, 0, 0, 1, StyleAlways), // unknown unit
	}

	rows, report := Rollup(facilities, tree, 2, WeightUnweighted)
	if len(rows) != 2 || report.Orphans != 1 {
		t.Fatalf("expected 2 groups and 1 orphan, got %d rows, report %+v", len(rows), report)
	}

	d1 := rows[0]
	if d1.OrgUnit != "D1" || d1.OrgUnitName != "Name D1" || d1.Facilities != 2 || d1.ReportingMonths != 6 {
		t.Errorf("unexpected D1 row %+v", d1)
	}
	if !approx(d1.OutlierValues, 2.0/6) || !approx(d1.Zero, 2.0/6) {
		t.Errorf("expected ratios 1/3, got outliers %v zero %v", d1.OutlierValues, d1.Zero)
	}
	if d1.MeanValue == nil || !approx(*d1.MeanValue, 15) {
		t.Errorf("expected unweighted mean 15, got %v", d1.MeanValue)
	}
	// SINCE_FULL counts as ALWAYS
	if d1.Always != 0.5 || d1.Stopped != 0.5 || d1.Never != 0 || d1.Inconsistent != 0 {
		t.Errorf("unexpected style indicators %+v", d1)
	}
	if d1.OutlierFOSA == nil || *d1.OutlierFOSA != 1 {
		t.Errorf("expected both facilities flagged, got %v", d1.OutlierFOSA)
	}
}

func TestRollup_ZeroDenominator(t *testing.T) {
	rows, _ := Rollup([]FacilityStat{
		facility("F1", 0, 0, 0, 0, StyleNever),
		facility("F2", 0, 0, 0, 0, StyleNever),
	}, testTree(t), 2, WeightUnweighted)

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	for name, v := range map[string]float64{"OUTLIER_VALUES": r.OutlierValues, "ZERO": r.Zero} {
		if v != 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s must be 0 without reporting months, got %v", name, v)
		}
	}
}

func TestRollup_WeightedByReportingMonths(t *testing.T) {
	facilities := []FacilityStat{
		facility("F1", 4, 0, 0, 10, StyleAlways),
		facility("F2", 2, 0, 0, 20, StyleAlways),
	}
	rows, _ := Rollup(facilities, testTree(t), 2, WeightReportingMonths)
	if got := *rows[0].MeanValue; !approx(got, 80.0/6) {
		t.Errorf("expected weighted mean 13.33, got %v", got)
	}

	// No weight at all falls back to the plain mean.
	rows, _ = Rollup([]FacilityStat{
		facility("F1", 0, 0, 0, 10, StyleNever),
		facility("F2", 0, 0, 0, 20, StyleNever),
	}, testTree(t), 2, WeightReportingMonths)
	if got := *rows[0].MeanValue; !approx(got, 15) {
		t.Errorf("expected fallback mean 15, got %v", got)
	}
}

func TestRollup_SameLevelAsFacilities(t *testing.T) {
	rows, _ := Rollup([]FacilityStat{facility("F1", 1, 0, 0, 3, StyleAlways)}, testTree(t), 3, WeightUnweighted)
	if len(rows) != 1 || rows[0].OrgUnit != "F1" {
		t.Errorf("rolling up to the facility level keeps the facility, got %+v", rows)
	}
}

func TestParseWeighting(t *testing.T) {
	if w, err := ParseWeighting(""); err != nil || w != WeightUnweighted {
		t.Errorf("got %v, %v", w, err)
	}
	if w, err := ParseWeighting("reporting_months"); err != nil || w != WeightReportingMonths {
		t.Errorf("got %v, %v", w, err)
	}
	if _, err := ParseWeighting("population"); err == nil {
		t.Error("expected an error")
	}
}

func TestLabeler(t *testing.T) {
	name := "Malaria cases"
	cat, err := dataset.NewCatalog([]dataset.CatalogEntry{{DataElement: "de1", CategoryOptionCombo: "coc1", DataSet: "ds1", DataElementName: &name}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rows := NewLabeler(cat).Label([]RollupStat{
		{Key: dataset.ElementKey{DataElement: "de1", CategoryOptionCombo: "coc1"}},
		{Key: dataset.ElementKey{DataElement: "de2"}},
	})
	if rows[0].DataElementName != name || rows[0].COCName != "coc1" {
		t.Errorf("unexpected labels %+v", rows[0])
	}
	if rows[1].DataElementName != "de2" || rows[1].COCName != "" {
		t.Errorf("unknown ids label as themselves, got %+v", rows[1])
	}
}

func TestPresent(t *testing.T) {
	rollup := []RollupStat{
		{OrgUnit: "D1", Key: dataset.ElementKey{DataElement: "de1"}, MeanValue: dataset.Float64(10), OutlierValues: 0.1},
		{OrgUnit: "D2", Key: dataset.ElementKey{DataElement: "de1"}, MeanValue: dataset.Float64(20), OutlierValues: 0.3},
		{OrgUnit: "D1", Key: dataset.ElementKey{DataElement: "de2"}, MeanValue: dataset.Float64(5)},
	}
	table := Present(rollup)

	if len(table.Rows) != 2*len(PresentationStats) {
		t.Fatalf("expected %d rows, got %d", 2*len(PresentationStats), len(table.Rows))
	}
	value := func(row PresentationRow, col string) *float64 {
		for i, c := range table.Columns {
			if c == col {
				return row.Values[i]
			}
		}
		t.Fatalf("unknown column %s", col)
		return nil
	}

	byStat := make(map[string]PresentationRow)
	for _, row := range table.Rows[:len(PresentationStats)] {
		byStat[row.Stat] = row
	}
	if v := value(byStat["mean"], "VALUE"); v == nil || *v != 15 {
		t.Errorf("expected mean VALUE 15, got %v", v)
	}
	if v := value(byStat["50%"], "VALUE"); v == nil || *v != 15 {
		t.Errorf("expected median VALUE 15, got %v", v)
	}
	if v := value(byStat["max"], "OUTLIER_VALUES"); v == nil || *v != 0.3 {
		t.Errorf("expected max OUTLIER_VALUES 0.3, got %v", v)
	}
	if v := value(byStat["mean"], "AVAILABILITY_BOOL"); v != nil {
		t.Errorf("an all-missing column has no mean, got %v", *v)
	}

	// A single rollup row has no sample deviation.
	last := table.Rows[len(table.Rows)-1]
	if last.Key.DataElement != "de2" || last.Stat != "std" || value(last, "VALUE") != nil {
		t.Errorf("unexpected last row %+v", last)
	}
}
