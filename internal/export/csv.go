package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"dqa/internal/dataset"
	"dqa/internal/quality"
)

// Column names of the exported tables, in the extraction's upper-case style.
var (
	RecordColumns = []string{
		"OU_UID", "DE_UID", "COC_UID", "PERIOD", "VALUE",
		"AVAILABILITY_BOOL", "OUTLIER_RS", "EXTREME_RS", "ZERO", "RS_SCORE", "BAND",
	}

	StyleColumns = []string{"OU_UID", "DE_UID", "COC_UID", "PERIODS", "REPORTING_STYLE"}

	FacilityColumns = []string{
		"OU_UID", "DE_UID", "COC_UID", "PERIODS", "REPORTING_MONTHS_COUNT",
		"OUTLIER_RS_COUNT", "EXTREME_RS_COUNT", "ZERO_COUNT",
		"VALUE", "AVAILABILITY_BOOL", "OUTLIER_RS", "EXTREME_RS", "ZERO", "OUTLIER_FOSA", "REPORTING_STYLE",
	}

	RollupColumns = []string{
		"OU_UID", "OU_NAME", "LEVEL", "DE_UID", "DE_NAME", "COC_UID", "COC_NAME",
		"FACILITIES", "REPORTING_MONTHS_COUNT", "OUTLIER_RS_COUNT", "ZERO_COUNT",
		"VALUE", "AVAILABILITY_BOOL", "OUTLIER_RS", "EXTREME_RS", "OUTLIER_FOSA",
		"OUTLIER_VALUES", "ZERO", "ALWAYS", "NEVER", "STOPPED", "INCONSISTENT",
	}
)

// WriteRecordsCSV writes the flagged value table.
func WriteRecordsCSV(w io.Writer, records []quality.QualityRecord) error {
	return writeCSV(w, RecordColumns, len(records), func(i int) []string {
		r := records[i]
		return []string{
			r.OrgUnit, r.DataElement, r.CategoryOptionCombo, r.Period, formatFloat(r.Value),
			r.Availability.String(), r.OutlierRS.String(), r.ExtremeRS.String(), r.Zero.String(),
			formatFloat(r.RSScore), r.Band,
		}
	})
}

// WriteStylesCSV writes one reporting style per series.
func WriteStylesCSV(w io.Writer, styles []quality.SeriesStyle) error {
	return writeCSV(w, StyleColumns, len(styles), func(i int) []string {
		s := styles[i]
		return []string{s.OrgUnit, s.Key.DataElement, s.Key.CategoryOptionCombo, strconv.Itoa(s.Periods), string(s.Style)}
	})
}

// WriteFacilitiesCSV writes the per-facility aggregate table.
func WriteFacilitiesCSV(w io.Writer, rows []quality.FacilityStat) error {
	return writeCSV(w, FacilityColumns, len(rows), func(i int) []string {
		f := rows[i]
		return []string{
			f.OrgUnit, f.Key.DataElement, f.Key.CategoryOptionCombo,
			strconv.Itoa(f.Periods), strconv.Itoa(f.ReportingMonths),
			strconv.Itoa(f.OutlierCount), strconv.Itoa(f.ExtremeCount), strconv.Itoa(f.ZeroCount),
			formatFloat(f.MeanValue), formatFloat(f.MeanAvailability),
			formatFloat(f.OutlierRate), formatFloat(f.ExtremeRate),
			fmtF(f.ZeroShare), f.OutlierFOSA.String(), string(f.Style),
		}
	})
}

// WriteRollupCSV writes the rollup table.
func WriteRollupCSV(w io.Writer, rows []quality.RollupStat) error {
	return writeCSV(w, RollupColumns, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.OrgUnit, r.OrgUnitName, strconv.Itoa(r.Level),
			r.Key.DataElement, r.DataElementName, r.Key.CategoryOptionCombo, r.COCName,
			strconv.Itoa(r.Facilities), strconv.Itoa(r.ReportingMonths),
			strconv.Itoa(r.OutlierCount), strconv.Itoa(r.ZeroCount),
			formatFloat(r.MeanValue), formatFloat(r.MeanAvailability),
			formatFloat(r.OutlierRate), formatFloat(r.ExtremeRate), formatFloat(r.OutlierFOSA),
			fmtF(r.OutlierValues), fmtF(r.Zero),
			fmtF(r.Always), fmtF(r.Never), fmtF(r.Stopped), fmtF(r.Inconsistent),
		}
	})
}

// WritePresentationCSV writes the wide presentation table: one row per
// (element key, statistic) with a column per rollup metric.
func WritePresentationCSV(w io.Writer, table quality.PresentationTable) error {
	header := append([]string{"DE_UID", "COC_UID", "AGG"}, table.Columns...)
	return writeCSV(w, header, len(table.Rows), func(i int) []string {
		row := table.Rows[i]
		out := make([]string, 0, len(header))
		out = append(out, row.Key.DataElement, row.Key.CategoryOptionCombo, row.Stat)
		for _, v := range row.Values {
			out = append(out, formatFloat(v))
		}
		return out
	})
}

func writeCSV(w io.Writer, header []string, n int, row func(int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatFloat renders a nullable number; nil is an empty cell.
func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtF(*v)
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// flagInt converts a flag to a nullable 0/1 column value.
func flagInt(f dataset.Flag) *int32 {
	if !f.Valid() {
		return nil
	}
	var v int32
	if f.IsTrue() {
		v = 1
	}
	return &v
}
