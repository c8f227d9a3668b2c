package export

import (
	"fmt"
	"os"

	"dqa/internal/quality"

	"github.com/parquet-go/parquet-go"
)

// RecordRow is the Parquet layout of a quality record. Nullable columns are
// optional so missing flags stay distinguishable from 0.
type RecordRow struct {
	OrgUnit             string   `parquet:"ou_uid"`
	DataElement         string   `parquet:"de_uid"`
	CategoryOptionCombo string   `parquet:"coc_uid"`
	Period              string   `parquet:"period"`
	Value               *float64 `parquet:"value,optional"`
	Availability        *int32   `parquet:"availability_bool,optional"`
	OutlierRS           *int32   `parquet:"outlier_rs,optional"`
	ExtremeRS           *int32   `parquet:"extreme_rs,optional"`
	Zero                *int32   `parquet:"zero,optional"`
	RSScore             *float64 `parquet:"rs_score,optional"`
	Band                string   `parquet:"band"`
}

// RollupRow is the Parquet layout of a rollup row.
type RollupRow struct {
	OrgUnit          string   `parquet:"ou_uid"`
	OrgUnitName      string   `parquet:"ou_name"`
	Level            int32    `parquet:"level"`
	DataElement      string   `parquet:"de_uid"`
	DataElementName  string   `parquet:"de_name"`
	COC              string   `parquet:"coc_uid"`
	COCName          string   `parquet:"coc_name"`
	Facilities       int32    `parquet:"facilities"`
	ReportingMonths  int32    `parquet:"reporting_months_count"`
	OutlierCount     int32    `parquet:"outlier_rs_count"`
	ZeroCount        int32    `parquet:"zero_count"`
	MeanValue        *float64 `parquet:"value,optional"`
	MeanAvailability *float64 `parquet:"availability_bool,optional"`
	OutlierRate      *float64 `parquet:"outlier_rs,optional"`
	ExtremeRate      *float64 `parquet:"extreme_rs,optional"`
	OutlierFOSA      *float64 `parquet:"outlier_fosa,optional"`
	OutlierValues    float64  `parquet:"outlier_values"`
	Zero             float64  `parquet:"zero"`
	Always           float64  `parquet:"always"`
	Never            float64  `parquet:"never"`
	Stopped          float64  `parquet:"stopped"`
	Inconsistent     float64  `parquet:"inconsistent"`
}

// RecordRows converts quality records to their Parquet layout.
func RecordRows(records []quality.QualityRecord) []RecordRow {
	out := make([]RecordRow, len(records))
	for i, r := range records {
		out[i] = RecordRow{
			OrgUnit:             r.OrgUnit,
			DataElement:         r.DataElement,
			CategoryOptionCombo: r.CategoryOptionCombo,
			Period:              r.Period,
			Value:               r.Value,
			Availability:        flagInt(r.Availability),
			OutlierRS:           flagInt(r.OutlierRS),
			ExtremeRS:           flagInt(r.ExtremeRS),
			Zero:                flagInt(r.Zero),
			RSScore:             r.RSScore,
			Band:                r.Band,
		}
	}
	return out
}

// RollupRows converts rollup rows to their Parquet layout.
func RollupRows(rows []quality.RollupStat) []RollupRow {
	out := make([]RollupRow, len(rows))
	for i, r := range rows {
		out[i] = RollupRow{
			OrgUnit:          r.OrgUnit,
			OrgUnitName:      r.OrgUnitName,
			Level:            int32(r.Level),
			DataElement:      r.Key.DataElement,
			DataElementName:  r.DataElementName,
			COC:              r.Key.CategoryOptionCombo,
			COCName:          r.COCName,
			Facilities:       int32(r.Facilities),
			ReportingMonths:  int32(r.ReportingMonths),
			OutlierCount:     int32(r.OutlierCount),
			ZeroCount:        int32(r.ZeroCount),
			MeanValue:        r.MeanValue,
			MeanAvailability: r.MeanAvailability,
			OutlierRate:      r.OutlierRate,
			ExtremeRate:      r.ExtremeRate,
			OutlierFOSA:      r.OutlierFOSA,
			OutlierValues:    r.OutlierValues,
			Zero:             r.Zero,
			Always:           r.Always,
			Never:            r.Never,
			Stopped:          r.Stopped,
			Inconsistent:     r.Inconsistent,
		}
	}
	return out
}

// WriteParquet writes rows to a Snappy-compressed Parquet file.
func WriteParquet[T any](path string, rows []T) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[T](file,
		parquet.Compression(&parquet.Snappy),
		parquet.CreatedBy("dqa", "1.0", ""),
	)
	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		file.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return file.Close()
}
