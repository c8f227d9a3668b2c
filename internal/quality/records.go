package quality

import (
	"errors"
	"math"

	"dqa/internal/dataset"
)

var (
	// ErrSchemaMismatch is returned (wrapped in a dataset.SchemaError) when an
	// input table is structurally unusable.
	ErrSchemaMismatch = dataset.ErrSchemaMismatch
	// ErrStageOrder is returned when a stage is requested before its predecessor ran.
	ErrStageOrder = errors.New("pipeline stage called out of order")
	// ErrEmptyInput is returned when a run has no tree, catalog or period set.
	ErrEmptyInput = errors.New("empty pipeline input")
)

// QualityRecord is the per-observation output row. Records are values: every
// stage returns a new slice and never edits the rows it received.
type QualityRecord struct {
	OrgUnit             string   `json:"ou"`
	DataElement         string   `json:"de"`
	CategoryOptionCombo string   `json:"coc,omitempty"`
	Period              string   `json:"pe"`
	Value               *float64 `json:"value"`

	Availability dataset.Flag `json:"availability"` // AVAILABILITY_BOOL
	OutlierRS    dataset.Flag `json:"outlierRS"`    // OUTLIER_RS
	ExtremeRS    dataset.Flag `json:"extremeRS"`    // EXTREME_RS
	Zero         dataset.Flag `json:"zero"`         // ZERO

	RSScore *float64 `json:"rsScore,omitempty"`
	Band    string   `json:"band,omitempty"`
}

// HasValue reports whether the record carries a usable number.
func (r QualityRecord) HasValue() bool {
	return r.Value != nil && !math.IsNaN(*r.Value)
}

// Key returns the record's element key under a key mode.
func (r QualityRecord) Key(mode dataset.KeyMode) dataset.ElementKey {
	return mode.Key(r.DataElement, r.CategoryOptionCombo)
}

// recordFromObservation starts a quality record with every flag missing.
func recordFromObservation(o dataset.Observation) QualityRecord {
	r := QualityRecord{
		OrgUnit:             o.OrgUnit,
		DataElement:         o.DataElement,
		CategoryOptionCombo: o.CategoryOptionCombo,
		Period:              o.Period,
	}
	if o.Value != nil {
		v := *o.Value
		r.Value = &v
	}
	return r
}

// unitKey groups rows by organisation unit and element key.
type unitKey struct {
	OrgUnit string
	Key     dataset.ElementKey
}

// cellKey is the full join key of the availability stage.
type cellKey struct {
	OrgUnit string
	Key     dataset.ElementKey
	Period  string
}

func ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
