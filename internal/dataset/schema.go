package dataset

import (
	"errors"
	"fmt"
)

// Column names of the extraction tables.
const (
	ColOrgUnit             = "OU_UID"
	ColOrgUnitName         = "OU_NAME"
	ColLevel               = "LEVEL"
	ColDataElement         = "DE_UID"
	ColDataElementName     = "DE_NAME"
	ColCategoryOptionCombo = "COC_UID"
	ColCOCName             = "COC_NAME"
	ColCategoryCombo       = "CC_UID"
	ColDataSet             = "DS_UID"
	ColDomain              = "DOMAIN"
	ColPeriod              = "PERIOD"
	ColValue               = "VALUE"
)

// LevelUIDColumn returns the LEVEL_k_UID column name.
func LevelUIDColumn(k int) string { return fmt.Sprintf("LEVEL_%d_UID", k) }

// LevelNameColumn returns the LEVEL_k_NAME column name.
func LevelNameColumn(k int) string { return fmt.Sprintf("LEVEL_%d_NAME", k) }

// ErrSchemaMismatch marks structural input errors. They are fatal: no stage
// runs on an input that fails schema validation.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaError describes a structural problem in one input table.
type SchemaError struct {
	Table  string
	Column string
	Row    int // 1-based data row, 0 when the problem is table-wide
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s: row %d column %s: %s", e.Table, e.Row, e.Column, e.Reason)
	}
	if e.Column != "" {
		return fmt.Sprintf("%s: column %s: %s", e.Table, e.Column, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Reason)
}

// Unwrap lets errors.Is match ErrSchemaMismatch.
func (e *SchemaError) Unwrap() error { return ErrSchemaMismatch }

// ValidateObservations checks the identity columns required by the key mode.
func ValidateObservations(obs []Observation, mode KeyMode) error {
	for i, o := range obs {
		row := i + 1
		switch {
		case o.OrgUnit == "":
			return &SchemaError{Table: "observations", Column: ColOrgUnit, Row: row, Reason: "empty identifier"}
		case o.DataElement == "":
			return &SchemaError{Table: "observations", Column: ColDataElement, Row: row, Reason: "empty identifier"}
		case o.Period == "":
			return &SchemaError{Table: "observations", Column: ColPeriod, Row: row, Reason: "empty identifier"}
		case mode.UsesCOC() && o.CategoryOptionCombo == "":
			return &SchemaError{Table: "observations", Column: ColCategoryOptionCombo, Row: row, Reason: "required by key mode DE_COC"}
		}
	}
	return nil
}
