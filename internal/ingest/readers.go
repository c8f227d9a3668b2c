package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"dqa/internal/dataset"

	"github.com/spf13/cast"
)

// ReadObservations parses the observations table
// {OU_UID, DE_UID, COC_UID, PERIOD, VALUE}. COC_UID is required in DE_COC
// mode only. An empty VALUE is a missing value; a non-numeric one is a
// schema error.
func ReadObservations(r io.Reader, mode dataset.KeyMode) ([]dataset.Observation, error) {
	t, err := openTable(r, "observations")
	if err != nil {
		return nil, err
	}

	ouIdx, err := t.column(dataset.ColOrgUnit, true)
	if err != nil {
		return nil, err
	}
	deIdx, err := t.column(dataset.ColDataElement, true)
	if err != nil {
		return nil, err
	}
	cocIdx, err := t.column(dataset.ColCategoryOptionCombo, mode.UsesCOC())
	if err != nil {
		return nil, err
	}
	peIdx, err := t.column(dataset.ColPeriod, true)
	if err != nil {
		return nil, err
	}
	valIdx, err := t.column(dataset.ColValue, true)
	if err != nil {
		return nil, err
	}

	var obs []dataset.Observation
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		o := dataset.Observation{
			OrgUnit:             cell(rec, ouIdx),
			DataElement:         cell(rec, deIdx),
			CategoryOptionCombo: cell(rec, cocIdx),
			Period:              cell(rec, peIdx),
		}
		if raw := cell(rec, valIdx); raw != "" {
			v, err := cast.ToFloat64E(raw)
			if err != nil {
				return nil, &dataset.SchemaError{Table: t.name, Column: dataset.ColValue, Row: t.row, Reason: fmt.Sprintf("non-numeric value %q", raw)}
			}
			o.Value = &v
		}
		obs = append(obs, o)
	}

	if err := dataset.ValidateObservations(obs, mode); err != nil {
		return nil, err
	}
	return obs, nil
}

// ReadTree parses the organisation unit table
// {OU_UID, OU_NAME, LEVEL, LEVEL_1_UID..LEVEL_N_UID, LEVEL_1_NAME..LEVEL_N_NAME}.
func ReadTree(r io.Reader) (*dataset.Tree, error) {
	t, err := openTable(r, "tree")
	if err != nil {
		return nil, err
	}

	ouIdx, err := t.column(dataset.ColOrgUnit, true)
	if err != nil {
		return nil, err
	}
	nameIdx, err := t.column(dataset.ColOrgUnitName, true)
	if err != nil {
		return nil, err
	}
	levelIdx, err := t.column(dataset.ColLevel, true)
	if err != nil {
		return nil, err
	}

	var units []dataset.OrgUnit
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		raw := cell(rec, levelIdx)
		// cast parses base 0: a leading zero would read as octal
		level, err := cast.ToIntE(strings.TrimLeft(raw, "0"))
		if err != nil || level < 1 {
			return nil, &dataset.SchemaError{Table: t.name, Column: dataset.ColLevel, Row: t.row, Reason: fmt.Sprintf("invalid level %q", raw)}
		}

		u := dataset.OrgUnit{
			ID:        cell(rec, ouIdx),
			Name:      cell(rec, nameIdx),
			Level:     level,
			Ancestors: make([]dataset.Ancestor, level),
		}
		for k := 1; k <= level; k++ {
			uidIdx, err := t.column(dataset.LevelUIDColumn(k), true)
			if err != nil {
				return nil, err
			}
			nIdx, _ := t.column(dataset.LevelNameColumn(k), false)
			u.Ancestors[k-1] = dataset.Ancestor{ID: cell(rec, uidIdx), Name: cell(rec, nIdx)}
		}
		units = append(units, u)
	}

	return dataset.NewTree(units)
}

// ReadCatalog parses the data element catalog
// {DE_UID, COC_UID, DS_UID, optional CC_UID, DOMAIN, DE_NAME, COC_NAME} and,
// when assignments is not nil, the data set assignments {DS_UID, OU_UID}.
func ReadCatalog(r io.Reader, assignments io.Reader, mode dataset.KeyMode) (*dataset.Catalog, error) {
	t, err := openTable(r, "catalog")
	if err != nil {
		return nil, err
	}

	deIdx, err := t.column(dataset.ColDataElement, true)
	if err != nil {
		return nil, err
	}
	cocIdx, err := t.column(dataset.ColCategoryOptionCombo, mode.UsesCOC())
	if err != nil {
		return nil, err
	}
	dsIdx, err := t.column(dataset.ColDataSet, true)
	if err != nil {
		return nil, err
	}
	ccIdx, _ := t.column(dataset.ColCategoryCombo, false)
	domainIdx, _ := t.column(dataset.ColDomain, false)
	deNameIdx, _ := t.column(dataset.ColDataElementName, false)
	cocNameIdx, _ := t.column(dataset.ColCOCName, false)

	var entries []dataset.CatalogEntry
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, dataset.CatalogEntry{
			DataElement:         cell(rec, deIdx),
			CategoryOptionCombo: cell(rec, cocIdx),
			DataSet:             cell(rec, dsIdx),
			CategoryCombo:       optional(rec, ccIdx),
			Domain:              optional(rec, domainIdx),
			DataElementName:     optional(rec, deNameIdx),
			COCName:             optional(rec, cocNameIdx),
		})
	}

	var assigned []dataset.Assignment
	if assignments != nil {
		if assigned, err = readAssignments(assignments); err != nil {
			return nil, err
		}
	}
	return dataset.NewCatalog(entries, assigned)
}

func readAssignments(r io.Reader) ([]dataset.Assignment, error) {
	t, err := openTable(r, "assignments")
	if err != nil {
		return nil, err
	}
	dsIdx, err := t.column(dataset.ColDataSet, true)
	if err != nil {
		return nil, err
	}
	ouIdx, err := t.column(dataset.ColOrgUnit, true)
	if err != nil {
		return nil, err
	}

	var out []dataset.Assignment
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, dataset.Assignment{DataSet: cell(rec, dsIdx), OrgUnit: cell(rec, ouIdx)})
	}
	return out, nil
}
