package quality

import (
	"fmt"
	"slices"
	"testing"

	"dqa/internal/dataset"
)

// testTree is a three level hierarchy:
//
//	C
//	├── D1: F1, F2
//	└── D2: F3
func testTree(t *testing.T) *dataset.Tree {
	t.Helper()
	anc := func(ids ...string) []dataset.Ancestor {
		out := make([]dataset.Ancestor, len(ids))
		for i, id := range ids {
			out[i] = dataset.Ancestor{ID: id, Name: "Name " + id}
		}
		return out
	}
	tree, err := dataset.NewTree([]dataset.OrgUnit{
		{ID: "C", Name: "Name C", Level: 1, Ancestors: anc("C")},
		{ID: "D1", Name: "Name D1", Level: 2, Ancestors: anc("C", "D1")},
		{ID: "D2", Name: "Name D2", Level: 2, Ancestors: anc("C", "D2")},
		{ID: "F1", Name: "Name F1", Level: 3, Ancestors: anc("C", "D1", "F1")},
		{ID: "F2", Name: "Name F2", Level: 3, Ancestors: anc("C", "D1", "F2")},
		{ID: "F3", Name: "Name F3", Level: 3, Ancestors: anc("C", "D2", "F3")},
	})
	if err != nil {
		t.Fatalf("test tree: %v", err)
	}
	return tree
}

func testCatalog(t *testing.T, des ...string) *dataset.Catalog {
	t.Helper()
	entries := make([]dataset.CatalogEntry, len(des))
	for i, de := range des {
		entries[i] = dataset.CatalogEntry{DataElement: de, CategoryOptionCombo: "coc1", DataSet: "ds1"}
	}
	cat, err := dataset.NewCatalog(entries, nil)
	if err != nil {
		t.Fatalf("test catalog: %v", err)
	}
	return cat
}

func ob(ou, de, pe string, v float64) dataset.Observation {
	return dataset.Observation{OrgUnit: ou, DataElement: de, CategoryOptionCombo: "coc1", Period: pe, Value: dataset.Float64(v)}
}

func missingOb(ou, de, pe string) dataset.Observation {
	return dataset.Observation{OrgUnit: ou, DataElement: de, CategoryOptionCombo: "coc1", Period: pe}
}

// series builds one observation per value for consecutive months of 2021.
func series(ou, de string, values ...float64) []dataset.Observation {
	out := make([]dataset.Observation, len(values))
	for i, v := range values {
		out[i] = ob(ou, de, fmt.Sprintf("2021%02d", i+1), v)
	}
	return out
}

// recordTuples renders records as sorted comparable strings.
func recordTuples(recs []QualityRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		value := "-"
		if r.Value != nil {
			value = fmt.Sprint(*r.Value)
		}
		out[i] = fmt.Sprintf("%s|%s|%s|%s|%s|a%s|o%s|e%s|z%s|%s",
			r.OrgUnit, r.DataElement, r.CategoryOptionCombo, r.Period, value,
			r.Availability, r.OutlierRS, r.ExtremeRS, r.Zero, r.Band)
	}
	slices.Sort(out)
	return out
}
