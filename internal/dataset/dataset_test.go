package dataset

import (
	"encoding/json"
	"errors"
	"testing"
)

func chain(ids ...string) []Ancestor {
	out := make([]Ancestor, len(ids))
	for i, id := range ids {
		out[i] = Ancestor{ID: id, Name: id + "-name"}
	}
	return out
}

func TestNewTree(t *testing.T) {
	units := []OrgUnit{
		{ID: "C", Name: "Country", Level: 1, Ancestors: chain("C")},
		{ID: "D1", Name: "District 1", Level: 2, Ancestors: chain("C", "D1")},
		{ID: "F1", Name: "Facility 1", Level: 3, Ancestors: chain("C", "D1", "F1")},
		{ID: "F2", Name: "Facility 2", Level: 3, Ancestors: chain("C", "D1", "F2")},
	}

	tree, err := NewTree(units)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tree.MaxLevel() != 3 {
		t.Errorf("expected max level 3, got %d", tree.MaxLevel())
	}
	if got := len(tree.AtLevel(3)); got != 2 {
		t.Errorf("expected 2 facilities, got %d", got)
	}

	f1, ok := tree.Unit("F1")
	if !ok {
		t.Fatal("F1 not found")
	}
	district, ok := f1.AncestorAt(2)
	if !ok || district.ID != "D1" {
		t.Errorf("expected level 2 ancestor D1, got %+v", district)
	}
	if _, ok := f1.AncestorAt(4); ok {
		t.Error("expected no ancestor below the unit's own level")
	}
	if tree.Name("D1") != "District 1" || tree.Name("unknown") != "unknown" {
		t.Error("unexpected name resolution")
	}
}

func TestNewTree_Invariants(t *testing.T) {
	tests := []struct {
		name  string
		units []OrgUnit
	}{
		{"ShortChain", []OrgUnit{{ID: "F", Level: 3, Ancestors: chain("C", "F")}}},
		{"ChainNotEndingWithSelf", []OrgUnit{{ID: "F", Level: 2, Ancestors: chain("C", "X")}}},
		{"AncestorAtWrongLevel", []OrgUnit{
			{ID: "C", Level: 1, Ancestors: chain("C")},
			{ID: "D", Level: 2, Ancestors: chain("C", "D")},
			{ID: "F", Level: 3, Ancestors: chain("D", "C", "F")},
		}},
		{"Duplicate", []OrgUnit{
			{ID: "C", Level: 1, Ancestors: chain("C")},
			{ID: "C", Level: 1, Ancestors: chain("C")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTree(tt.units)
			if !errors.Is(err, ErrSchemaMismatch) {
				t.Fatalf("expected schema mismatch, got %v", err)
			}
			var se *SchemaError
			if !errors.As(err, &se) || se.Table != "tree" {
				t.Errorf("expected a tree SchemaError, got %v", err)
			}
		})
	}
}

func TestParseKeyMode(t *testing.T) {
	tests := []struct {
		in   string
		want KeyMode
	}{
		{"DE", KeyDataElement},
		{"", KeyDataElement},
		{"de_uid", KeyDataElement},
		{"DE_COC", KeyDataElementCOC},
		{"DE_UID, COC_UID", KeyDataElementCOC},
	}
	for _, tt := range tests {
		got, err := ParseKeyMode(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseKeyMode(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseKeyMode("OU"); err == nil {
		t.Error("expected an error for an unknown key mode")
	}
}

func TestKeyMode_Key(t *testing.T) {
	if k := KeyDataElement.Key("de1", "coc1"); k.CategoryOptionCombo != "" || k.String() != "de1" {
		t.Errorf("DE mode must drop the COC, got %+v", k)
	}
	if k := KeyDataElementCOC.Key("de1", "coc1"); k.String() != "de1.coc1" {
		t.Errorf("unexpected DE_COC key %s", k)
	}
}

func TestValidateObservations(t *testing.T) {
	obs := []Observation{
		{OrgUnit: "F1", DataElement: "de1", Period: "202101", Value: Float64(3)},
		{OrgUnit: "F1", DataElement: "de1", Period: "202102"},
	}
	if err := ValidateObservations(obs, KeyDataElement); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := ValidateObservations(obs, KeyDataElementCOC)
	var se *SchemaError
	if !errors.As(err, &se) || se.Column != ColCategoryOptionCombo || se.Row != 1 {
		t.Errorf("expected a COC_UID schema error on row 1, got %v", err)
	}
}

func TestFlag_JSON(t *testing.T) {
	flags := []Flag{FlagMissing, FlagFalse, FlagTrue}
	data, err := json.Marshal(flags)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[null,0,1]" {
		t.Errorf("unexpected encoding %s", data)
	}

	var back []Flag
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	for i := range flags {
		if back[i] != flags[i] {
			t.Errorf("flag %d: got %v, want %v", i, back[i], flags[i])
		}
	}
}

func TestCatalog(t *testing.T) {
	name := "Malaria cases"
	cat, err := NewCatalog([]CatalogEntry{
		{DataElement: "de1", CategoryOptionCombo: "cocA", DataSet: "ds1", DataElementName: &name},
		{DataElement: "de1", CategoryOptionCombo: "cocB", DataSet: "ds1"},
		{DataElement: "de2", CategoryOptionCombo: "cocA", DataSet: "ds2"},
	}, []Assignment{{DataSet: "ds1", OrgUnit: "F1"}})
	if err != nil {
		t.Fatal(err)
	}

	if got := len(cat.Keys(KeyDataElement)); got != 2 {
		t.Errorf("expected 2 DE keys, got %d", got)
	}
	if got := len(cat.Keys(KeyDataElementCOC)); got != 3 {
		t.Errorf("expected 3 DE_COC keys, got %d", got)
	}
	if ds := cat.DataSetsFor(KeyDataElement, ElementKey{DataElement: "de1"}); len(ds) != 1 || ds[0] != "ds1" {
		t.Errorf("unexpected data sets %v", ds)
	}
	if !cat.HasAssignments() || len(cat.UnitsFor("ds1")) != 1 {
		t.Error("expected ds1 to be assigned to one unit")
	}
	if cat.DataElementNames()["de1"] != name {
		t.Error("expected the optional DE name to be indexed")
	}

	filtered := cat.Filter(map[string]bool{"de2": true})
	if len(filtered.Entries()) != 1 || !filtered.HasAssignments() {
		t.Error("filter must keep matching entries and the assignments")
	}
}
