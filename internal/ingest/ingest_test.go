package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dqa/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const treeCSV = `OU_UID,OU_NAME,LEVEL,LEVEL_1_UID,LEVEL_1_NAME,LEVEL_2_UID,LEVEL_2_NAME,LEVEL_3_UID,LEVEL_3_NAME
C,Country,1,C,Country,,,,
D1,District 1,2,C,Country,D1,District 1,,
F1,Facility 1,3,C,Country,D1,District 1,F1,Facility 1
F2,Facility 2,03,C,Country,D1,District 1,F2,Facility 2
`

const catalogCSV = `DE_UID,COC_UID,DS_UID,CC_UID,DE_NAME
de1,coc1,ds1,cc1,Malaria cases
de2,coc1,ds1,,
`

const observationsCSV = "\xEF\xBB\xBFOU_UID,DE_UID,COC_UID,PERIOD,VALUE\n" +
	"F1,de1,coc1,202101,12\n" +
	"F1,de1,coc1,202102,\n" +
	"F2,de2,coc1,202101, 3.5 \n"

func TestReadObservations(t *testing.T) {
	obs, err := ReadObservations(strings.NewReader(observationsCSV), dataset.KeyDataElementCOC)
	require.NoError(t, err)
	require.Len(t, obs, 3)

	assert.Equal(t, "F1", obs[0].OrgUnit, "BOM must not leak into the first header")
	require.NotNil(t, obs[0].Value)
	assert.Equal(t, 12.0, *obs[0].Value)
	assert.Nil(t, obs[1].Value, "empty VALUE is a missing value")
	require.NotNil(t, obs[2].Value)
	assert.Equal(t, 3.5, *obs[2].Value)
}

func TestReadObservations_SchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		mode   dataset.KeyMode
		column string
	}{
		{"MissingValueColumn", "OU_UID,DE_UID,PERIOD\nF1,de1,202101\n", dataset.KeyDataElement, dataset.ColValue},
		{"MissingCOCColumnInCOCMode", "OU_UID,DE_UID,PERIOD,VALUE\nF1,de1,202101,1\n", dataset.KeyDataElementCOC, dataset.ColCategoryOptionCombo},
		{"NonNumericValue", "OU_UID,DE_UID,PERIOD,VALUE\nF1,de1,202101,twelve\n", dataset.KeyDataElement, dataset.ColValue},
		{"EmptyPeriod", "OU_UID,DE_UID,PERIOD,VALUE\nF1,de1,,1\n", dataset.KeyDataElement, dataset.ColPeriod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadObservations(strings.NewReader(tt.input), tt.mode)
			require.ErrorIs(t, err, dataset.ErrSchemaMismatch)
			var se *dataset.SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.column, se.Column)
		})
	}
}

func TestReadObservations_COCOptionalInDEMode(t *testing.T) {
	obs, err := ReadObservations(strings.NewReader("OU_UID,DE_UID,PERIOD,VALUE\nF1,de1,202101,1\n"), dataset.KeyDataElement)
	require.NoError(t, err)
	assert.Empty(t, obs[0].CategoryOptionCombo)
}

func TestReadTree(t *testing.T) {
	tree, err := ReadTree(strings.NewReader(treeCSV))
	require.NoError(t, err)

	assert.Equal(t, 4, tree.Len())
	assert.Equal(t, 3, tree.MaxLevel())

	f2, ok := tree.Unit("F2")
	require.True(t, ok)
	assert.Equal(t, 3, f2.Level, "leading zeros in LEVEL are decimal")
	district, ok := f2.AncestorAt(2)
	require.True(t, ok)
	assert.Equal(t, dataset.Ancestor{ID: "D1", Name: "District 1"}, district)
}

func TestReadTree_Errors(t *testing.T) {
	_, err := ReadTree(strings.NewReader("OU_UID,OU_NAME,LEVEL,LEVEL_1_UID\nF1,Facility,2,C\n"))
	require.ErrorIs(t, err, dataset.ErrSchemaMismatch, "LEVEL_2_UID is required for a level 2 unit")

	_, err = ReadTree(strings.NewReader("OU_UID,OU_NAME,LEVEL,LEVEL_1_UID\nC,Country,top,C\n"))
	require.ErrorIs(t, err, dataset.ErrSchemaMismatch)

	_, err = ReadTree(strings.NewReader(""))
	require.ErrorIs(t, err, dataset.ErrSchemaMismatch, "an empty file has no header")
}

func TestReadCatalog(t *testing.T) {
	assignments := "DS_UID,OU_UID\nds1,F1\n"
	cat, err := ReadCatalog(strings.NewReader(catalogCSV), strings.NewReader(assignments), dataset.KeyDataElement)
	require.NoError(t, err)

	entries := cat.Entries()
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].CategoryCombo)
	assert.Equal(t, "cc1", *entries[0].CategoryCombo)
	assert.Nil(t, entries[1].CategoryCombo, "empty optional cells stay absent")
	assert.Nil(t, entries[0].Domain, "absent optional columns stay absent")
	assert.Equal(t, "Malaria cases", cat.DataElementNames()["de1"])
	assert.Equal(t, []string{"F1"}, cat.UnitsFor("ds1"))

	_, err = ReadCatalog(strings.NewReader("DE_UID,COC_UID\nde1,coc1\n"), nil, dataset.KeyDataElement)
	assert.ErrorIs(t, err, dataset.ErrSchemaMismatch, "DS_UID is required")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write(ObservationsFile, observationsCSV)
	write(TreeFile, treeCSV)
	write(CatalogFile, catalogCSV)

	paths := DirPaths(dir)
	assert.Empty(t, paths.Assignments)

	ds, err := Load(context.Background(), paths, dataset.KeyDataElement)
	require.NoError(t, err)
	assert.Len(t, ds.Observations, 3)
	assert.Equal(t, 4, ds.Tree.Len())
	assert.False(t, ds.Catalog.HasAssignments())

	write(AssignmentsFile, "DS_UID,OU_UID\nds1,F2\n")
	ds, err = Load(context.Background(), DirPaths(dir), dataset.KeyDataElement)
	require.NoError(t, err)
	assert.True(t, ds.Catalog.HasAssignments())
}

func TestLoad_ReportsFailingTable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TreeFile), []byte(treeCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, CatalogFile), []byte(catalogCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ObservationsFile), []byte("OU_UID,DE_UID,PERIOD\n"), 0644))

	_, err := Load(context.Background(), DirPaths(dir), dataset.KeyDataElement)
	require.ErrorIs(t, err, dataset.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), ObservationsFile)
}
