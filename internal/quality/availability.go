package quality

import (
	"cmp"
	"slices"

	"dqa/internal/dataset"
)

// ExpectedCell is one (organisation unit, element key, period) combination
// that should carry a value.
type ExpectedCell struct {
	OrgUnit string             `json:"ou"`
	Key     dataset.ElementKey `json:"key"`
	Period  string             `json:"pe"`
}

// BuildExpectedTree crosses the catalog's element keys with the facility
// units expected to report them and with the period set.
//
// With data set assignments, a key is expected from the facility-level units
// its data sets are assigned to. Without assignments, every facility-level
// unit of the tree is expected to report every key.
func BuildExpectedTree(tree *dataset.Tree, catalog *dataset.Catalog, mode dataset.KeyMode, facilityLevel int, periods []string) []ExpectedCell {
	facilities := tree.AtLevel(facilityLevel)
	facilityIDs := make([]string, len(facilities))
	isFacility := make(map[string]bool, len(facilities))
	for i, u := range facilities {
		facilityIDs[i] = u.ID
		isFacility[u.ID] = true
	}

	var pairs []unitKey
	for _, key := range catalog.Keys(mode) {
		if !catalog.HasAssignments() {
			for _, ou := range facilityIDs {
				pairs = append(pairs, unitKey{OrgUnit: ou, Key: key})
			}
			continue
		}
		seen := make(map[string]bool)
		for _, ds := range catalog.DataSetsFor(mode, key) {
			for _, ou := range catalog.UnitsFor(ds) {
				if isFacility[ou] && !seen[ou] {
					seen[ou] = true
					pairs = append(pairs, unitKey{OrgUnit: ou, Key: key})
				}
			}
		}
	}

	slices.SortFunc(pairs, func(a, b unitKey) int {
		if c := cmp.Compare(a.OrgUnit, b.OrgUnit); c != 0 {
			return c
		}
		return a.Key.Compare(b.Key)
	})

	cells := make([]ExpectedCell, 0, len(pairs)*len(periods))
	for _, p := range pairs {
		for _, pe := range periods {
			cells = append(cells, ExpectedCell{OrgUnit: p.OrgUnit, Key: p.Key, Period: pe})
		}
	}
	return cells
}

// AvailabilityReport counts the observations the join did not keep.
type AvailabilityReport struct {
	ExpectedCells int `json:"expectedCells"`
	Available     int `json:"available"`
	// Dropped observations matched no expected cell.
	Dropped int `json:"dropped"`
}

// EvaluateAvailability left-joins the expected tree with flagged records on
// (OU, element key, PERIOD). The tree drives cardinality: an expected cell
// without a matching record yields a row with a missing value and
// availability 0, and records matching no cell are dropped. A cell matched by
// several records yields one row per record.
func EvaluateAvailability(expected []ExpectedCell, flagged []QualityRecord, mode dataset.KeyMode) ([]QualityRecord, AvailabilityReport) {
	index := make(map[cellKey][]int, len(flagged))
	for i, r := range flagged {
		k := cellKey{OrgUnit: r.OrgUnit, Key: r.Key(mode), Period: r.Period}
		index[k] = append(index[k], i)
	}

	report := AvailabilityReport{ExpectedCells: len(expected)}
	used := make([]bool, len(flagged))
	out := make([]QualityRecord, 0, len(expected))
	for _, cell := range expected {
		matches := index[cellKey{OrgUnit: cell.OrgUnit, Key: cell.Key, Period: cell.Period}]
		if len(matches) == 0 {
			out = append(out, QualityRecord{
				OrgUnit:             cell.OrgUnit,
				DataElement:         cell.Key.DataElement,
				CategoryOptionCombo: cell.Key.CategoryOptionCombo,
				Period:              cell.Period,
				Availability:        dataset.FlagFalse,
			})
			continue
		}
		for _, i := range matches {
			used[i] = true
			r := flagged[i]
			r.Availability = dataset.FlagOf(r.HasValue())
			if r.Availability.IsTrue() {
				report.Available++
			}
			out = append(out, r)
		}
	}

	for _, u := range used {
		if !u {
			report.Dropped++
		}
	}
	return out, report
}

// MissingCatalogEntries returns the element keys observed but absent from
// the catalog, sorted. Their observations are excluded from availability
// scoring; this reflects upstream metadata completeness and is not an error.
func MissingCatalogEntries(obs []dataset.Observation, catalog *dataset.Catalog, mode dataset.KeyMode) []dataset.ElementKey {
	known := make(map[dataset.ElementKey]bool)
	for _, k := range catalog.Keys(mode) {
		known[k] = true
	}
	missing := make(map[dataset.ElementKey]bool)
	for _, o := range obs {
		k := mode.KeyOf(o)
		if !known[k] {
			missing[k] = true
		}
	}
	keys := make([]dataset.ElementKey, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, dataset.ElementKey.Compare)
	return keys
}
