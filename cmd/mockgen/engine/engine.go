package engine

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"dqa/internal/dataset"
	"dqa/internal/ingest"
	"dqa/internal/period"
)

type GeneratorConfig struct {
	Scenario     string // "mild", "chaos" or "drift"
	Distribution string // "uniform" or "weibull"
	Districts    int
	Facilities   int // per district
	Elements     int
	Start        string // first period, e.g. 202101
	End          string // last period
	Seed         int64
}

// Extraction is a generated extraction, shaped like the CSV input tables.
type Extraction struct {
	Units        []dataset.OrgUnit
	Catalog      []dataset.CatalogEntry
	Assignments  []dataset.Assignment
	Observations []dataset.Observation
}

const (
	countryID = "CTRY0000001"
	dataSetID = "DSMONTHLY01"
	defaultCC = "CCDEFAULT01"
	cocID     = "COCDEFAULT1"
)

func Generate(cfg GeneratorConfig) (*Extraction, error) {
	periods, err := period.Split(cfg.Start, cfg.End, period.Monthly)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	ext := &Extraction{}

	// 1. Hierarchy: country -> districts -> facilities
	country := dataset.Ancestor{ID: countryID, Name: "Country"}
	ext.Units = append(ext.Units, dataset.OrgUnit{ID: country.ID, Name: country.Name, Level: 1, Ancestors: []dataset.Ancestor{country}})
	var facilities []string
	for d := 0; d < cfg.Districts; d++ {
		district := dataset.Ancestor{ID: fmt.Sprintf("DIST%07d", d+1), Name: fmt.Sprintf("District %d", d+1)}
		ext.Units = append(ext.Units, dataset.OrgUnit{ID: district.ID, Name: district.Name, Level: 2, Ancestors: []dataset.Ancestor{country, district}})
		for f := 0; f < cfg.Facilities; f++ {
			fac := dataset.Ancestor{ID: fmt.Sprintf("FAC%04d%04d", d+1, f+1), Name: fmt.Sprintf("Health Centre %d-%d", d+1, f+1)}
			ext.Units = append(ext.Units, dataset.OrgUnit{ID: fac.ID, Name: fac.Name, Level: 3, Ancestors: []dataset.Ancestor{country, district, fac}})
			facilities = append(facilities, fac.ID)
		}
	}

	// 2. Catalog: every element in one monthly data set assigned to every facility
	cc := defaultCC
	for e := 0; e < cfg.Elements; e++ {
		name := fmt.Sprintf("Indicator %d", e+1)
		ext.Catalog = append(ext.Catalog, dataset.CatalogEntry{
			DataElement: elementID(e), CategoryOptionCombo: cocID, DataSet: dataSetID,
			CategoryCombo: &cc, DataElementName: &name,
		})
	}
	for _, f := range facilities {
		ext.Assignments = append(ext.Assignments, dataset.Assignment{DataSet: dataSetID, OrgUnit: f})
	}

	// 3. Observations
	for fi, f := range facilities {
		// Drift: a share of facilities stops reporting half way
		stopAt := len(periods)
		if cfg.Scenario == "drift" && fi%4 == 0 {
			stopAt = len(periods) / 2
		}
		for e := 0; e < cfg.Elements; e++ {
			// Facility scale differs by orders of magnitude across elements
			scale := 5.0 * math.Pow(3, float64(e%4)) * (0.5 + rng.Float64())
			for pi, p := range periods {
				if pi >= stopAt {
					continue
				}
				if cfg.Scenario == "chaos" && rng.Float64() < 0.15 {
					continue // gap
				}

				v := sampleValue(rng, cfg.Distribution, scale)
				switch {
				case cfg.Scenario == "chaos" && rng.Float64() < 0.05:
					v *= 10 + rng.Float64()*20 // typing error
				case rng.Float64() < 0.03:
					v = 0
				}
				ext.Observations = append(ext.Observations, dataset.Observation{
					OrgUnit: f, DataElement: elementID(e), CategoryOptionCombo: cocID, Period: p, Value: dataset.Float64(math.Round(v)),
				})
			}
		}
	}
	return ext, nil
}

func elementID(e int) string {
	return fmt.Sprintf("DE%09d", e+1)
}

func sampleValue(rng *rand.Rand, distribution string, scale float64) float64 {
	if distribution == "weibull" {
		return weibullSample(rng, 1.5, scale)
	}
	return scale * (0.7 + 0.6*rng.Float64())
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes the extraction as the CSV tables the pipeline loads.
func Save(outDir string, ext *Extraction) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	maxLevel := 0
	for _, u := range ext.Units {
		maxLevel = max(maxLevel, u.Level)
	}
	treeHeader := []string{dataset.ColOrgUnit, dataset.ColOrgUnitName, dataset.ColLevel}
	for k := 1; k <= maxLevel; k++ {
		treeHeader = append(treeHeader, dataset.LevelUIDColumn(k), dataset.LevelNameColumn(k))
	}
	tree := [][]string{treeHeader}
	for _, u := range ext.Units {
		row := []string{u.ID, u.Name, strconv.Itoa(u.Level)}
		for k := 1; k <= maxLevel; k++ {
			a, _ := u.AncestorAt(k)
			row = append(row, a.ID, a.Name)
		}
		tree = append(tree, row)
	}

	catalog := [][]string{{dataset.ColDataElement, dataset.ColCategoryOptionCombo, dataset.ColDataSet, dataset.ColCategoryCombo, dataset.ColDataElementName}}
	for _, e := range ext.Catalog {
		catalog = append(catalog, []string{e.DataElement, e.CategoryOptionCombo, e.DataSet, deref(e.CategoryCombo), deref(e.DataElementName)})
	}

	assignments := [][]string{{dataset.ColDataSet, dataset.ColOrgUnit}}
	for _, a := range ext.Assignments {
		assignments = append(assignments, []string{a.DataSet, a.OrgUnit})
	}

	observations := [][]string{{dataset.ColOrgUnit, dataset.ColDataElement, dataset.ColCategoryOptionCombo, dataset.ColPeriod, dataset.ColValue}}
	for _, o := range ext.Observations {
		value := ""
		if o.HasValue() {
			value = strconv.FormatFloat(*o.Value, 'f', -1, 64)
		}
		observations = append(observations, []string{o.OrgUnit, o.DataElement, o.CategoryOptionCombo, o.Period, value})
	}

	tables := map[string][][]string{
		ingest.TreeFile:         tree,
		ingest.CatalogFile:      catalog,
		ingest.AssignmentsFile:  assignments,
		ingest.ObservationsFile: observations,
	}
	for name, rows := range tables {
		if err := writeCSV(filepath.Join(outDir, name), rows); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
