package dataset

import (
	"slices"
)

// CatalogEntry maps a data element (and category option combo) to a data set
// it is collected through. CategoryCombo, Domain and the names are optional
// metadata: nil means the extraction did not provide them.
type CatalogEntry struct {
	DataElement         string  `json:"de"`
	CategoryOptionCombo string  `json:"coc"`
	DataSet             string  `json:"ds"`
	CategoryCombo       *string `json:"cc,omitempty"`
	Domain              *string `json:"domain,omitempty"`
	DataElementName     *string `json:"deName,omitempty"`
	COCName             *string `json:"cocName,omitempty"`
}

// Assignment states that a data set is expected from an organisation unit.
type Assignment struct {
	DataSet string `json:"ds"`
	OrgUnit string `json:"ou"`
}

// Catalog is the read-only data element catalog of one run, built once from
// the extraction tables and passed explicitly to the pipeline.
type Catalog struct {
	entries     []CatalogEntry
	assignments map[string][]string // DS_UID -> OU_UIDs
}

// NewCatalog validates and indexes the catalog. Assignments may be empty, in
// which case every facility is expected to report every catalog element.
func NewCatalog(entries []CatalogEntry, assignments []Assignment) (*Catalog, error) {
	c := &Catalog{
		entries:     slices.Clone(entries),
		assignments: make(map[string][]string),
	}
	for i, e := range c.entries {
		if e.DataElement == "" {
			return nil, &SchemaError{Table: "catalog", Column: ColDataElement, Row: i + 1, Reason: "empty identifier"}
		}
	}
	for i, a := range assignments {
		if a.DataSet == "" || a.OrgUnit == "" {
			return nil, &SchemaError{Table: "assignments", Column: ColDataSet, Row: i + 1, Reason: "empty identifier"}
		}
		c.assignments[a.DataSet] = append(c.assignments[a.DataSet], a.OrgUnit)
	}
	return c, nil
}

// Entries returns a copy of the catalog rows.
func (c *Catalog) Entries() []CatalogEntry {
	return slices.Clone(c.entries)
}

// HasAssignments reports whether data set → org unit assignments were supplied.
func (c *Catalog) HasAssignments() bool {
	return len(c.assignments) > 0
}

// UnitsFor returns the org units a data set is assigned to.
func (c *Catalog) UnitsFor(dataSet string) []string {
	return c.assignments[dataSet]
}

// Keys returns the distinct element keys of the catalog under a key mode, sorted.
func (c *Catalog) Keys(mode KeyMode) []ElementKey {
	seen := make(map[ElementKey]bool)
	var keys []ElementKey
	for _, e := range c.entries {
		k := mode.Key(e.DataElement, e.CategoryOptionCombo)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, ElementKey.Compare)
	return keys
}

// DataSetsFor returns the data sets an element key is collected through.
func (c *Catalog) DataSetsFor(mode KeyMode, key ElementKey) []string {
	var out []string
	for _, e := range c.entries {
		if mode.Key(e.DataElement, e.CategoryOptionCombo) == key && e.DataSet != "" && !slices.Contains(out, e.DataSet) {
			out = append(out, e.DataSet)
		}
	}
	return out
}

// Filter returns a catalog restricted to the given data elements, keeping
// the assignments. Used to build per-shard catalogs.
func (c *Catalog) Filter(dataElements map[string]bool) *Catalog {
	out := &Catalog{assignments: c.assignments}
	for _, e := range c.entries {
		if dataElements[e.DataElement] {
			out.entries = append(out.entries, e)
		}
	}
	return out
}

// DataElementNames maps DE_UID to DE_NAME where the catalog provides one.
func (c *Catalog) DataElementNames() map[string]string {
	names := make(map[string]string)
	for _, e := range c.entries {
		if e.DataElementName != nil {
			names[e.DataElement] = *e.DataElementName
		}
	}
	return names
}

// COCNames maps COC_UID to COC_NAME where the catalog provides one.
func (c *Catalog) COCNames() map[string]string {
	names := make(map[string]string)
	for _, e := range c.entries {
		if e.COCName != nil {
			names[e.CategoryOptionCombo] = *e.COCName
		}
	}
	return names
}
