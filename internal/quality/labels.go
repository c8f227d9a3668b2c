package quality

import "dqa/internal/dataset"

// Labeler resolves data element and category option combo names from the
// catalog's optional name columns.
type Labeler struct {
	deNames  map[string]string
	cocNames map[string]string
}

// NewLabeler indexes the names the catalog provides.
func NewLabeler(catalog *dataset.Catalog) *Labeler {
	return &Labeler{
		deNames:  catalog.DataElementNames(),
		cocNames: catalog.COCNames(),
	}
}

// DataElement returns the name of a data element, or its id.
func (l *Labeler) DataElement(id string) string {
	if name, ok := l.deNames[id]; ok {
		return name
	}
	return id
}

// COC returns the name of a category option combo, or its id.
func (l *Labeler) COC(id string) string {
	if id == "" {
		return ""
	}
	if name, ok := l.cocNames[id]; ok {
		return name
	}
	return id
}

// Label returns a copy of the rollup rows with element names filled in.
func (l *Labeler) Label(rows []RollupStat) []RollupStat {
	out := make([]RollupStat, len(rows))
	for i, r := range rows {
		r.DataElementName = l.DataElement(r.Key.DataElement)
		r.COCName = l.COC(r.Key.CategoryOptionCombo)
		out[i] = r
	}
	return out
}
