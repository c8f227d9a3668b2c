package dataset

import (
	"cmp"
	"fmt"
	"math"
	"strings"
)

// Observation is one reported value for an (org unit, data element,
// category option combo, period) identity. Value is nil when nothing was reported.
type Observation struct {
	OrgUnit             string   `json:"ou"`
	DataElement         string   `json:"de"`
	CategoryOptionCombo string   `json:"coc,omitempty"`
	Period              string   `json:"pe"`
	Value               *float64 `json:"value"`
}

// HasValue reports whether the observation carries a usable number.
func (o Observation) HasValue() bool {
	return o.Value != nil && !math.IsNaN(*o.Value)
}

// Float returns the value or NaN when missing.
func (o Observation) Float() float64 {
	if !o.HasValue() {
		return math.NaN()
	}
	return *o.Value
}

// Float64 returns a pointer to v, for building observations inline.
func Float64(v float64) *float64 {
	return &v
}

// KeyMode selects the columns that identify a data element series.
type KeyMode string

const (
	// KeyDataElement keys series on DE_UID alone.
	KeyDataElement KeyMode = "DE"
	// KeyDataElementCOC keys series on DE_UID and COC_UID.
	KeyDataElementCOC KeyMode = "DE_COC"
)

// ParseKeyMode accepts "DE", "DE_UID", "DE_COC" or "DE_UID,COC_UID".
func ParseKeyMode(s string) (KeyMode, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "", "DE", "DE_UID":
		return KeyDataElement, nil
	case "DE_COC", "DE_UID,COC_UID", "DECOC":
		return KeyDataElementCOC, nil
	}
	return "", fmt.Errorf("unknown key mode %q (expected DE or DE_COC)", s)
}

// Columns returns the identity column names of the mode.
func (m KeyMode) Columns() []string {
	if m == KeyDataElementCOC {
		return []string{ColDataElement, ColCategoryOptionCombo}
	}
	return []string{ColDataElement}
}

// UsesCOC reports whether the category option combo is part of the key.
func (m KeyMode) UsesCOC() bool {
	return m == KeyDataElementCOC
}

// Key builds the element key for a data element / category option combo pair.
func (m KeyMode) Key(de, coc string) ElementKey {
	if m.UsesCOC() {
		return ElementKey{DataElement: de, CategoryOptionCombo: coc}
	}
	return ElementKey{DataElement: de}
}

// KeyOf returns the element key of an observation.
func (m KeyMode) KeyOf(o Observation) ElementKey {
	return m.Key(o.DataElement, o.CategoryOptionCombo)
}

// ElementKey identifies a data element series: the data element and, in
// DE_COC mode, its category option combo.
type ElementKey struct {
	DataElement         string `json:"de"`
	CategoryOptionCombo string `json:"coc,omitempty"`
}

// String renders the key in DHIS2 dx notation ("de" or "de.coc").
func (k ElementKey) String() string {
	if k.CategoryOptionCombo == "" {
		return k.DataElement
	}
	return k.DataElement + "." + k.CategoryOptionCombo
}

// Compare orders keys by data element then category option combo.
func (k ElementKey) Compare(o ElementKey) int {
	if c := cmp.Compare(k.DataElement, o.DataElement); c != 0 {
		return c
	}
	return cmp.Compare(k.CategoryOptionCombo, o.CategoryOptionCombo)
}
