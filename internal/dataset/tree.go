package dataset

import (
	"cmp"
	"fmt"
	"slices"
)

// Ancestor is one (id, name) pair of an ancestor chain.
type Ancestor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OrgUnit is a node of the organisation unit hierarchy. Ancestors holds one
// entry per level 1..Level; the last entry is the unit itself.
type OrgUnit struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Level     int        `json:"level"`
	Ancestors []Ancestor `json:"ancestors"`
}

// AncestorAt returns the unit's ancestor at the given level.
func (u OrgUnit) AncestorAt(level int) (Ancestor, bool) {
	if level < 1 || level > len(u.Ancestors) {
		return Ancestor{}, false
	}
	a := u.Ancestors[level-1]
	if a.ID == "" {
		return Ancestor{}, false
	}
	return a, true
}

// Tree is the read-only organisation unit hierarchy of one run.
type Tree struct {
	units []OrgUnit
	byID  map[string]int
}

// NewTree indexes units and checks the ancestor chain invariants: each chain
// has one entry per level, ends with the unit itself, and every ancestor that
// is present in the tree sits at the level it is referenced from.
func NewTree(units []OrgUnit) (*Tree, error) {
	t := &Tree{
		units: make([]OrgUnit, len(units)),
		byID:  make(map[string]int, len(units)),
	}
	copy(t.units, units)

	for i, u := range t.units {
		if u.ID == "" {
			return nil, &SchemaError{Table: "tree", Column: ColOrgUnit, Row: i + 1, Reason: "empty identifier"}
		}
		if u.Level < 1 {
			return nil, &SchemaError{Table: "tree", Column: ColLevel, Row: i + 1, Reason: fmt.Sprintf("invalid level %d", u.Level)}
		}
		if len(u.Ancestors) != u.Level {
			return nil, &SchemaError{Table: "tree", Column: LevelUIDColumn(u.Level), Row: i + 1,
				Reason: fmt.Sprintf("ancestor chain has %d entries for level %d", len(u.Ancestors), u.Level)}
		}
		if u.Ancestors[u.Level-1].ID != u.ID {
			return nil, &SchemaError{Table: "tree", Column: LevelUIDColumn(u.Level), Row: i + 1, Reason: "chain does not end with the unit itself"}
		}
		if _, dup := t.byID[u.ID]; dup {
			return nil, &SchemaError{Table: "tree", Column: ColOrgUnit, Row: i + 1, Reason: fmt.Sprintf("duplicate unit %s", u.ID)}
		}
		t.byID[u.ID] = i
	}

	// Walk top-down: an ancestor known to the tree must be a unit of that level.
	for i, u := range t.units {
		for k, a := range u.Ancestors {
			idx, ok := t.byID[a.ID]
			if !ok || a.ID == "" {
				continue
			}
			if t.units[idx].Level != k+1 {
				return nil, &SchemaError{Table: "tree", Column: LevelUIDColumn(k + 1), Row: i + 1,
					Reason: fmt.Sprintf("ancestor %s is a level %d unit", a.ID, t.units[idx].Level)}
			}
		}
	}

	return t, nil
}

// Unit returns a unit by id.
func (t *Tree) Unit(id string) (OrgUnit, bool) {
	idx, ok := t.byID[id]
	if !ok {
		return OrgUnit{}, false
	}
	return t.units[idx], true
}

// Len returns the number of units.
func (t *Tree) Len() int { return len(t.units) }

// Units returns a copy of every unit in input order.
func (t *Tree) Units() []OrgUnit {
	return slices.Clone(t.units)
}

// AtLevel returns the units of one level, ordered by id.
func (t *Tree) AtLevel(level int) []OrgUnit {
	var out []OrgUnit
	for _, u := range t.units {
		if u.Level == level {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b OrgUnit) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// MaxLevel returns the deepest level of the tree.
func (t *Tree) MaxLevel() int {
	maxLevel := 0
	for _, u := range t.units {
		maxLevel = max(maxLevel, u.Level)
	}
	return maxLevel
}

// Name returns the name of a unit, or the id when it is unknown.
func (t *Tree) Name(id string) string {
	if u, ok := t.Unit(id); ok && u.Name != "" {
		return u.Name
	}
	return id
}
