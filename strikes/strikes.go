// Package strikes holds the fixed enumeration of strike types the
// classifier predicts and the bijective name <-> id table that every other
// package uses to translate between CSV/XML label names and dense class ids.
//
// The table is immutable once built. Callers build it once (usually with
// Default) at process start and pass the same *Table to every component that
// needs it.
package strikes

import (
	"errors"
	"fmt"
	"strings"
)

// Dense class ids of the canonical enumeration.
const (
	NoStrike = iota
	Jab
	Cross
	Hook
	Upper
	LegKick
	BodyKick
	HighKick
)

// NumClasses is the size of the canonical enumeration.
const NumClasses = 8

// ErrUnknownLabel is returned when a label name or id is outside the table.
var ErrUnknownLabel = errors.New("unknown strike label")

// canonicalNames is indexed by class id.
var canonicalNames = [NumClasses]string{
	"No Strike",
	"Jab",
	"Cross",
	"Hook",
	"Upper",
	"Leg Kick",
	"Body Kick",
	"High Kick",
}

// Table is an immutable bijection between label names and ids 0..Len()-1.
// Id 0 is the background ("no action") class that unknown names fall back to.
type Table struct {
	names []string
	ids   map[string]int
}

// NewTable builds a table from names ordered by id. Names must be non-empty
// and unique; matching is case-sensitive.
func NewTable(names []string) (*Table, error) {
	if len(names) == 0 {
		return nil, errors.New("strike table needs at least one label")
	}
	t := &Table{
		names: make([]string, len(names)),
		ids:   make(map[string]int, len(names)),
	}
	for id, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("label %d has an empty name", id)
		}
		if prev, ok := t.ids[name]; ok {
			return nil, fmt.Errorf("label %q used for ids %d and %d", name, prev, id)
		}
		t.names[id] = name
		t.ids[name] = id
	}
	return t, nil
}

// Default returns the canonical eight-class boxing/kickboxing table.
func Default() *Table {
	t, err := NewTable(canonicalNames[:])
	if err != nil {
		// canonicalNames is a compile-time constant list
		panic(err)
	}
	return t
}

// Len returns the number of classes.
func (t *Table) Len() int { return len(t.names) }

// Name returns the label name for id.
func (t *Table) Name(id int) (string, error) {
	if id < 0 || id >= len(t.names) {
		return "", fmt.Errorf("%w: id %d (valid 0..%d)", ErrUnknownLabel, id, len(t.names)-1)
	}
	return t.names[id], nil
}

// ID returns the id for a label name.
func (t *Table) ID(name string) (int, error) {
	id, ok := t.ids[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
	}
	return id, nil
}

// Lookup returns the id for name, or NoStrike when the name is not in the
// table. Annotation tracks use this permissive path.
func (t *Table) Lookup(name string) int {
	if id, ok := t.ids[name]; ok {
		return id
	}
	return NoStrike
}

// Names returns a copy of the names ordered by id.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}
