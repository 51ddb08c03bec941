package strikes

import (
	"errors"
	"testing"
)

// TestDefaultTableBijection checks every id maps to a name and back.
func TestDefaultTableBijection(t *testing.T) {
	tbl := Default()
	if tbl.Len() != NumClasses {
		t.Fatalf("expected %d classes, got %d", NumClasses, tbl.Len())
	}
	seen := make(map[string]bool)
	for id := 0; id < tbl.Len(); id++ {
		name, err := tbl.Name(id)
		if err != nil {
			t.Fatalf("Name(%d) error: %v", id, err)
		}
		if seen[name] {
			t.Fatalf("name %q returned for more than one id", name)
		}
		seen[name] = true
		back, err := tbl.ID(name)
		if err != nil {
			t.Fatalf("ID(%q) error: %v", name, err)
		}
		if back != id {
			t.Fatalf("round trip mismatch: %d -> %q -> %d", id, name, back)
		}
	}
	if name, _ := tbl.Name(LegKick); name != "Leg Kick" {
		t.Fatalf("unexpected name for LegKick: %q", name)
	}
}

func TestUnknownLabels(t *testing.T) {
	tbl := Default()
	if _, err := tbl.ID("Spinning Elbow"); !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel, got %v", err)
	}
	// matching is case-sensitive
	if _, err := tbl.ID("jab"); !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel for lower-case name, got %v", err)
	}
	if _, err := tbl.Name(NumClasses); !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel for out-of-range id, got %v", err)
	}
	if got := tbl.Lookup("Spinning Elbow"); got != NoStrike {
		t.Fatalf("Lookup should fail closed to NoStrike, got %d", got)
	}
	if got := tbl.Lookup("Hook"); got != Hook {
		t.Fatalf("Lookup(Hook) = %d, want %d", got, Hook)
	}
}

func TestNewTableRejectsDuplicates(t *testing.T) {
	if _, err := NewTable([]string{"a", "b", "a"}); err == nil {
		t.Fatalf("expected error for duplicate names")
	}
	if _, err := NewTable(nil); err == nil {
		t.Fatalf("expected error for empty table")
	}
	if _, err := NewTable([]string{"a", " "}); err == nil {
		t.Fatalf("expected error for blank name")
	}
}

func TestNamesIsACopy(t *testing.T) {
	tbl := Default()
	names := tbl.Names()
	names[0] = "changed"
	if n, _ := tbl.Name(0); n != "No Strike" {
		t.Fatalf("table mutated through Names(): %q", n)
	}
}
