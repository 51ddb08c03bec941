package datasets

import (
	"fmt"

	"github.com/Noofbiz/strikes/annotations"
	"github.com/Noofbiz/strikes/strikes"
)

// CheckAlignment verifies that a keypoint table's frame ids can refer to the
// same video as the annotation index: ids must be non-negative, and when the
// index is non-empty the two frame spans must overlap. Training and
// validation CSVs name their frame column differently, so nothing else
// guarantees they share an origin.
func CheckAlignment(frames []int, index *annotations.Index) error {
	if len(frames) == 0 {
		return nil
	}
	lo, hi := frames[0], frames[0]
	for _, f := range frames {
		if f < 0 {
			return fmt.Errorf("%w: negative frame id %d", ErrMisaligned, f)
		}
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	alo, ahi, ok := index.Span()
	if !ok {
		return nil
	}
	if hi < alo || lo > ahi {
		return fmt.Errorf("%w: frames span [%d, %d], annotations span [%d, %d]", ErrMisaligned, lo, hi, alo, ahi)
	}
	return nil
}

// ActualAgreement compares the passthrough "Actual Strike" column of a
// validation keypoint CSV with the label the annotation index gives the same
// frame. It returns how many rows carried a value and how many disagreed.
func ActualAgreement(ds *ValidationKeypointDataset, table *strikes.Table) (checked, disagreements int) {
	if !ds.HasActual() {
		return 0, 0
	}
	for i := 0; i < ds.Len(); i++ {
		actual := ds.records[i][ds.actualCol]
		if actual == "" {
			continue
		}
		checked++
		if table.Lookup(actual) != ds.index.Label(ds.frames[i]) {
			disagreements++
		}
	}
	return checked, disagreements
}
