package datasets

// windowAt returns the sequence of Window consecutive rows ending at row i.
// Rows before the start of the table repeat the first row, so every example
// has the same number of steps. Windows follow row order, not frame ids.
func windowAt(examples []Example, i, window int) [][]float32 {
	if window <= 1 {
		return [][]float32{examples[i].Features}
	}
	seq := make([][]float32, window)
	for k := range window {
		j := i - (window - 1) + k
		if j < 0 {
			j = 0
		}
		seq[k] = examples[j].Features
	}
	return seq
}
