package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

func parseFloat32(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

// parseFrameID accepts plain integers as well as integral floats ("12.0"),
// which spreadsheet round-trips tend to produce.
func parseFrameID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty frame id")
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("frame id %q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("frame id %q is not an integer", s)
	}
	return int(f), nil
}

// readCSV reads the header and every data row of a CSV file. Rows must have
// as many fields as the header.
func readCSV(path string) (header []string, records [][]string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err = reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("CSV %s is empty", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	for i, col := range header {
		col = strings.TrimSpace(col)
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		header[i] = col
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read row %d of %s: %w", len(records)+1, path, err)
		}
		records = append(records, record)
	}
	return header, records, nil
}

// ReadColumns reads the named columns of a CSV, one []string per data row in
// the order the names were given. A missing column is a *SchemaError.
func ReadColumns(path string, names ...string) ([][]string, error) {
	header, records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	schema, err := newSchema(path, header, names, nil, 0)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(names))
	for i, name := range names {
		idx[i], _ = schema.Column(name)
	}
	out := make([][]string, len(records))
	for r, record := range records {
		row := make([]string, len(idx))
		for i, col := range idx {
			row[i] = record[col]
		}
		out[r] = row
	}
	return out, nil
}
