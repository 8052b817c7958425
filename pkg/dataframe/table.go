// Package dataframe provides the tabular artifact type passed between
// pipeline stages and storage backends. A Table is a small column-ordered
// record table, convertible to and from CSV, gob and JSON record form.
package dataframe

import (
	"encoding/csv"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"
)

func init() {
	// Concrete cell types carried through interface-typed gob payloads.
	gob.Register(time.Time{})
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(&Table{})
}

// Table is an in-memory record table with named columns. Cells hold
// arbitrary values; CSV decoding always yields string cells.
type Table struct {
	Columns []string
	Cells   [][]any
}

// New creates an empty table with the given column names
func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Append adds one row. The number of values must match the column count.
func (t *Table) Append(values ...any) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	t.Cells = append(t.Cells, values)
	return nil
}

// NumRows returns the number of rows in the table
func (t *Table) NumRows() int {
	return len(t.Cells)
}

// Column returns the values of the named column
func (t *Table) Column(name string) ([]any, error) {
	idx := -1
	for i, col := range t.Columns {
		if col == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	values := make([]any, len(t.Cells))
	for i, row := range t.Cells {
		values[i] = row[idx]
	}
	return values, nil
}

// Equal reports whether two tables have the same columns and cell values.
// Cells are compared by their formatted representation, so a table decoded
// from CSV compares equal to the table that produced it.
func (t *Table) Equal(other *Table) bool {
	if other == nil || len(t.Columns) != len(other.Columns) || len(t.Cells) != len(other.Cells) {
		return false
	}
	for i, col := range t.Columns {
		if col != other.Columns[i] {
			return false
		}
	}
	for i, row := range t.Cells {
		for j, cell := range row {
			if formatCell(cell) != formatCell(other.Cells[i][j]) {
				return false
			}
		}
	}
	return true
}

// Records returns the table as a list of column-keyed records
func (t *Table) Records() []map[string]any {
	records := make([]map[string]any, 0, len(t.Cells))
	for _, row := range t.Cells {
		record := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			record[col] = row[i]
		}
		records = append(records, record)
	}
	return records
}

// FromRecords builds a table from column-keyed records, using the column
// order of the columns argument. Missing values become nil cells.
func FromRecords(records []map[string]any, columns []string) *Table {
	t := New(columns...)
	for _, record := range records {
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = record[col]
		}
		t.Cells = append(t.Cells, row)
	}
	return t
}

// FromJSONRecords decodes a JSON array of records into a table. Column
// order is taken from the columns argument.
func FromJSONRecords(data []byte, columns []string) (*Table, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return FromRecords(records, columns), nil
}

// WriteCSV encodes the table as CSV with a header row
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Cells {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV decodes a table from CSV. The first record is the header; all
// cells are strings.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	t := New(header...)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = cell
		}
		t.Cells = append(t.Cells, row)
	}
	return t, nil
}

// WriteGob encodes the table into its binary container form
func (t *Table) WriteGob(w io.Writer) error {
	return gob.NewEncoder(w).Encode(t)
}

// ReadGob decodes a table from its binary container form
func ReadGob(r io.Reader) (*Table, error) {
	var t Table
	if err := gob.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode table: %w", err)
	}
	return &t, nil
}

// TimeColumnsToString returns a copy of the table with every time.Time
// cell converted to its RFC 3339 representation. A column containing any
// time cell is converted wholesale so its values stay uniform.
func (t *Table) TimeColumnsToString() *Table {
	out := t.clone()
	for j := range out.Columns {
		hasTime := false
		for _, row := range out.Cells {
			if _, ok := row[j].(time.Time); ok {
				hasTime = true
				break
			}
		}
		if !hasTime {
			continue
		}
		for _, row := range out.Cells {
			if ts, ok := row[j].(time.Time); ok {
				row[j] = ts.UTC().Format(time.RFC3339)
			} else if row[j] != nil {
				row[j] = formatCell(row[j])
			}
		}
	}
	return out
}

// NormalizeNonFinite returns a copy of the table with NaN and infinite
// float cells replaced by the strings "NaN", "Inf" and "-Inf", which
// survive JSON encoding.
func (t *Table) NormalizeNonFinite() *Table {
	out := t.clone()
	for _, row := range out.Cells {
		for j, cell := range row {
			f, ok := toFloat(cell)
			if !ok {
				continue
			}
			switch {
			case math.IsNaN(f):
				row[j] = "NaN"
			case math.IsInf(f, 1):
				row[j] = "Inf"
			case math.IsInf(f, -1):
				row[j] = "-Inf"
			}
		}
	}
	return out
}

func (t *Table) clone() *Table {
	out := New(append([]string(nil), t.Columns...)...)
	out.Cells = make([][]any, len(t.Cells))
	for i, row := range t.Cells {
		out.Cells[i] = append([]any(nil), row...)
	}
	return out
}

func toFloat(cell any) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}

func formatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	default:
		return fmt.Sprintf("%g", f)
	}
}
