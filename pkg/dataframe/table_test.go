package dataframe

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	table := New("name", "score")
	if err := table.Append("alpha", 0.5); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := table.Append("beta", 1.25); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	return table
}

func TestAppendRejectsWrongWidth(t *testing.T) {
	table := New("a", "b")
	if err := table.Append(1); err == nil {
		t.Error("expected error for short row")
	}
	if err := table.Append(1, 2, 3); err == nil {
		t.Error("expected error for long row")
	}
	if table.NumRows() != 0 {
		t.Errorf("expected 0 rows, got %d", table.NumRows())
	}
}

func TestColumn(t *testing.T) {
	table := sampleTable(t)
	values, err := table.Column("score")
	if err != nil {
		t.Fatalf("Column failed: %v", err)
	}
	if len(values) != 2 || values[0] != 0.5 || values[1] != 1.25 {
		t.Errorf("unexpected column values: %v", values)
	}
	if _, err := table.Column("missing"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	table := sampleTable(t)

	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	decoded, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if !table.Equal(decoded) {
		t.Errorf("round trip mismatch: %v vs %v", table, decoded)
	}
}

func TestGobRoundTrip(t *testing.T) {
	table := sampleTable(t)

	var buf bytes.Buffer
	if err := table.WriteGob(&buf); err != nil {
		t.Fatalf("WriteGob failed: %v", err)
	}
	decoded, err := ReadGob(&buf)
	if err != nil {
		t.Fatalf("ReadGob failed: %v", err)
	}
	if !table.Equal(decoded) {
		t.Errorf("round trip mismatch: %v vs %v", table, decoded)
	}
	// The binary form keeps cell types, unlike CSV.
	if _, ok := decoded.Cells[0][1].(float64); !ok {
		t.Errorf("expected float64 cell, got %T", decoded.Cells[0][1])
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	table := sampleTable(t)
	records := table.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["name"] != "alpha" || records[1]["score"] != 1.25 {
		t.Errorf("unexpected records: %v", records)
	}

	rebuilt := FromRecords(records, table.Columns)
	if !table.Equal(rebuilt) {
		t.Errorf("round trip mismatch: %v vs %v", table, rebuilt)
	}
}

func TestFromJSONRecords(t *testing.T) {
	payload := []byte(`[{"name":"alpha","score":0.5},{"name":"beta"}]`)
	table, err := FromJSONRecords(payload, []string{"name", "score"})
	if err != nil {
		t.Fatalf("FromJSONRecords failed: %v", err)
	}
	if table.NumRows() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.NumRows())
	}
	if table.Cells[1][1] != nil {
		t.Errorf("expected nil cell for missing value, got %v", table.Cells[1][1])
	}

	if _, err := FromJSONRecords([]byte(`{"not":"an array"}`), nil); err == nil {
		t.Error("expected error for non-array payload")
	}
}

func TestTimeColumnsToString(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	table := New("at", "value")
	table.Append(ts, 1.0)
	table.Append(nil, 2.0)

	out := table.TimeColumnsToString()
	if out.Cells[0][0] != "2024-03-01T12:30:00Z" {
		t.Errorf("unexpected time cell: %v", out.Cells[0][0])
	}
	if out.Cells[0][1] != 1.0 {
		t.Errorf("non-time column should be untouched, got %v", out.Cells[0][1])
	}
	// The original table is not mutated.
	if _, ok := table.Cells[0][0].(time.Time); !ok {
		t.Errorf("original table mutated: %T", table.Cells[0][0])
	}
}

func TestNormalizeNonFinite(t *testing.T) {
	table := New("v")
	table.Append(math.NaN())
	table.Append(math.Inf(1))
	table.Append(math.Inf(-1))
	table.Append(1.5)

	out := table.NormalizeNonFinite()
	want := []any{"NaN", "Inf", "-Inf", 1.5}
	for i, w := range want {
		if out.Cells[i][0] != w {
			t.Errorf("row %d: got %v, want %v", i, out.Cells[i][0], w)
		}
	}

	if _, err := json.Marshal(out.Records()); err != nil {
		t.Errorf("normalized table should JSON-encode: %v", err)
	}
}

func TestEqualComparesFormattedCells(t *testing.T) {
	a := New("v")
	a.Append(1.5)
	b := New("v")
	b.Append("1.5")
	if !a.Equal(b) {
		t.Error("float cell should compare equal to its CSV string form")
	}

	c := New("other")
	c.Append(1.5)
	if a.Equal(c) {
		t.Error("different column names should not compare equal")
	}
	if a.Equal(nil) {
		t.Error("nil table should not compare equal")
	}
}

func TestWriteCSVEscapesCells(t *testing.T) {
	table := New("text")
	table.Append("a,b")

	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"a,b"`) {
		t.Errorf("comma cell not quoted: %q", buf.String())
	}
}
