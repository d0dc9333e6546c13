package ledger

import (
	"errors"
	"testing"
)

func TestParseSpreadsheet_CSV(t *testing.T) {
	data := []byte("Party Name,Amount\nSharma Traders,100\nGupta & Sons,250\n")
	headers, rows, err := ParseSpreadsheet(data, ".csv")
	if err != nil {
		t.Fatalf("ParseSpreadsheet error: %v", err)
	}
	if len(headers) != 2 || headers[0] != "Party Name" {
		t.Fatalf("unexpected headers: %v", headers)
	}
	if len(rows) != 2 || rows[1][0] != "Gupta & Sons" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestParseSpreadsheet_RaggedCSV(t *testing.T) {
	data := []byte("A,B,C\n1,2\n4,5,6,7\n")
	_, rows, err := ParseSpreadsheet(data, ".csv")
	if err != nil {
		t.Fatalf("ragged CSV should parse, got: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestParseSpreadsheet_Unsupported(t *testing.T) {
	_, _, err := ParseSpreadsheet([]byte("x"), ".pdf")
	if !errors.Is(err, errUnsupportedFile) {
		t.Fatalf("expected errUnsupportedFile, got %v", err)
	}
}

func TestParseSpreadsheet_HeaderOnly(t *testing.T) {
	_, _, err := ParseSpreadsheet([]byte("A,B\n"), ".csv")
	if err == nil {
		t.Fatal("expected error for header-only file")
	}
}

func TestFileExt(t *testing.T) {
	if got := fileExt("Report.XLSX"); got != ".xlsx" {
		t.Fatalf("expected .xlsx, got %q", got)
	}
	if got := fileExt("noext"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestRowsToRecords_PreservesSourceRowNumbers(t *testing.T) {
	headers := []string{"Name", "Amount", ""}
	rows := [][]string{
		{"A", "1"},
		{"", "", ""}, // empty, skipped
		{"B", "2", "ignored"},
	}
	records := RowsToRecords(headers, rows)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Header is row 1, first data row is row 2; the skipped empty row must
	// not shift the numbering of the rows after it.
	if records[0].Row != 2 {
		t.Fatalf("expected first record at row 2, got %d", records[0].Row)
	}
	if records[1].Row != 4 {
		t.Fatalf("expected second record at row 4, got %d", records[1].Row)
	}
	if records[1].Fields["Name"] != "B" {
		t.Fatalf("unexpected fields: %v", records[1].Fields)
	}
	if _, ok := records[0].Fields[""]; ok {
		t.Fatal("blank headers must not produce fields")
	}
}

func TestRowsToRecords_PadsShortRows(t *testing.T) {
	records := RowsToRecords([]string{"A", "B"}, [][]string{{"x"}})
	if records[0].Fields["B"] != "" {
		t.Fatalf("expected padded empty value, got %q", records[0].Fields["B"])
	}
}
