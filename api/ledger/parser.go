package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var errUnsupportedFile = errors.New("unsupported file type")

// fileExt returns the lowercased extension of an uploaded file name.
func fileExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// ParseSpreadsheet turns raw file bytes into a header row plus ordered data
// rows. Supported: .csv, .xlsx and legacy .xls; the first sheet wins for
// workbook formats.
func ParseSpreadsheet(data []byte, ext string) ([]string, [][]string, error) {
	var rows [][]string
	switch ext {
	case ".csv":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		all, err := r.ReadAll()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		rows = all
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open Excel file: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, errors.New("no sheets found in Excel file")
		}
		all, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get rows: %w", err)
		}
		rows = all
	case ".xls":
		wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open XLS file: %w", err)
		}
		rows = wb.ReadAllCells(1 << 16)
	default:
		return nil, nil, errUnsupportedFile
	}

	if len(rows) < 2 {
		return nil, nil, errors.New("file must have at least a header and one data row")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	return headers, rows[1:], nil
}

// RawRecord is one untyped data row. Row is the 1-based position in the
// source file (the header row is row 1), preserved through staging so error
// reports point at the spreadsheet line the operator can actually see.
type RawRecord struct {
	Row    int               `json:"row"`
	Fields map[string]string `json:"fields"`
}

// RowsToRecords pairs each data row with the header row, producing one
// trimmed key-value map per row. Short rows are padded, cells beyond the
// header width are dropped, fully empty rows are skipped without disturbing
// the numbering of the rows after them.
func RowsToRecords(headers []string, rows [][]string) []RawRecord {
	records := make([]RawRecord, 0, len(rows))
	for n, row := range rows {
		fields := make(map[string]string, len(headers))
		empty := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			val := ""
			if i < len(row) {
				val = strings.TrimSpace(row[i])
			}
			if val != "" {
				empty = false
			}
			fields[h] = val
		}
		if empty {
			continue
		}
		records = append(records, RawRecord{Row: n + 2, Fields: fields})
	}
	return records
}
