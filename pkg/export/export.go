// Package export writes a finished table to tabular file formats. It is a
// sink over the table: serializers never mutate rows or column order.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/formsite-tools/formsite-export/pkg/table"
)

// WriteCSV writes the table with a header row of column names. Date
// columns are rendered in the table's display timezone.
func WriteCSV(w io.Writer, tbl *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tbl.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(tbl.Columns))
	for _, row := range tbl.Rows {
		for i, col := range tbl.Columns {
			cell, _ := tbl.Cell(row, col)
			record[i] = cell
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the table to a CSV file.
func SaveCSV(path string, tbl *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, tbl); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteJSON writes the table as an array of records, one object per row
// with columns as keys. Absent cells are omitted.
func WriteJSON(w io.Writer, tbl *table.Table) error {
	records := make([]map[string]string, len(tbl.Rows))
	for i, row := range tbl.Rows {
		record := make(map[string]string, len(tbl.Columns))
		for _, col := range tbl.Columns {
			if cell, ok := tbl.Cell(row, col); ok {
				record[col] = cell
			}
		}
		records[i] = record
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// SaveJSON writes the table to a JSON file.
func SaveJSON(path string, tbl *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(f, tbl); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
