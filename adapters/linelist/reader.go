// Package linelist reads case line lists from CSV or Excel files and turns
// them into validated cohorts of elapsed-day case records. All date-to-day
// policy (reference epoch, end-of-day windows, default filling, the primary
// rejection rule) lives here; the statistical core only ever sees bounds.
package linelist

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateLayout is the calendar-date format accepted in line-list columns.
const DateLayout = "2006-01-02"

// Recognized header names, matched case-insensitively.
const (
	colID            = "id"
	colRegion        = "region"
	colFever         = "fever"
	colExposureStart = "exposure_start"
	colExposureEnd   = "exposure_end"
	colOnsetStart    = "onset_start"
	colOnsetEnd      = "onset_end"
)

// Row is one parsed line-list row. Missing dates stay nil so the default
// filling rules can tell absent from present.
type Row struct {
	ID            string
	Region        string
	Fever         bool
	ExposureStart *time.Time
	ExposureEnd   *time.Time
	OnsetStart    *time.Time
	OnsetEnd      *time.Time
}

// LineList is a parsed line list in file order.
type LineList struct {
	Rows []Row
}

// Filter returns a new line list holding only the rows pred accepts.
func (l *LineList) Filter(pred func(Row) bool) *LineList {
	out := &LineList{}
	for _, row := range l.Rows {
		if pred(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Reader handles reading line-list files in CSV or Excel format.
type Reader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewReader creates a reader for the given file; the extension picks the
// format, defaulting to xlsx.
func NewReader(filePath string) *Reader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &Reader{filePath: filePath, fileType: fileType}
}

// Read parses the line list into rows.
func (r *Reader) Read() (*LineList, error) {
	log.Printf("[LineList] Reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("line list must have a header row and at least one data row")
	}

	return r.processRows(rows)
}

// readExcelRows reads raw cells from Sheet1.
func (r *Reader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return nil, fmt.Errorf("failed to read Sheet1: %w", err)
	}
	return rows, nil
}

// readCSVRows reads raw cells from a CSV file.
func (r *Reader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// processRows converts raw string rows into parsed line-list rows. Rows
// whose date cells do not parse are dropped with a log line; structural
// problems (no onset columns at all) fail the whole read.
func (r *Reader) processRows(rows [][]string) (*LineList, error) {
	index := make(map[string]int)
	for i, header := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(header))] = i
	}
	if _, ok := index[colOnsetStart]; !ok {
		return nil, fmt.Errorf("line list is missing the %s column", colOnsetStart)
	}

	cell := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	list := &LineList{}
	dropped := 0
	for n := 1; n < len(rows); n++ {
		raw := rows[n]
		row := Row{
			ID:     cell(raw, colID),
			Region: strings.ToLower(cell(raw, colRegion)),
			Fever:  parseFever(cell(raw, colFever)),
		}
		if row.ID == "" {
			row.ID = fmt.Sprintf("row-%d", n)
		}

		ok := true
		for _, field := range []struct {
			name string
			dst  **time.Time
		}{
			{colExposureStart, &row.ExposureStart},
			{colExposureEnd, &row.ExposureEnd},
			{colOnsetStart, &row.OnsetStart},
			{colOnsetEnd, &row.OnsetEnd},
		} {
			value := cell(raw, field.name)
			if value == "" {
				continue
			}
			t, err := time.ParseInLocation(DateLayout, value, time.UTC)
			if err != nil {
				log.Printf("[LineList] Dropping row %s: bad %s date %q", row.ID, field.name, value)
				dropped++
				ok = false
				break
			}
			*field.dst = &t
		}
		if ok {
			list.Rows = append(list.Rows, row)
		}
	}

	log.Printf("[LineList] %s file processed (%d rows parsed, %d dropped)",
		strings.ToUpper(r.fileType), len(list.Rows), dropped)
	return list, nil
}

// parseFever accepts the common boolean spellings; anything else is false.
func parseFever(s string) bool {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1":
		return true
	}
	return false
}
