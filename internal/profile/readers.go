package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReadCSV profiles comma separated input with a header row.
func ReadCSV(r io.Reader, opts Options) (*Profile, error) {
	return readDelimited(r, ',', "csv", opts)
}

func readDelimited(r io.Reader, comma rune, fileType string, opts Options) (*Profile, error) {
	opts = opts.withDefaults()
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s file is empty", fileType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var records [][]string
	for len(records) < opts.MaxRows {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", len(records)+1, err)
		}
		if isBlank(rec) {
			continue
		}
		records = append(records, rec)
	}
	return Build(fileType, header, records, opts), nil
}

// ReadXLSX profiles the first sheet of a workbook.
func ReadXLSX(r io.Reader, opts Options) (*Profile, error) {
	opts = opts.withDefaults()
	xlFile, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer xlFile.Close()

	sheetName := xlFile.GetSheetName(0)
	if sheetName == "" {
		sheetList := xlFile.GetSheetList()
		if len(sheetList) == 0 {
			return nil, fmt.Errorf("no sheets found in xlsx file")
		}
		sheetName = sheetList[0]
	}

	rows, err := xlFile.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("xlsx file is empty")
	}
	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var records [][]string
	for rows.Next() && len(records) < opts.MaxRows {
		cols, err := rows.Columns()
		if err != nil {
			continue // Skip malformed rows
		}
		if isBlank(cols) {
			continue
		}
		records = append(records, cols)
	}
	return Build("xlsx", header, records, opts), nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if v != "" {
			return false
		}
	}
	return true
}
