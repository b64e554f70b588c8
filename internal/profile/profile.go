// Package profile reads uploaded CSV and XLSX files and describes their
// columns: inferred data type, null share, sample values and sample rows.
package profile

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BartekS5/fieldmapper/pkg/models"
	"github.com/BartekS5/fieldmapper/pkg/utils"
)

// Options bounds how much of a file is looked at.
type Options struct {
	SampleValues int
	SampleRows   int
	MaxRows      int
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{SampleValues: 5, SampleRows: 5, MaxRows: 1000}

func (o Options) withDefaults() Options {
	if o.SampleValues <= 0 {
		o.SampleValues = DefaultOptions.SampleValues
	}
	if o.SampleRows <= 0 {
		o.SampleRows = DefaultOptions.SampleRows
	}
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultOptions.MaxRows
	}
	return o
}

// Profile describes one file.
type Profile struct {
	FileType   string
	Fields     []models.SourceField
	SampleRows []map[string]string
	RowCount   int
}

// ReadFile picks the reader by extension.
func ReadFile(path string, opts Options) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		return ReadCSV(f, opts)
	case ".tsv":
		return readDelimited(f, '\t', "tsv", opts)
	case ".xlsx":
		return ReadXLSX(f, opts)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

// Build profiles a header plus data records. Records may be ragged.
func Build(fileType string, header []string, records [][]string, opts Options) *Profile {
	opts = opts.withDefaults()
	names := columnNames(header)
	if len(records) > opts.MaxRows {
		records = records[:opts.MaxRows]
	}

	p := &Profile{FileType: fileType, RowCount: len(records)}
	for i, name := range names {
		values := make([]string, len(records))
		for r, rec := range records {
			if i < len(rec) {
				values[r] = strings.TrimSpace(rec[i])
			}
		}
		p.Fields = append(p.Fields, describe(name, values, opts.SampleValues))
	}

	for r := 0; r < len(records) && r < opts.SampleRows; r++ {
		row := make(map[string]string, len(names))
		for i, name := range names {
			if i < len(records[r]) {
				row[name] = strings.TrimSpace(records[r][i])
			}
		}
		p.SampleRows = append(p.SampleRows, row)
	}
	return p
}

func describe(name string, values []string, maxSamples int) models.SourceField {
	var (
		nonNull []string
		nulls   int
		seen    = make(map[string]bool)
		samples []string
	)
	for _, v := range values {
		if utils.IsNull(v) {
			nulls++
			continue
		}
		nonNull = append(nonNull, v)
		if len(samples) < maxSamples && !seen[v] {
			seen[v] = true
			samples = append(samples, v)
		}
	}

	nullPct := 0.0
	if len(values) > 0 {
		nullPct = math.Round(float64(nulls)/float64(len(values))*10000) / 100
	}
	return models.SourceField{
		Name:           name,
		DataType:       InferType(nonNull),
		SampleValues:   samples,
		NullPercentage: nullPct,
	}
}

// InferType picks the narrowest type every value satisfies. Columns of only
// 0/1 count as numbers.
func InferType(values []string) models.DataType {
	if len(values) == 0 {
		return models.TypeString
	}
	allNumeric, allBool, allDate := true, true, true
	for _, v := range values {
		if allNumeric && !utils.LooksNumeric(v) {
			allNumeric = false
		}
		if allBool && !utils.LooksBoolean(v) {
			allBool = false
		}
		if allDate && !utils.LooksDate(v) {
			allDate = false
		}
	}
	switch {
	case allNumeric:
		return models.TypeNumber
	case allBool:
		return models.TypeBoolean
	case allDate:
		return models.TypeDate
	default:
		return models.TypeString
	}
}

// columnNames fills blank headers and suffixes repeated ones so every
// column has a unique name.
func columnNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(name)
		seen[key]++
		if n := seen[key]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
			seen[strings.ToLower(name)]++
		}
		out[i] = name
	}
	return out
}
