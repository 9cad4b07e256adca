// Package dataset loads numeric tables whose trailing columns are the
// outputs a fuzzy system predicts.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Dataset is an in-memory table of float64 rows. Missing cells are NaN.
type Dataset struct {
	name    string
	columns []string
	ids     []string
	rows    [][]float64
}

type Options struct {
	// Name defaults to the file name without extension.
	Name string
	// IDColumn drops the first column and keeps it as a row identifier.
	IDColumn  bool
	Delimiter rune
}

func New(name string, columns []string, rows [][]float64) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset %s has no columns", name)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("dataset %s row %d: got %d values want %d", name, i+1, len(row), len(columns))
		}
	}
	return &Dataset{
		name:    name,
		columns: append([]string(nil), columns...),
		rows:    rows,
	}, nil
}

func (d *Dataset) Name() string      { return d.name }
func (d *Dataset) Columns() []string { return d.columns }
func (d *Dataset) Rows() [][]float64 { return d.rows }
func (d *Dataset) IDs() []string     { return d.ids }
func (d *Dataset) Len() int          { return len(d.rows) }

// Head returns copies of the first limit rows; limit <= 0 returns all.
func (d *Dataset) Head(limit int) [][]float64 {
	if limit <= 0 || limit > len(d.rows) {
		limit = len(d.rows)
	}
	out := make([][]float64, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, append([]float64(nil), d.rows[i]...))
	}
	return out
}

// Missing counts NaN cells per column.
func (d *Dataset) Missing() []int {
	counts := make([]int, len(d.columns))
	for _, row := range d.rows {
		for c, v := range row {
			if math.IsNaN(v) {
				counts[c]++
			}
		}
	}
	return counts
}

func Load(path string, opts Options) (*Dataset, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("dataset path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if opts.Name == "" {
		base := filepath.Base(path)
		opts.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return ReadCSV(f, opts)
}

// ReadCSV parses a header line followed by numeric rows. Empty cells and
// the markers "?", "NA" and "NaN" are read as missing.
func ReadCSV(in io.Reader, opts Options) (*Dataset, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "dataset"
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("dataset %s is empty", name)
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset %s header: %w", name, err)
	}
	first := 0
	if opts.IDColumn {
		first = 1
	}
	if len(header) <= first {
		return nil, fmt.Errorf("dataset %s has no value columns", name)
	}
	columns := make([]string, 0, len(header)-first)
	for i, h := range header[first:] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("x%d", i+1)
		}
		columns = append(columns, h)
	}

	d := &Dataset{name: name, columns: columns, rows: make([][]float64, 0, 256)}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read dataset %s line %d: %w", name, line, err)
		}
		if blankRecord(record) {
			continue
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("dataset %s line %d: got %d fields want %d", name, line, len(record), len(header))
		}
		if opts.IDColumn {
			d.ids = append(d.ids, strings.TrimSpace(record[0]))
		}
		row := make([]float64, len(columns))
		for c, raw := range record[first:] {
			v, err := parseCell(raw)
			if err != nil {
				return nil, fmt.Errorf("dataset %s line %d column %s: %w", name, line, columns[c], err)
			}
			row[c] = v
		}
		d.rows = append(d.rows, row)
	}
	return d, nil
}

func parseCell(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", "?", "na", "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes columns and rows in the format ReadCSV accepts. NaN cells
// are written as empty fields.
func WriteCSV(w io.Writer, columns []string, rows [][]float64) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("write row %d: got %d values want %d", i+1, len(row), len(columns))
		}
		for c, v := range row {
			if math.IsNaN(v) {
				record[c] = ""
				continue
			}
			record[c] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
