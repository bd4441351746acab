package logger

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
)

// CSVName is the name of the CSVWriter
const CSVName = "csv"

// CSVWriter streams one row per dump to a CSV file. Keys that first
// appear after the header has been written extend the header, and the
// rows already on disk are rewritten with empty cells for them.
type CSVWriter struct {
	file    *os.File
	writer  *csv.Writer
	columns []string
	known   map[string]bool
	rows    int
}

// NewCSVWriter returns a new CSVWriter writing to filename
func NewCSVWriter(filename string) (*CSVWriter, error) {
	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC,
		0644)
	if err != nil {
		return nil, err
	}

	return &CSVWriter{
		file:    file,
		writer:  csv.NewWriter(file),
		columns: []string{"step"},
		known:   map[string]bool{"step": true},
	}, nil
}

// Name implements the Writer interface
func (c *CSVWriter) Name() string {
	return CSVName
}

// Write implements the Writer interface
func (c *CSVWriter) Write(step int, keys []string,
	values map[string]float64) error {
	row := map[string]string{"step": strconv.Itoa(step)}
	oldColumns := c.columns
	extended := false
	for _, key := range keys {
		if !c.known[key] {
			if !extended {
				c.columns = append([]string(nil), c.columns...)
			}
			c.known[key] = true
			c.columns = append(c.columns, key)
			extended = true
		}
		row[key] = formatFloat(values[key])
	}
	if extended {
		sort.Strings(c.columns[1:])
	}

	switch {
	case c.rows == 0:
		if err := c.writer.Write(c.columns); err != nil {
			return err
		}
	case extended:
		if err := c.rewrite(oldColumns); err != nil {
			return fmt.Errorf("write: could not extend header: %w", err)
		}
	}

	if err := c.writer.Write(c.record(row)); err != nil {
		return err
	}
	c.rows++
	c.writer.Flush()
	return c.writer.Error()
}

// rewrite reads back the rows on disk, which were written with
// oldColumns, and writes them again under the current header
func (c *CSVWriter) rewrite(oldColumns []string) error {
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	records, err := csv.NewReader(c.file).ReadAll()
	if err != nil {
		return err
	}

	if err := c.file.Truncate(0); err != nil {
		return err
	}
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	c.writer = csv.NewWriter(c.file)

	if err := c.writer.Write(c.columns); err != nil {
		return err
	}
	for _, record := range records[1:] {
		row := make(map[string]string, len(oldColumns))
		for i, col := range oldColumns {
			row[col] = record[i]
		}
		if err := c.writer.Write(c.record(row)); err != nil {
			return err
		}
	}
	return nil
}

func (c *CSVWriter) record(row map[string]string) []string {
	record := make([]string, len(c.columns))
	for i, col := range c.columns {
		record[i] = row[col]
	}
	return record
}

// Close implements the Writer interface
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}

func formatFloat(x float64) string {
	if math.IsNaN(x) {
		return "nan"
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}
