// Package export models the raw gradebook exports produced by the LMS
// export layer and provides access to them per course section.
//
// Column names and order in an export are not contractually fixed: they vary
// with gradebook configuration and export run. Callers hand raw tables to
// the resolve package, which locates the semantic columns heuristically.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// eolIndicatorColumn is a junk trailing column the LMS appends to every
// export. It is dropped before the table is handed to callers.
const eolIndicatorColumn = "End-of-Line Indicator"

// RawTable is one section's gradebook export: rows of named columns, one row
// per student, with no guarantees about column order or naming beyond the
// identity columns being present in some form.
type RawTable struct {
	// SectionName is the section's display name, e.g. "CSCI-1150-001".
	SectionName string
	// OU is the opaque site identifier the table was exported from.
	OU string

	Columns []string
	Rows    [][]string
}

// FetchError reports that the exporter failed to produce a table for a site
// identifier. It does not abort sibling fetches; the orchestrator decides
// whether to retry the failed identifiers.
type FetchError struct {
	OU  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch export for ou %s: %v", e.OU, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Exporter produces one raw table per site identifier. The web-automation
// implementation that drives the LMS lives outside this module; this
// interface is the seam between the two.
type Exporter interface {
	Fetch(ctx context.Context, ou string) (*RawTable, error)
}

// CSVExporter reads exports from a directory of CSV files, one file per
// section, named "<SECTION-NAME>_<OU>.csv" (the naming the export layer
// uses when it saves downloads).
type CSVExporter struct {
	dir string
}

// NewCSVExporter returns an exporter backed by the given directory.
func NewCSVExporter(dir string) *CSVExporter {
	return &CSVExporter{dir: dir}
}

// Fetch locates the CSV for the given site identifier, parses it, and drops
// the end-of-line indicator column.
func (e *CSVExporter) Fetch(ctx context.Context, ou string) (*RawTable, error) {
	path, sectionName, err := e.findFile(ou)
	if err != nil {
		return nil, &FetchError{OU: ou, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, &FetchError{OU: ou, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{OU: ou, Err: err}
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, &FetchError{OU: ou, Err: fmt.Errorf("parse %s: %w", filepath.Base(path), err)}
	}
	if len(records) == 0 {
		return nil, &FetchError{OU: ou, Err: fmt.Errorf("%s is empty", filepath.Base(path))}
	}

	table := &RawTable{
		SectionName: sectionName,
		OU:          ou,
		Columns:     records[0],
		Rows:        records[1:],
	}
	return dropColumn(table, eolIndicatorColumn), nil
}

// findFile scans the export directory for a CSV whose name carries the
// given OU suffix and returns its path and the section display name encoded
// in the file name.
func (e *CSVExporter) findFile(ou string) (path, sectionName string, err error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return "", "", err
	}

	suffix := "_" + ou + ".csv"
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), suffix)
		return filepath.Join(e.dir, entry.Name()), name, nil
	}
	return "", "", fmt.Errorf("no export file for ou %s in %s", ou, e.dir)
}

// dropColumn returns the table without the named column. The input table is
// returned unchanged when the column is absent.
func dropColumn(t *RawTable, name string) *RawTable {
	idx := -1
	for i, col := range t.Columns {
		if col == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return t
	}

	out := &RawTable{SectionName: t.SectionName, OU: t.OU}
	out.Columns = append(out.Columns, t.Columns[:idx]...)
	out.Columns = append(out.Columns, t.Columns[idx+1:]...)
	for _, row := range t.Rows {
		if idx >= len(row) {
			out.Rows = append(out.Rows, row)
			continue
		}
		trimmed := make([]string, 0, len(row)-1)
		trimmed = append(trimmed, row[:idx]...)
		trimmed = append(trimmed, row[idx+1:]...)
		out.Rows = append(out.Rows, trimmed)
	}
	return out
}
