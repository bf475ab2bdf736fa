// Package tabular reads header-addressed CSV files (rosters, timetables)
// into explicit records, tolerating column aliases, extra columns and a BOM.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/identity"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("required column missing")

// Columns maps a canonical column name to the header spellings accepted for it.
// Header cells are compared after identity.Key and with underscores and dashes removed.
type Columns map[string][]string

// Record is one data row addressed by canonical column name.
type Record struct {
	Line   int
	fields map[string]string
}

// Get returns the trimmed value of a canonical column, or "" when absent.
func (r Record) Get(col string) string {
	return r.fields[col]
}

// RowError describes a data row that was skipped.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func headerKey(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.NewReplacer("_", "", "-", "").Replace(identity.Key(s))
}

// resolveHeader maps column positions to canonical names.
func resolveHeader(header []string, cols Columns) map[int]string {
	aliases := make(map[string]string)
	for canonical, names := range cols {
		aliases[headerKey(canonical)] = canonical
		for _, n := range names {
			aliases[headerKey(n)] = canonical
		}
	}

	positions := make(map[int]string)
	taken := make(map[string]bool)
	for i, h := range header {
		canonical, ok := aliases[headerKey(h)]
		if !ok || taken[canonical] {
			continue
		}
		positions[i] = canonical
		taken[canonical] = true
	}
	return positions
}

// Read parses CSV from r. Rows with an empty value in any required column are
// returned as RowErrors and left out of the records.
func Read(r io.Reader, cols Columns, required []string) ([]Record, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	positions := resolveHeader(header, cols)
	present := make(map[string]bool, len(positions))
	for _, c := range positions {
		present[c] = true
	}
	for _, req := range required {
		if !present[req] {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, req)
		}
	}

	var records []Record
	var skipped []RowError
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped = append(skipped, RowError{Line: perr.Line, Reason: perr.Err.Error()})
				continue
			}
			return records, skipped, fmt.Errorf("reading row: %w", err)
		}
		if isBlank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)

		rec := Record{Line: line, fields: make(map[string]string, len(positions))}
		for i, canonical := range positions {
			if i < len(row) {
				rec.fields[canonical] = strings.TrimSpace(row[i])
			}
		}

		if missing := firstMissing(rec, required); missing != "" {
			skipped = append(skipped, RowError{Line: line, Reason: "missing " + missing})
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// ReadFile opens path and calls Read. A missing file yields an error
// wrapping fs.ErrNotExist so callers can treat it as empty.
func ReadFile(path string, cols Columns, required []string) ([]Record, []RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return Read(f, cols, required)
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func firstMissing(rec Record, required []string) string {
	for _, req := range required {
		if rec.Get(req) == "" {
			return req
		}
	}
	return ""
}
