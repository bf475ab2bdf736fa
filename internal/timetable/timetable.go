// Package timetable holds the weekly class schedule and resolves which
// class a student is attending at a point in time.
package timetable

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/tabular"
)

var (
	// ErrDataSource is returned when the timetable source exists but cannot be read.
	ErrDataSource = errors.New("timetable source unreadable")
	// ErrMalformedEntry marks a schedule row whose time interval cannot be parsed.
	ErrMalformedEntry = errors.New("malformed schedule entry")
)

// Row is a schedule row as it appears in the source.
type Row struct {
	Day        string
	Time       string // "HH:MM-HH:MM"
	Group      string
	Subgroup   string
	Subject    string
	Instructor string
}

// Entry is a loaded schedule entry. Day, Group and Subgroup are normalized
// with identity.Key; Subject and Instructor are kept verbatim for display.
type Entry struct {
	Day        string   `json:"day"`
	Interval   Interval `json:"-"`
	Time       string   `json:"time"`
	Group      string   `json:"group"`
	Subgroup   string   `json:"subgroup"`
	Subject    string   `json:"subject"`
	Instructor string   `json:"instructor"`

	err error
}

// Err returns why the entry can never match, or nil.
func (e Entry) Err() error {
	return e.err
}

// Source yields schedule rows. Implementations return (nil, nil) when the
// source does not exist.
type Source interface {
	Rows(ctx context.Context) ([]Row, error)
}

// Index is the ordered schedule. Order is the tie-break for overlapping
// entries: the earliest row wins.
type Index struct {
	entries []Entry
}

// NewIndex normalizes rows into entries, keeping source order. Rows with an
// unparseable interval are kept but never match.
func NewIndex(rows []Row) *Index {
	idx := &Index{entries: make([]Entry, 0, len(rows))}
	for i, r := range rows {
		e := Entry{
			Day:        identity.Key(r.Day),
			Time:       r.Time,
			Group:      identity.Key(r.Group),
			Subgroup:   identity.Key(r.Subgroup),
			Subject:    r.Subject,
			Instructor: r.Instructor,
		}
		iv, err := ParseInterval(r.Time)
		if err != nil {
			slog.Warn("schedule entry will be skipped", "position", i+1, "day", r.Day, "err", err)
			e.err = err
		}
		e.Interval = iv
		idx.entries = append(idx.entries, e)
	}
	return idx
}

// Load reads every row from src. It always returns a usable index: on a
// read failure the index is empty and the error wraps ErrDataSource.
func Load(ctx context.Context, src Source) (*Index, error) {
	rows, err := src.Rows(ctx)
	if err != nil {
		return NewIndex(nil), fmt.Errorf("%w: %w", ErrDataSource, err)
	}
	return NewIndex(rows), nil
}

// Len returns the number of entries, malformed ones included.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entries returns the entries in index order.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

var columns = tabular.Columns{
	"day":        {"day_of_week", "weekday"},
	"time":       {"time_interval", "time_range", "interval", "slot"},
	"group":      {"division", "student_group"},
	"subgroup":   {"batch", "sub_group"},
	"subject":    {"course"},
	"instructor": {"faculty", "teacher"},
}

// CSVSource reads a timetable CSV file.
type CSVSource struct {
	Path string
}

// Rows implements Source. A missing file is an empty timetable.
func (s CSVSource) Rows(_ context.Context) ([]Row, error) {
	records, skipped, err := tabular.ReadFile(s.Path, columns, []string{"day", "time"})
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("timetable file not found, subjects will be left empty", "path", s.Path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading timetable %s: %w", s.Path, err)
	}
	for _, rowErr := range skipped {
		slog.Warn("skipping timetable row", "path", s.Path, "line", rowErr.Line, "reason", rowErr.Reason)
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{
			Day:        rec.Get("day"),
			Time:       rec.Get("time"),
			Group:      rec.Get("group"),
			Subgroup:   rec.Get("subgroup"),
			Subject:    rec.Get("subject"),
			Instructor: rec.Get("instructor"),
		})
	}
	return rows, nil
}
