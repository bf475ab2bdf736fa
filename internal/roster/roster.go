// Package roster holds the in-memory student lookup used to turn a
// recognized label into a student record.
package roster

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/tabular"
)

// ErrDataSource is returned when the roster source exists but cannot be read.
var ErrDataSource = errors.New("roster source unreadable")

// Student is one roster entry. It is immutable once loaded.
type Student struct {
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	Group       string `json:"group"`
	Subgroup    string `json:"subgroup"`
}

// Source yields student records. Implementations return (nil, nil) when the
// source does not exist.
type Source interface {
	Students(ctx context.Context) ([]Student, error)
}

// Index is a dual-keyed lookup: by normalized identifier and by normalized
// display name.
type Index struct {
	students []Student
	byKey    map[string]int
}

// NewIndex builds an index. Identifier keys win over display-name keys; a
// repeated identifier keeps the first record.
func NewIndex(students []Student) *Index {
	idx := &Index{byKey: make(map[string]int, len(students)*2)}
	byName := make(map[string]int)

	for _, s := range students {
		id := identity.Key(s.Identifier)
		if id == "" {
			continue
		}
		if _, dup := idx.byKey[id]; dup {
			slog.Warn("duplicate roster identifier ignored", "identifier", s.Identifier)
			continue
		}
		idx.byKey[id] = len(idx.students)
		if name := identity.Key(s.DisplayName); name != "" {
			if _, taken := byName[name]; !taken {
				byName[name] = len(idx.students)
			}
		}
		idx.students = append(idx.students, s)
	}

	for name, pos := range byName {
		if _, ok := idx.byKey[name]; !ok {
			idx.byKey[name] = pos
		}
	}
	return idx
}

// Load reads every student from src. It always returns a usable index: on a
// read failure the index is empty and the error wraps ErrDataSource.
func Load(ctx context.Context, src Source) (*Index, error) {
	students, err := src.Students(ctx)
	if err != nil {
		return NewIndex(nil), fmt.Errorf("%w: %w", ErrDataSource, err)
	}
	return NewIndex(students), nil
}

// Lookup normalizes key and returns the matching student.
func (idx *Index) Lookup(key string) (Student, bool) {
	pos, ok := idx.byKey[identity.Key(key)]
	if !ok {
		return Student{}, false
	}
	return idx.students[pos], true
}

// Len returns the number of distinct students.
func (idx *Index) Len() int {
	return len(idx.students)
}

// Students returns the students in source order.
func (idx *Index) Students() []Student {
	out := make([]Student, len(idx.students))
	copy(out, idx.students)
	return out
}

// columns lists the accepted header spellings, including the legacy
// PRN/Name/Division/Batch layout.
var columns = tabular.Columns{
	"identifier":   {"id", "prn", "student_id"},
	"display_name": {"name", "student_name"},
	"group":        {"division", "student_group"},
	"subgroup":     {"batch", "sub_group"},
}

// CSVSource reads a roster CSV file.
type CSVSource struct {
	Path string
}

// Students implements Source. A missing file is an empty roster.
func (s CSVSource) Students(_ context.Context) ([]Student, error) {
	records, skipped, err := tabular.ReadFile(s.Path, columns, []string{"identifier"})
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("roster file not found, starting with an empty roster", "path", s.Path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", s.Path, err)
	}
	for _, rowErr := range skipped {
		slog.Warn("skipping roster row", "path", s.Path, "line", rowErr.Line, "reason", rowErr.Reason)
	}

	students := make([]Student, 0, len(records))
	for _, rec := range records {
		students = append(students, Student{
			Identifier:  rec.Get("identifier"),
			DisplayName: rec.Get("display_name"),
			Group:       rec.Get("group"),
			Subgroup:    rec.Get("subgroup"),
		})
	}
	return students, nil
}
