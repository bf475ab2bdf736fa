package roster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoad_DualKeyedLookup(t *testing.T) {
	path := writeFile(t, "students.csv",
		"identifier,display_name,group,subgroup\n"+
			"P1,Jane Doe,A,1\n"+
			"P2,John Roe,B,\n")

	idx, err := Load(context.Background(), CSVSource{Path: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 students, got %d", idx.Len())
	}

	tests := []struct {
		key      string
		expected string
	}{
		{"P1", "P1"},
		{" p1 ", "P1"},
		{"Jane Doe", "P1"},
		{"janedoe", "P1"},
		{"JOHN  ROE", "P2"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			s, ok := idx.Lookup(tt.key)
			if !ok {
				t.Fatalf("Lookup(%q) found nothing", tt.key)
			}
			if s.Identifier != tt.expected {
				t.Errorf("Lookup(%q) = %q, want %q", tt.key, s.Identifier, tt.expected)
			}
		})
	}

	if _, ok := idx.Lookup("nobody"); ok {
		t.Error("expected no match for unknown key")
	}
}

func TestLoad_LegacyHeaders(t *testing.T) {
	path := writeFile(t, "students.csv",
		"PRN,Name,Class,Division,Batch\n"+
			"2021001,Asha Patil,TE,A,1\n")

	idx, err := Load(context.Background(), CSVSource{Path: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	s, ok := idx.Lookup("2021001")
	if !ok {
		t.Fatal("expected student by PRN")
	}
	if s.DisplayName != "Asha Patil" || s.Group != "A" || s.Subgroup != "1" {
		t.Errorf("unexpected student: %+v", s)
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	idx, err := Load(context.Background(), CSVSource{Path: filepath.Join(t.TempDir(), "absent.csv")})
	if err != nil {
		t.Fatalf("missing file must not be an error, got %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("expected empty index, got %d", idx.Len())
	}
}

func TestLoad_UnreadableSourceYieldsEmptyIndex(t *testing.T) {
	// A directory opens fine but cannot be read as CSV.
	idx, err := Load(context.Background(), CSVSource{Path: t.TempDir()})
	if !errors.Is(err, ErrDataSource) {
		t.Fatalf("expected ErrDataSource, got %v", err)
	}
	if idx == nil {
		t.Fatal("index must never be nil")
	}
	for _, key := range []string{"P1", "Jane Doe", ""} {
		if _, ok := idx.Lookup(key); ok {
			t.Errorf("Lookup(%q) on empty index returned a student", key)
		}
	}
}

type failingSource struct{}

func (failingSource) Students(context.Context) ([]Student, error) {
	return nil, errors.New("connection refused")
}

func TestLoad_FailingSource(t *testing.T) {
	idx, err := Load(context.Background(), failingSource{})
	if !errors.Is(err, ErrDataSource) {
		t.Fatalf("expected ErrDataSource, got %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("expected empty index, got %d", idx.Len())
	}
}

func TestNewIndex_KeyPrecedence(t *testing.T) {
	idx := NewIndex([]Student{
		{Identifier: "P1", DisplayName: "Alex"},
		{Identifier: "Alex", DisplayName: "Other"},
		{Identifier: "P1", DisplayName: "Duplicate"},
		{Identifier: "", DisplayName: "No Id"},
	})

	if idx.Len() != 2 {
		t.Fatalf("expected 2 students, got %d", idx.Len())
	}
	s, _ := idx.Lookup("alex")
	if s.Identifier != "Alex" {
		t.Errorf("identifier key must win over display name, got %+v", s)
	}
	s, _ = idx.Lookup("P1")
	if s.DisplayName != "Alex" {
		t.Errorf("first record must win for a repeated identifier, got %+v", s)
	}
	if _, ok := idx.Lookup("No Id"); ok {
		t.Error("records without identifier must be dropped")
	}
}
