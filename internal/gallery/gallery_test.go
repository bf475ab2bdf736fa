package gallery

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

// unit returns a 4-dim vector pointing mostly along axis i.
func unit(i int, noise float32) []float32 {
	v := []float32{noise, noise, noise, noise}
	v[i] = 1
	return v
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1},
		{"length mismatch", []float32{1}, []float32{1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, -1},
		{"empty", nil, nil, -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.expected) > 1e-6 {
				t.Errorf("CosineSimilarity = %f; want %f", got, tc.expected)
			}
		})
	}
}

func TestGallery_Nearest(t *testing.T) {
	g := New()
	for i, label := range []string{"P1", "P2", "P3", "P4"} {
		if err := g.Add(label, unit(i, 0.05)); err != nil {
			t.Fatalf("Add(%s) failed: %v", label, err)
		}
	}

	label, sim, ok := g.Nearest(unit(2, 0.1))
	if !ok {
		t.Fatal("expected a match")
	}
	if label != "P3" {
		t.Errorf("expected P3, got %s", label)
	}
	if sim < 0.9 || sim > 1 {
		t.Errorf("expected high similarity, got %f", sim)
	}
}

func TestGallery_EmptyAndMismatch(t *testing.T) {
	g := New()
	if _, _, ok := g.Nearest(unit(0, 0)); ok {
		t.Error("empty gallery must not match")
	}

	if err := g.Add("P1", unit(0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := g.Add("P2", []float32{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, _, ok := g.Nearest([]float32{1, 2}); ok {
		t.Error("query with wrong dimension must not match")
	}
	if err := g.Add("", unit(0, 0)); err == nil {
		t.Error("expected error for empty label")
	}
}

func TestGallery_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.hnsw")

	g := New()
	for i, label := range []string{"P1", "P1", "P2"} {
		if err := g.Add(label, unit(i, 0.01)); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Len() != 3 {
		t.Errorf("expected 3 embeddings, got %d", loaded.Len())
	}
	if counts := loaded.Labels(); counts["P1"] != 2 || counts["P2"] != 1 {
		t.Errorf("unexpected label counts %v", counts)
	}
	if label, _, ok := loaded.Nearest(unit(2, 0.02)); !ok || label != "P2" {
		t.Errorf("expected P2 after reload, got %q %v", label, ok)
	}

	// New enrollments after a reload must not reuse node ids.
	if err := loaded.Add("P3", unit(3, 0.01)); err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 4 {
		t.Errorf("expected 4 embeddings, got %d", loaded.Len())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	g, err := Load(filepath.Join(t.TempDir(), "absent.hnsw"))
	if err != nil {
		t.Fatalf("missing gallery must not fail, got %v", err)
	}
	if g.Len() != 0 {
		t.Errorf("expected empty gallery, got %d", g.Len())
	}
}
