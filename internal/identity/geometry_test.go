package identity

import (
	"math"
	"testing"
)

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		bbox1    []float64
		bbox2    []float64
		expected float64
	}{
		{
			name:     "identical boxes",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{0, 0, 10, 10},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{20, 20, 30, 30},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{5, 5, 15, 15},
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "invalid bbox1",
			bbox1:    []float64{0, 0, 10},
			bbox2:    []float64{0, 0, 10, 10},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.bbox1, tt.bbox2)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.bbox1, tt.bbox2, result, tt.expected)
			}
		})
	}
}

func TestSuppressOverlaps(t *testing.T) {
	dets := []Detection{
		{BBox: []float64{0, 0, 10, 10}, Label: "P1", Confidence: 0.6},
		{BBox: []float64{1, 1, 10, 10}, Label: "p1", Confidence: 0.9},
		{BBox: []float64{1, 1, 10, 10}, Label: "P2", Confidence: 0.8},
		{BBox: []float64{50, 50, 60, 60}, Label: "P1", Confidence: 0.4},
	}

	kept := SuppressOverlaps(dets, 0.5)

	if len(kept) != 3 {
		t.Fatalf("expected 3 detections, got %d: %+v", len(kept), kept)
	}
	if kept[0].Confidence != 0.9 {
		t.Errorf("expected the higher-confidence P1 box to survive, got %+v", kept[0])
	}
	if kept[1].Label != "P2" {
		t.Errorf("different label must not be suppressed, got %+v", kept[1])
	}
	if kept[2].BBox[0] != 50 {
		t.Errorf("distant box must not be suppressed, got %+v", kept[2])
	}
}

func TestSuppressOverlaps_Disabled(t *testing.T) {
	dets := []Detection{
		{BBox: []float64{0, 0, 10, 10}, Label: "P1", Confidence: 0.6},
		{BBox: []float64{0, 0, 10, 10}, Label: "P1", Confidence: 0.9},
	}
	if got := SuppressOverlaps(dets, 0); len(got) != 2 {
		t.Errorf("threshold 0 should keep everything, got %d", len(got))
	}
}
