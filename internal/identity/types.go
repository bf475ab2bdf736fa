// Package identity holds the identity-key rules and the per-frame detection
// types shared by the roster, the timetable and the recognition pipeline.
package identity

// UnknownLabel is what the display shows for faces below the confidence threshold.
const UnknownLabel = "Unknown"

// Detection is one face reported by the detector/classifier for a frame.
type Detection struct {
	BBox       []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
}
