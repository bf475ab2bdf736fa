package recognizer

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/identity"
)

// Embedder computes per-face embeddings for an image.
type Embedder interface {
	ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error)
}

// GalleryDetector labels faces locally: the backend only embeds them, and
// each embedding is matched against the enrolled gallery.
type GalleryDetector struct {
	embedder Embedder
	gallery  *gallery.Gallery
}

// NewGalleryDetector creates a detector over an enrolled gallery.
func NewGalleryDetector(embedder Embedder, g *gallery.Gallery) *GalleryDetector {
	return &GalleryDetector{embedder: embedder, gallery: g}
}

// Detect embeds every face in frame and labels it with the nearest enrolled
// face. Confidence is the cosine similarity clamped to [0, 1]; faces with no
// match are Unknown with confidence 0.
func (d *GalleryDetector) Detect(ctx context.Context, frame []byte) ([]identity.Detection, error) {
	resp, err := d.embedder.ComputeFaceEmbeddings(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("embedding faces: %w", err)
	}

	dets := make([]identity.Detection, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		det := identity.Detection{BBox: face.BBox, Label: identity.UnknownLabel}
		if label, sim, ok := d.gallery.Nearest(face.Embedding); ok {
			det.Label = label
			det.Confidence = max(0, min(1, sim))
		}
		dets = append(dets, det)
	}
	return dets, nil
}

// LargestFace returns the face with the largest bounding box, the one
// enrollment assumes belongs to the labelled person.
func LargestFace(faces []FaceEmbedding) (FaceEmbedding, bool) {
	var (
		best     FaceEmbedding
		bestArea = -1.0
	)
	for _, f := range faces {
		if len(f.BBox) != 4 || len(f.Embedding) == 0 {
			continue
		}
		if area := (f.BBox[2] - f.BBox[0]) * (f.BBox[3] - f.BBox[1]); area > bestArea {
			best, bestArea = f, area
		}
	}
	return best, bestArea >= 0
}
