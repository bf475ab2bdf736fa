// Package gallery is the local face gallery: enrolled face embeddings,
// each tagged with the roster label it belongs to, searchable by cosine
// similarity through an HNSW graph.
package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW parameters for 512-dim face embeddings.
const (
	maxNeighbors = 16
	searchK      = 3
)

// ErrDimensionMismatch is returned when an embedding does not match the
// dimension of the embeddings already enrolled.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// sidecar is the JSON file saved next to the graph export.
type sidecar struct {
	Dim    int               `json:"dim"`
	Labels map[uint64]string `json:"labels"`
}

// Gallery is safe for concurrent use.
type Gallery struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	labels map[uint64]string
	dim    int
	nextID uint64
}

// New creates an empty gallery.
func New() *Gallery {
	return &Gallery{
		graph:  newGraph(),
		labels: make(map[uint64]string),
	}
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// Add enrolls one embedding under label.
func (g *Gallery) Add(label string, embedding []float32) error {
	if label == "" {
		return errors.New("empty label")
	}
	if len(embedding) == 0 {
		return errors.New("empty embedding")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.dim != 0 && len(embedding) != g.dim {
		return fmt.Errorf("%w: got %d, gallery has %d", ErrDimensionMismatch, len(embedding), g.dim)
	}
	g.dim = len(embedding)

	g.nextID++
	g.graph.Add(hnsw.MakeNode(g.nextID, embedding))
	g.labels[g.nextID] = label
	return nil
}

// Nearest returns the label of the enrolled face most similar to embedding
// and its cosine similarity. ok is false when the gallery is empty or the
// dimension does not match.
func (g *Gallery) Nearest(embedding []float32) (string, float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.labels) == 0 || len(embedding) != g.dim {
		return "", 0, false
	}

	var (
		best    string
		bestSim = -2.0
	)
	// HNSW is approximate; rerank a few candidates by exact similarity.
	for _, n := range g.graph.Search(embedding, searchK) {
		label, ok := g.labels[n.Key]
		if !ok {
			continue
		}
		if sim := CosineSimilarity(embedding, n.Value); sim > bestSim {
			best, bestSim = label, sim
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestSim, true
}

// Len returns the number of enrolled embeddings.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.labels)
}

// Labels returns the number of embeddings per label.
func (g *Gallery) Labels() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]int)
	for _, l := range g.labels {
		out[l]++
	}
	return out
}

// Save writes the graph to path and the labels to path+".labels". An empty
// gallery removes both files.
func (g *Gallery) Save(path string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.labels) == 0 {
		// Best-effort cleanup.
		_ = os.Remove(path)
		_ = os.Remove(path + ".labels")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create gallery file: %w", err)
	}
	if err := g.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close gallery file: %w", err)
	}

	data, err := json.Marshal(sidecar{Dim: g.dim, Labels: g.labels})
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	if err := os.WriteFile(path+".labels", data, 0o600); err != nil {
		return fmt.Errorf("failed to write labels file: %w", err)
	}
	return nil
}

// Load reads a gallery saved with Save. A missing file yields an empty gallery.
func Load(path string) (*Gallery, error) {
	g := New()

	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if errors.Is(err, fs.ErrNotExist) {
		return g, nil
	}
	if err != nil {
		return g, fmt.Errorf("failed to open gallery: %w", err)
	}
	defer f.Close()

	data, err := os.ReadFile(path + ".labels") //nolint:gosec // path is from trusted config
	if err != nil {
		return g, fmt.Errorf("failed to read labels file: %w", err)
	}
	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		return g, fmt.Errorf("failed to unmarshal labels: %w", err)
	}

	graph := newGraph()
	if err := graph.Import(f); err != nil {
		return New(), fmt.Errorf("failed to import HNSW graph: %w", err)
	}

	g.graph = graph
	g.dim = meta.Dim
	if meta.Labels != nil {
		g.labels = meta.Labels
	}
	for id := range g.labels {
		g.nextID = max(g.nextID, id)
	}
	return g, nil
}
