// Package capture provides the frames the pipeline processes: where they
// come from and how they are prepared for the recognition backend.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNoFrame means the source had nothing new this cycle.
	ErrNoFrame = errors.New("no frame available")
	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("frame source closed")
)

// Source yields raw encoded frames. Close releases the underlying device.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Open picks a source for location: an http(s) URL is polled as a
// snapshot endpoint, anything else is a directory of frames.
func Open(location string) (Source, error) {
	switch {
	case location == "":
		return nil, errors.New("no capture source configured")
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewSnapshotSource(location), nil
	default:
		info, err := os.Stat(location)
		if err != nil {
			return nil, fmt.Errorf("opening capture directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("capture source %s is not a directory", location)
		}
		return NewDirectorySource(location), nil
	}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
}

// IsImageFile reports whether name has an image extension the sources accept.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// DirectorySource yields each image file dropped into a directory once, in
// name order. Hidden files and non-images are ignored.
type DirectorySource struct {
	dir string

	mu     sync.Mutex
	seen   map[string]bool
	closed bool
}

func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir, seen: make(map[string]bool)}
}

func (s *DirectorySource) Next(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || s.seen[name] {
			continue
		}
		if !IsImageFile(name) {
			continue
		}
		s.seen[name] = true

		data, err := os.ReadFile(filepath.Join(s.dir, name)) //nolint:gosec // directory is from trusted config
		if err != nil {
			return nil, fmt.Errorf("reading frame %s: %w", name, err)
		}
		return data, nil
	}
	return nil, ErrNoFrame
}

func (s *DirectorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SnapshotSource fetches one still image per call from an IP camera
// snapshot URL.
type SnapshotSource struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	closed bool
}

func NewSnapshotSource(url string) *SnapshotSource {
	return &SnapshotSource{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *SnapshotSource) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot error (status %d)", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoFrame
	}
	return data, nil
}

func (s *SnapshotSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}
