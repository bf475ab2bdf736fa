package attendance

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SweepResult summarizes one retention sweep.
type SweepResult struct {
	Deleted []string
	Kept    int
	Failed  int
}

// IsSessionLog reports whether name is a session log file written by Open.
func IsSessionLog(name string) bool {
	return strings.HasPrefix(name, logPrefix) && strings.EqualFold(filepath.Ext(name), logSuffix)
}

// Expired lists the session logs in dir that Sweep would delete, without
// deleting anything.
func Expired(dir string, maxAge time.Duration, now time.Time, keep ...string) ([]string, error) {
	expired, _, err := scan(dir, now.Add(-maxAge), keep)
	return expired, err
}

// Sweep deletes session logs in dir whose last modification is older than
// maxAge relative to now. Paths in keep (the active session) are never
// touched, and files not named like a session log are ignored. A failed
// delete is logged and skipped; only an unreadable directory is an error.
// A missing directory is nothing to sweep.
func Sweep(dir string, maxAge time.Duration, now time.Time, keep ...string) (SweepResult, error) {
	expired, res, err := scan(dir, now.Add(-maxAge), keep)
	if err != nil {
		return res, err
	}

	for _, path := range expired {
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("failed to delete attendance log", "path", path, "err", err)
				res.Failed++
			}
			continue
		}
		res.Deleted = append(res.Deleted, path)
	}

	slog.Info("attendance log sweep completed",
		"dir", dir,
		"max_age", maxAge.String(),
		"deleted", len(res.Deleted),
		"kept", res.Kept,
		"failed", res.Failed,
	)
	return res, nil
}

// scan returns the session logs last modified before cutoff. The result
// counts kept logs and logs that could not be inspected.
func scan(dir string, cutoff time.Time, keep []string) ([]string, SweepResult, error) {
	var res SweepResult

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, res, nil
	}
	if err != nil {
		return nil, res, fmt.Errorf("%w: reading %s: %w", ErrStorage, dir, err)
	}

	protected := make(map[string]bool, len(keep))
	for _, k := range keep {
		protected[filepath.Clean(k)] = true
	}

	var expired []string
	for _, entry := range entries {
		if entry.IsDir() || !IsSessionLog(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if protected[filepath.Clean(path)] {
			res.Kept++
			continue
		}

		info, err := entry.Info()
		if err != nil {
			slog.Warn("failed to stat attendance log", "path", path, "err", err)
			res.Failed++
			continue
		}
		if !info.ModTime().Before(cutoff) {
			res.Kept++
			continue
		}
		expired = append(expired, path)
	}
	return expired, res, nil
}
