package attendance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrStorage is returned when the session log cannot be created or appended.
var ErrStorage = errors.New("attendance storage failure")

const (
	logPrefix = "final_attendance_report_"
	logSuffix = ".csv"
)

// Log is the append-only record of one camera session. Append is safe for
// concurrent use; sequence numbers are assigned under the same lock as the write.
type Log struct {
	mu        sync.Mutex
	id        uuid.UUID
	path      string
	startedAt time.Time
	seq       int
}

// FileName returns the log file name for a session started at t.
func FileName(t time.Time) string {
	return logPrefix + t.Format("20060102_150405") + logSuffix
}

// Open creates the session log in dir and writes the header row. The
// returned Log is usable even when err is non-nil: every later Append retries
// creating the file.
func Open(dir string, startedAt time.Time) (*Log, error) {
	l := &Log{
		id:        uuid.New(),
		path:      uniquePath(dir, startedAt),
		startedAt: startedAt,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return l, fmt.Errorf("%w: creating log directory: %w", ErrStorage, err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return l, fmt.Errorf("%w: creating %s: %w", ErrStorage, l.path, err)
	}
	if err := writeRows(f, 0, Header); err != nil {
		return l, fmt.Errorf("%w: writing header: %w", ErrStorage, err)
	}
	return l, nil
}

// uniquePath avoids clobbering a log from another session started in the same second.
func uniquePath(dir string, t time.Time) string {
	path := filepath.Join(dir, FileName(t))
	for i := 2; ; i++ {
		if _, err := os.Stat(path); err != nil {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s%s_%d%s", logPrefix, t.Format("20060102_150405"), i, logSuffix))
	}
}

// Append assigns the next sequence number and durably writes one row. The
// sequence number is only consumed when the row is on disk: a failed write
// or sync is rolled back, so the next append cannot duplicate a number.
func (l *Log) Append(e Event) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Sequence = l.seq + 1

	f, err := openLogFile(l.path)
	if err != nil {
		return e, fmt.Errorf("%w: opening %s: %w", ErrStorage, l.path, err)
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return e, fmt.Errorf("%w: seeking %s: %w", ErrStorage, l.path, err)
	}

	rows := [][]string{e.Record()}
	if size == 0 {
		rows = [][]string{Header, e.Record()}
	}

	if err := writeRows(f, size, rows...); err != nil {
		return e, fmt.Errorf("%w: appending to %s: %w", ErrStorage, l.path, err)
	}

	l.seq = e.Sequence
	return e, nil
}

// logFile is the part of *os.File the log writes through.
type logFile interface {
	io.WriteSeeker
	Sync() error
	Truncate(size int64) error
	Close() error
}

var openLogFile = func(path string) (logFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// writeRows writes rows, syncs and closes f. On a write or sync failure the
// file is truncated back to size, which is where the rows started. Once the
// sync succeeded the rows count as written even if Close fails.
func writeRows(f logFile, size int64, rows ...[]string) error {
	w := csv.NewWriter(f)
	err := w.WriteAll(rows)
	if err != nil {
		err = fmt.Errorf("writing csv: %w", err)
	} else if err = f.Sync(); err != nil {
		err = fmt.Errorf("syncing: %w", err)
	}
	if err != nil {
		if terr := f.Truncate(size); terr != nil {
			slog.Error("failed to roll back partial attendance row", "size", size, "err", terr)
		}
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		slog.Warn("closing attendance log after a synced write failed", "err", err)
	}
	return nil
}

// ID returns the session identifier.
func (l *Log) ID() uuid.UUID {
	return l.id
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// StartedAt returns the session start time.
func (l *Log) StartedAt() time.Time {
	return l.startedAt
}

// Count returns the number of events appended so far.
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}
