// Package pipeline runs the camera session: one frame cycle at a time it
// captures a frame, asks the recognition backend who is in it, feeds the
// observations to the confirmation reducer and turns confirmations into
// schedule-annotated attendance records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/timetable"
)

const (
	defaultInterval = 30 * time.Millisecond
	mirrorTimeout   = 5 * time.Second
	noFacesText     = "No recognized faces."
)

// Detector is the detector/classifier boundary: every face in a frame with
// its label and confidence. A call blocks for the duration of the cycle.
type Detector interface {
	Detect(ctx context.Context, frame []byte) ([]identity.Detection, error)
}

// Mirror receives a copy of every appended event. Failures never affect the
// session log.
type Mirror interface {
	InsertEvent(ctx context.Context, sessionID uuid.UUID, e attendance.Event) error
}

// Options tunes the frame cycle.
type Options struct {
	Interval    time.Duration
	MaxWidth    int
	OverlapIoU  float64
	Recognition recognition.Options
}

// Deps are the collaborators of a session. Mirror and Now are optional.
type Deps struct {
	Source    capture.Source
	Detector  Detector
	Roster    *roster.Index
	Timetable *timetable.Index
	Log       *attendance.Log
	Mirror    Mirror
	Now       func() time.Time
}

// Status is a point-in-time view of the session.
type Status struct {
	SessionID         string    `json:"session_id"`
	LogPath           string    `json:"log_path"`
	StartedAt         time.Time `json:"started_at"`
	Frames            int64     `json:"frames_processed"`
	BackendErrors     int64     `json:"backend_errors"`
	StorageErrors     int64     `json:"storage_errors"`
	EventsAppended    int       `json:"events_appended"`
	TrackedIdentities int       `json:"tracked_identities"`
	Recognized        []string  `json:"recognized"`
	Display           string    `json:"display"`
}

// Session owns the reducer state of one camera session. Run drives it from a
// single goroutine; Status, Events and the listener methods are safe to call
// from others.
type Session struct {
	broadcaster

	opts      Options
	source    capture.Source
	detector  Detector
	roster    *roster.Index
	timetable *timetable.Index
	log       *attendance.Log
	mirror    Mirror
	now       func() time.Time
	reducer   *recognition.Reducer

	mu     sync.RWMutex
	status Status
	events []attendance.Event
}

// NewSession wires a session. Roster and Timetable default to empty indexes.
func NewSession(deps Deps, opts Options) *Session {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Roster == nil {
		deps.Roster = roster.NewIndex(nil)
	}
	if deps.Timetable == nil {
		deps.Timetable = timetable.NewIndex(nil)
	}

	s := &Session{
		opts:      opts,
		source:    deps.Source,
		detector:  deps.Detector,
		roster:    deps.Roster,
		timetable: deps.Timetable,
		log:       deps.Log,
		mirror:    deps.Mirror,
		now:       deps.Now,
		reducer:   recognition.NewReducer(opts.Recognition),
	}
	s.status.Display = noFacesText
	if deps.Log != nil {
		s.status.SessionID = deps.Log.ID().String()
		s.status.LogPath = deps.Log.Path()
		s.status.StartedAt = deps.Log.StartedAt()
	}
	return s
}

// Run executes frame cycles at the configured interval until ctx is done or
// the source is closed. Cycles never overlap: a slow backend call delays the
// next tick. The source is closed when Run returns.
func (s *Session) Run(ctx context.Context) error {
	if s.source == nil || s.detector == nil {
		return errors.New("session needs a frame source and a detector")
	}
	defer func() {
		if err := s.source.Close(); err != nil {
			slog.Warn("failed to release frame source", "err", err)
		}
		s.closeAll()
	}()

	slog.Info("camera session started",
		"session", s.status.SessionID,
		"log", s.status.LogPath,
		"interval", s.opts.Interval.String(),
		"confirm_count", s.reducer.Options().ConfirmCount,
		"min_confidence", s.reducer.Options().MinConfidence,
		"window", s.reducer.Options().Window.String(),
		"mode", s.reducer.Options().Mode.String(),
	)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("camera session stopped", "session", s.status.SessionID, "events", s.Status().EventsAppended)
			return nil
		case <-ticker.C:
			if errors.Is(s.Cycle(ctx), capture.ErrClosed) {
				return nil
			}
		}
	}
}

// Cycle processes one frame. Every failure is contained here: a capture or
// backend error counts as a frame without faces. Only capture.ErrClosed is
// returned, so Run can stop.
func (s *Session) Cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("frame cycle panicked", "panic", fmt.Sprint(r))
			err = nil
		}
	}()

	frame, err := s.source.Next(ctx)
	switch {
	case errors.Is(err, capture.ErrNoFrame):
		return nil
	case errors.Is(err, capture.ErrClosed):
		return err
	case err != nil:
		slog.Warn("frame capture failed", "err", err)
		return nil
	}

	if prepared, err := capture.Prepare(frame, s.opts.MaxWidth); err != nil {
		slog.Debug("frame left unprepared", "err", err)
	} else {
		frame = prepared
	}

	dets, err := s.detector.Detect(ctx, frame)
	if err != nil {
		slog.Warn("recognition failed, treating frame as empty", "err", err)
		s.mu.Lock()
		s.status.BackendErrors++
		s.mu.Unlock()
		dets = nil
	}

	s.Observe(ctx, dets, s.now())
	return nil
}

// Observe feeds one frame's detections, all stamped at, through the reducer
// and records an attendance event for each confirmation. It returns the
// events appended.
func (s *Session) Observe(ctx context.Context, dets []identity.Detection, at time.Time) []attendance.Event {
	dets = identity.SuppressOverlaps(dets, s.opts.OverlapIoU)

	var (
		appended   []attendance.Event
		recognized = make([]string, 0, len(dets))
	)
	for _, det := range dets {
		obs := recognition.Observation{Label: strings.TrimSpace(det.Label), Confidence: det.Confidence, At: at}
		if !s.reducer.Qualifies(obs) {
			recognized = append(recognized, identity.UnknownLabel)
			continue
		}
		recognized = append(recognized, obs.Label)

		c, ok := s.reducer.Observe(obs)
		if !ok {
			continue
		}
		if e, ok := s.confirm(ctx, c); ok {
			appended = append(appended, e)
		}
	}

	s.mu.Lock()
	s.status.Frames++
	s.status.TrackedIdentities = s.reducer.Len()
	s.status.Recognized = uniqueSorted(recognized)
	s.status.Display = displayText(s.status.Recognized)
	s.mu.Unlock()

	return appended
}

// confirm turns a confirmation into an attendance event. The schedule is
// resolved now, at confirmation time.
func (s *Session) confirm(ctx context.Context, c recognition.Confirmation) (attendance.Event, bool) {
	student, ok := s.roster.Lookup(c.Key)
	if !ok {
		slog.Warn("confirmed face is not on the roster, no attendance recorded", "label", c.Label, "at", c.At)
		return attendance.Event{}, false
	}

	entry, scheduled := s.timetable.Resolve(student, c.At)
	e := attendance.NewEvent(student, entry, scheduled, c.At)

	if s.log == nil {
		return attendance.Event{}, false
	}
	e, err := s.log.Append(e)
	if err != nil {
		slog.Error("failed to record attendance", "identifier", student.Identifier, "err", err)
		s.mu.Lock()
		s.status.StorageErrors++
		s.mu.Unlock()
		s.send(Notification{Type: "error", Message: err.Error()})
		return attendance.Event{}, false
	}

	slog.Info("attendance recorded",
		"seq", e.Sequence,
		"identifier", e.Identifier,
		"name", e.DisplayName,
		"subject", e.Subject,
		"instructor", e.Instructor,
	)

	s.mu.Lock()
	s.events = append(s.events, e)
	s.status.EventsAppended = len(s.events)
	s.mu.Unlock()

	s.send(Notification{Type: "attendance", Data: e})
	s.mirrorEvent(ctx, e)
	return e, true
}

func (s *Session) mirrorEvent(ctx context.Context, e attendance.Event) {
	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()
	if err := s.mirror.InsertEvent(ctx, s.log.ID(), e); err != nil {
		slog.Warn("failed to mirror attendance event", "seq", e.Sequence, "err", err)
	}
}

// Status returns a snapshot of the session counters.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Recognized = slices.Clone(s.status.Recognized)
	return st
}

// Events returns the events appended so far, in sequence order.
func (s *Session) Events() []attendance.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// Roster returns the roster the session resolves labels against.
func (s *Session) Roster() *roster.Index {
	return s.roster
}

// Timetable returns the timetable the session resolves schedules against.
func (s *Session) Timetable() *timetable.Index {
	return s.timetable
}

func uniqueSorted(labels []string) []string {
	out := slices.Clone(labels)
	slices.Sort(out)
	return slices.Compact(out)
}

func displayText(recognized []string) string {
	if len(recognized) == 0 {
		return noFacesText
	}
	return "Recognized: " + strings.Join(recognized, ", ")
}
