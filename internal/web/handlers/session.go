package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/timetable"
)

// Session is the view of the running camera session the API exposes.
type Session interface {
	Status() pipeline.Status
	Events() []attendance.Event
	AddListener() chan pipeline.Notification
	RemoveListener(ch chan pipeline.Notification)
	Roster() *roster.Index
	Timetable() *timetable.Index
}

// SessionHandler serves the session endpoints.
type SessionHandler struct {
	session Session
	now     func() time.Time
}

// NewSessionHandler creates a handler over session.
func NewSessionHandler(session Session) *SessionHandler {
	return &SessionHandler{session: session, now: time.Now}
}

// Status returns the session counters.
func (h *SessionHandler) Status(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Status())
}

// Events returns every event appended this session.
func (h *SessionHandler) Events(w http.ResponseWriter, _ *http.Request) {
	events := h.session.Events()
	if events == nil {
		events = []attendance.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// Stream pushes an "attendance" event per confirmation until the client
// disconnects or the session ends.
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := h.session.AddListener()
	defer h.session.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", h.session.Status())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}

type resolveResponse struct {
	Student   roster.Student   `json:"student"`
	At        time.Time        `json:"at"`
	InSession bool             `json:"in_session"`
	Entry     *timetable.Entry `json:"entry,omitempty"`
}

// Resolve looks up a student by key and reports the class in session at the
// "at" query parameter (RFC3339, default now).
func (h *SessionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		respondError(w, http.StatusBadRequest, "missing key")
		return
	}

	at := h.now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid at, expected RFC3339")
			return
		}
		at = parsed
	}

	student, ok := h.session.Roster().Lookup(key)
	if !ok {
		slog.Debug("resolve for unknown student", "key", sanitizeForLog(key))
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	resp := resolveResponse{Student: student, At: at}
	if entry, ok := h.session.Timetable().Resolve(student, at); ok {
		resp.InSession = true
		resp.Entry = &entry
	}
	respondJSON(w, http.StatusOK, resp)
}
