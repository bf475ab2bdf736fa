package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/timetable"
)

type fakeSession struct {
	status    pipeline.Status
	events    []attendance.Event
	listener  chan pipeline.Notification
	roster    *roster.Index
	timetable *timetable.Index
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		status:   pipeline.Status{SessionID: "abc", Display: "No recognized faces."},
		listener: make(chan pipeline.Notification, 10),
		roster: roster.NewIndex([]roster.Student{
			{Identifier: "P1", DisplayName: "Jane Doe", Group: "A", Subgroup: "1"},
		}),
		timetable: timetable.NewIndex([]timetable.Row{
			{Day: "Monday", Time: "09:00-10:00", Group: "A", Subgroup: "1", Subject: "Maths", Instructor: "Dr. X"},
		}),
	}
}

func (f *fakeSession) Status() pipeline.Status { return f.status }
func (f *fakeSession) Events() []attendance.Event { return f.events }
func (f *fakeSession) AddListener() chan pipeline.Notification { return f.listener }
func (f *fakeSession) RemoveListener(chan pipeline.Notification) {}
func (f *fakeSession) Roster() *roster.Index { return f.roster }
func (f *fakeSession) Timetable() *timetable.Index { return f.timetable }

func TestSessionHandler_Status(t *testing.T) {
	h := NewSessionHandler(newFakeSession())
	recorder := httptest.NewRecorder()
	h.Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	var st pipeline.Status
	if err := json.Unmarshal(recorder.Body.Bytes(), &st); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if st.SessionID != "abc" || st.Display != "No recognized faces." {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestSessionHandler_Events(t *testing.T) {
	session := newFakeSession()
	h := NewSessionHandler(session)

	recorder := httptest.NewRecorder()
	h.Events(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	if !strings.Contains(recorder.Body.String(), `"events":[]`) {
		t.Errorf("expected empty array, got %s", recorder.Body.String())
	}

	session.events = []attendance.Event{{Sequence: 1, Identifier: "P1", Subject: "Maths"}}
	recorder = httptest.NewRecorder()
	h.Events(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	var result struct {
		Events []attendance.Event `json:"events"`
		Count  int                `json:"count"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Count != 1 || result.Events[0].Subject != "Maths" {
		t.Errorf("unexpected events %+v", result)
	}
}

func TestSessionHandler_Resolve(t *testing.T) {
	h := NewSessionHandler(newFakeSession())
	h.now = func() time.Time { return time.Date(2024, time.January, 1, 9, 30, 0, 0, time.UTC) }

	tests := []struct {
		name        string
		query       string
		wantStatus  int
		wantSession bool
	}{
		{"in session now", "?key=P1", http.StatusOK, true},
		{"by name at explicit time", "?key=jane%20doe&at=2024-01-01T09:00:00Z", http.StatusOK, true},
		{"outside class hours", "?key=P1&at=2024-01-01T12:00:00Z", http.StatusOK, false},
		{"unknown student", "?key=P9", http.StatusNotFound, false},
		{"missing key", "", http.StatusBadRequest, false},
		{"bad time", "?key=P1&at=monday", http.StatusBadRequest, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			h.Resolve(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/resolve"+tc.query, nil))

			if recorder.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, recorder.Code, recorder.Body.String())
			}
			if tc.wantStatus != http.StatusOK {
				return
			}
			var resp resolveResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.InSession != tc.wantSession {
				t.Errorf("expected in_session=%v, got %+v", tc.wantSession, resp)
			}
			if tc.wantSession && (resp.Entry == nil || resp.Entry.Subject != "Maths") {
				t.Errorf("expected Maths entry, got %+v", resp.Entry)
			}
		})
	}
}

func TestSessionHandler_Stream(t *testing.T) {
	session := newFakeSession()
	h := NewSessionHandler(session)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/stream", nil).WithContext(ctx)
	recorder := httptest.NewRecorder()

	session.listener <- pipeline.Notification{Type: "attendance", Data: attendance.Event{Sequence: 1, Identifier: "P1"}}
	close(session.listener)

	done := make(chan struct{})
	go func() {
		h.Stream(recorder, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("stream did not end when the session closed")
	}
	cancel()

	body := recorder.Body.String()
	if recorder.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("unexpected content type %q", recorder.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(body, "event: status\n") {
		t.Errorf("stream must start with the status event, got %q", body)
	}
	if !strings.Contains(body, "event: attendance\n") || !strings.Contains(body, `"identifier":"P1"`) {
		t.Errorf("expected attendance event in stream, got %q", body)
	}
}
