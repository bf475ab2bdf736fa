// Package attendance synthesizes attendance events and keeps the per-session
// append-only CSV log.
package attendance

import (
	"strconv"
	"time"

	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/timetable"
)

// Header is the first row of every session log.
var Header = []string{
	"sequence_number", "identifier", "display_name", "group", "subgroup",
	"time", "date", "day_of_week", "subject", "instructor",
}

// Event is one confirmed attendance record. Sequence is assigned by the Log.
type Event struct {
	Sequence    int       `json:"sequence_number"`
	Identifier  string    `json:"identifier"`
	DisplayName string    `json:"display_name"`
	Group       string    `json:"group"`
	Subgroup    string    `json:"subgroup"`
	Time        string    `json:"time"`        // HH:MM
	Date        string    `json:"date"`        // YYYY-MM-DD
	Day         string    `json:"day_of_week"` // full English weekday
	Subject     string    `json:"subject"`
	Instructor  string    `json:"instructor"`
	At          time.Time `json:"timestamp"`
}

// NewEvent builds the event for a student confirmed at at. entry is the
// schedule entry in session at that moment; pass ok=false when none matched.
func NewEvent(s roster.Student, entry timetable.Entry, ok bool, at time.Time) Event {
	e := Event{
		Identifier:  s.Identifier,
		DisplayName: s.DisplayName,
		Group:       s.Group,
		Subgroup:    s.Subgroup,
		Time:        at.Format("15:04"),
		Date:        at.Format(time.DateOnly),
		Day:         at.Weekday().String(),
		At:          at,
	}
	if ok {
		e.Subject = entry.Subject
		e.Instructor = entry.Instructor
	}
	return e
}

// Record returns the CSV row for the event, in Header order.
func (e Event) Record() []string {
	return []string{
		strconv.Itoa(e.Sequence),
		e.Identifier,
		e.DisplayName,
		e.Group,
		e.Subgroup,
		e.Time,
		e.Date,
		e.Day,
		e.Subject,
		e.Instructor,
	}
}
