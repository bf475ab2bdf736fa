package timetable

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// Resolve returns the first entry, in index order, for the student's group
// on at's weekday whose interval contains at's HH:MM. An entry with an empty
// subgroup applies to every subgroup of its group.
func (idx *Index) Resolve(student roster.Student, at time.Time) (Entry, bool) {
	day := identity.Key(at.Weekday().String())
	minute := MinuteOfDay(at)
	group := identity.Key(student.Group)
	subgroup := identity.Key(student.Subgroup)

	for _, e := range idx.entries {
		if e.err != nil {
			continue
		}
		if e.Day != day || e.Group != group {
			continue
		}
		if e.Subgroup != "" && e.Subgroup != subgroup {
			continue
		}
		if e.Interval.Contains(minute) {
			return e, true
		}
	}
	return Entry{}, false
}
