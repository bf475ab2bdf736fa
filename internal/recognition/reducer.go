// Package recognition turns a noisy stream of per-frame identity
// observations into confirmation events.
//
// A Reducer is owned by a single goroutine (the frame cycle). It does no
// locking; callers that fan out detection must funnel observations back
// through one goroutine in cycle order.
package recognition

import (
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/identity"
)

// Mode selects how the hit counter behaves after it reaches the threshold.
type Mode int

const (
	// ModeRearm resets the counter every time it reaches the threshold, so
	// every ConfirmCount qualifying hits are a new candidate confirmation
	// that fires when the window since the previous one has elapsed.
	ModeRearm Mode = iota
	// ModeLiteral never resets the counter. It equals the threshold exactly
	// once, so an identity is confirmed at most once per reducer lifetime.
	ModeLiteral
)

func (m Mode) String() string {
	switch m {
	case ModeRearm:
		return "rearm"
	case ModeLiteral:
		return "literal"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch identity.Key(s) {
	case "rearm", "":
		return ModeRearm, nil
	case "literal":
		return ModeLiteral, nil
	default:
		return ModeRearm, fmt.Errorf("unknown counter mode %q", s)
	}
}

type Options struct {
	ConfirmCount  int           // K
	MinConfidence float64       // T
	Window        time.Duration // W
	Mode          Mode
}

// DefaultOptions returns K=5, T=0.2, W=2m in rearm mode.
func DefaultOptions() Options {
	return Options{
		ConfirmCount:  5,
		MinConfidence: 0.2,
		Window:        2 * time.Minute,
		Mode:          ModeRearm,
	}
}

// Observation is one classifier result for one face in one frame.
type Observation struct {
	Label      string
	Confidence float64
	At         time.Time
}

// Confirmation is emitted when sustained recognition should become one
// attendance record.
type Confirmation struct {
	Key   string // normalized identity key
	Label string // label as reported by the classifier
	At    time.Time
}

// State is the per-identity confirmation state.
type State struct {
	Hits            int
	LastConfirmedAt time.Time // zero until the first confirmation
}

type Reducer struct {
	opts   Options
	states map[string]*State
	clock  time.Time // latest timestamp seen; keeps window checks monotonic
}

// NewReducer creates a reducer. A ConfirmCount below 1 is treated as 1.
func NewReducer(opts Options) *Reducer {
	if opts.ConfirmCount < 1 {
		opts.ConfirmCount = 1
	}
	return &Reducer{
		opts:   opts,
		states: make(map[string]*State),
	}
}

// Options returns the options the reducer runs with.
func (r *Reducer) Options() Options {
	return r.opts
}

// Qualifies reports whether an observation counts as an identity at all.
// Anything below the confidence threshold is displayed as unknown and never
// touches reducer state.
func (r *Reducer) Qualifies(obs Observation) bool {
	return obs.Confidence >= r.opts.MinConfidence && identity.Key(obs.Label) != ""
}

// Observe feeds one observation and reports whether it confirmed its identity.
func (r *Reducer) Observe(obs Observation) (Confirmation, bool) {
	if !r.Qualifies(obs) {
		return Confirmation{}, false
	}

	at := obs.At
	if at.Before(r.clock) {
		at = r.clock
	} else {
		r.clock = at
	}

	key := identity.Key(obs.Label)
	st, ok := r.states[key]
	if !ok {
		st = &State{}
		r.states[key] = st
	}

	st.Hits++
	if st.Hits != r.opts.ConfirmCount {
		return Confirmation{}, false
	}
	if r.opts.Mode == ModeRearm {
		st.Hits = 0
	}

	if !st.LastConfirmedAt.IsZero() && at.Sub(st.LastConfirmedAt) <= r.opts.Window {
		return Confirmation{}, false
	}

	st.LastConfirmedAt = at
	return Confirmation{Key: key, Label: obs.Label, At: at}, true
}

// State returns a copy of the state for a label or key.
func (r *Reducer) State(label string) (State, bool) {
	st, ok := r.states[identity.Key(label)]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Len returns the number of identities seen with qualifying confidence.
func (r *Reducer) Len() int {
	return len(r.states)
}
