// Package automation runs per-app state machines on the loop. Scripts are
// pure transition tables; the Executor owns timing, lookups and effects.
package automation

import (
	"time"

	"github.com/devicelab-dev/autopilot/pkg/node"
)

// State is a named milestone of an app script.
type State string

// States shared by every app.
const (
	StateIdle         State = "idle"
	StateLaunchingApp State = "launching_app"
	StateSkipIntro    State = "skip_intro"
	StateOpenMenu     State = "open_menu"
	StateClickEntry   State = "click_entry"
	StateReturnToApp  State = "return_to_app"
	StateDone         State = "done"
)

// Probe is one named lookup of a step.
type Probe struct {
	Name  string
	Query node.Query
}

// Step lists the probes a state issues, in order. The first probe that
// matches wins. When Optional is set a lookup error counts as a miss.
type Step struct {
	Probes   []Probe
	Optional bool
}

// Outcome is what the probes of a step produced.
type Outcome struct {
	// Probe is the name of the matching probe, empty when nothing matched.
	Probe     string
	Text      string
	X, Y      int
	HasCenter bool
	Err       error
}

// Found reports whether a probe matched.
func (o Outcome) Found() bool { return o.Probe != "" }

// Effect is a side effect requested by a transition.
type Effect interface {
	effect()
}

// Click activates the node matched by the step.
type Click struct{}

// TapAt taps fixed screen coordinates through the shell.
type TapAt struct{ X, Y int }

// Swipe drags from (X1,Y1) to (X2,Y2) through the shell.
type Swipe struct {
	X1, Y1, X2, Y2 int
	Duration       time.Duration
}

// Back presses the system back key.
type Back struct{}

// Launch opens the target app.
type Launch struct{}

// Wait holds the in-flight operation for D before the remaining effects run.
type Wait struct{ D time.Duration }

// Stop ends the run. Completed distinguishes a finished task from a failure.
type Stop struct {
	Reason    string
	Message   string
	Completed bool
}

func (Click) effect()  {}
func (TapAt) effect()  {}
func (Swipe) effect()  {}
func (Back) effect()   {}
func (Launch) effect() {}
func (Wait) effect()   {}
func (Stop) effect()   {}

// Transition is the result of resolving a step. Effects run in order;
// Next is entered once they have all finished. An empty Next keeps the
// current state.
type Transition struct {
	Next    State
	Effects []Effect
}

// Stay keeps the current state and lets the next heartbeat retry.
func Stay() Transition { return Transition{} }

// Go moves to next after running effects.
func Go(next State, effects ...Effect) Transition {
	return Transition{Next: next, Effects: effects}
}

// Script is an app's automation as a pure transition table.
type Script interface {
	Name() string
	Package() string
	// Activity is the explicit launch component, or "" to launch by package.
	Activity() string
	States() []State
	Initial() State
	Interval(State) time.Duration
	Plan(State) Step
	Resolve(State, Outcome) Transition
}

// Intervals are the heartbeat periods scripts pick from.
type Intervals struct {
	Default time.Duration
	Launch  time.Duration
	AdWait  time.Duration
}

// DefaultIntervals returns 1s, 500ms and 5s.
func DefaultIntervals() Intervals {
	return Intervals{
		Default: time.Second,
		Launch:  500 * time.Millisecond,
		AdWait:  5 * time.Second,
	}
}
