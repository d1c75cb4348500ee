// Package base holds what the app scripts share: the per-app config with
// overridable ids and literals, and the launch/skip/menu/return steps every
// app goes through.
package base

import (
	"strings"
	"time"

	"github.com/devicelab-dev/autopilot/pkg/automation"
	"github.com/devicelab-dev/autopilot/pkg/config"
	"github.com/devicelab-dev/autopilot/pkg/node"
)

// Keys shared by every app's IDs and Texts maps.
const (
	KeySplashSkip = "splashSkip"
	KeyIntroClose = "introClose"
	KeyIntroSkip  = "introSkip"
	KeyMenuTab    = "menuTab"
	KeyEntry      = "entry"
	KeyCompleted  = "completed"
)

// Config describes one target app.
type Config struct {
	Package   string
	Activity  string
	IDs       map[string]string
	Texts     map[string]string
	Intervals automation.Intervals
}

// ID returns the resource id for key. Ids without a ':' are qualified with
// the package.
func (c Config) ID(key string) string {
	id := c.IDs[key]
	if id == "" {
		return ""
	}
	if strings.Contains(id, ":") {
		return id
	}
	return c.Package + ":id/" + id
}

// Text returns the literal for key.
func (c Config) Text(key string) string {
	return c.Texts[key]
}

// Merge returns c with the non-empty fields of o applied on top.
func (c Config) Merge(o config.AppConfig) Config {
	out := c
	if o.Package != "" {
		out.Package = o.Package
	}
	if o.Activity != "" {
		out.Activity = o.Activity
	}
	out.IDs = mergeMap(c.IDs, o.IDs)
	out.Texts = mergeMap(c.Texts, o.Texts)
	return out
}

// WithIntervals returns c using the configured heartbeat intervals.
func (c Config) WithIntervals(cfg *config.Config) Config {
	def, launch, adWait := cfg.HeartbeatIntervals()
	c.Intervals = automation.Intervals{Default: def, Launch: launch, AdWait: adWait}
	return c
}

func mergeMap(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// IDProbe is a probe for the resource id stored under key.
func (c Config) IDProbe(key string) automation.Probe {
	return automation.Probe{Name: key, Query: node.ID(c.ID(key))}
}

// TextProbe is a probe for the literal stored under key.
func (c Config) TextProbe(key string) automation.Probe {
	return automation.Probe{Name: key, Query: node.Text(c.Text(key))}
}

// Interval returns the launch interval while launching and the default
// one otherwise.
func (c Config) Interval(s automation.State) time.Duration {
	if s == automation.StateLaunchingApp {
		return c.Intervals.Launch
	}
	return c.Intervals.Default
}

// Plan returns the step for the states every app shares. ok is false for
// app-specific states.
func (c Config) Plan(s automation.State) (step automation.Step, ok bool) {
	switch s {
	case automation.StateIdle, automation.StateDone:
		return automation.Step{}, true
	case automation.StateLaunchingApp:
		return automation.Step{Optional: true, Probes: []automation.Probe{c.IDProbe(KeySplashSkip)}}, true
	case automation.StateSkipIntro:
		return automation.Step{Optional: true, Probes: []automation.Probe{
			c.IDProbe(KeyIntroClose),
			c.TextProbe(KeyIntroSkip),
		}}, true
	case automation.StateOpenMenu, automation.StateReturnToApp:
		return automation.Step{Probes: []automation.Probe{c.IDProbe(KeyMenuTab)}}, true
	}
	return automation.Step{}, false
}

// Resolve handles the shared states. ClickEntry is app-specific; entered
// names the state that follows a successful entry click.
func (c Config) Resolve(s automation.State, out automation.Outcome) (tr automation.Transition, ok bool) {
	switch s {
	case automation.StateIdle:
		return automation.Go(automation.StateLaunchingApp, automation.Launch{}), true

	case automation.StateLaunchingApp:
		// The splash skip button is optional; absence moves on.
		if out.Found() {
			return automation.Go(automation.StateSkipIntro, automation.Click{}), true
		}
		return automation.Go(automation.StateSkipIntro), true

	case automation.StateSkipIntro:
		if out.Found() {
			return automation.Transition{Effects: []automation.Effect{automation.Click{}}}, true
		}
		return automation.Go(automation.StateOpenMenu), true

	case automation.StateOpenMenu:
		if out.Found() {
			return automation.Go(automation.StateClickEntry, automation.Click{}), true
		}
		return automation.Stay(), true

	case automation.StateReturnToApp:
		if out.Found() {
			return automation.Go(automation.StateDone), true
		}
		return automation.Transition{Effects: []automation.Effect{automation.Back{}}}, true

	case automation.StateDone:
		return automation.Go("", automation.Stop{Reason: "done", Completed: true}), true
	}
	return automation.Transition{}, false
}

// ResolveEntry handles ClickEntry: the completed literal ends the run as
// finished, the entry literal is clicked and leads to next.
func (c Config) ResolveEntry(out automation.Outcome, next automation.State) automation.Transition {
	switch out.Probe {
	case KeyCompleted:
		return automation.Go("", automation.Stop{Reason: "already_completed", Message: out.Text, Completed: true})
	case KeyEntry:
		return automation.Go(next, automation.Click{})
	}
	return automation.Stay()
}

// EntryStep probes the completed literal before the entry literal.
func (c Config) EntryStep() automation.Step {
	return automation.Step{Probes: []automation.Probe{
		c.TextProbe(KeyCompleted),
		c.TextProbe(KeyEntry),
	}}
}
