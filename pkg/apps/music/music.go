// Package music automates the music app's daily listening reward.
package music

import (
	"time"

	"github.com/devicelab-dev/autopilot/pkg/apps/base"
	"github.com/devicelab-dev/autopilot/pkg/automation"
)

// Name is the script name used on the command line and in config.
const Name = "music"

// StateClaimReward waits for the reward dialog after the entry click.
const StateClaimReward automation.State = "claim_reward"

// Keys specific to this app.
const (
	KeyClaim = "claim"
	KeyQuota = "quota"
)

// DefaultConfig returns the ids and literals of the current app release.
func DefaultConfig() base.Config {
	return base.Config{
		Package: "com.tunes.player",
		IDs: map[string]string{
			base.KeySplashSkip: "splash_skip",
			base.KeyIntroClose: "guide_close",
			base.KeyMenuTab:    "tab_mine",
			KeyClaim:           "reward_claim",
		},
		Texts: map[string]string{
			base.KeyIntroSkip: "Skip",
			base.KeyEntry:     "Free listening",
			base.KeyCompleted: "Completed today",
			KeyClaim:          "Claim",
			KeyQuota:          "Today's rewards are used up",
		},
		Intervals: automation.DefaultIntervals(),
	}
}

// Script is the music app state machine.
type Script struct {
	cfg base.Config
}

// New creates the script.
func New(cfg base.Config) *Script {
	return &Script{cfg: cfg}
}

func (s *Script) Name() string     { return Name }
func (s *Script) Package() string  { return s.cfg.Package }
func (s *Script) Activity() string { return s.cfg.Activity }

func (s *Script) Initial() automation.State { return automation.StateIdle }

func (s *Script) States() []automation.State {
	return []automation.State{
		automation.StateIdle,
		automation.StateLaunchingApp,
		automation.StateSkipIntro,
		automation.StateOpenMenu,
		automation.StateClickEntry,
		StateClaimReward,
		automation.StateReturnToApp,
		automation.StateDone,
	}
}

func (s *Script) Interval(st automation.State) time.Duration {
	return s.cfg.Interval(st)
}

func (s *Script) Plan(st automation.State) automation.Step {
	if step, ok := s.cfg.Plan(st); ok {
		return step
	}
	switch st {
	case automation.StateClickEntry:
		return s.cfg.EntryStep()
	case StateClaimReward:
		return automation.Step{Probes: []automation.Probe{
			s.cfg.TextProbe(KeyQuota),
			s.cfg.IDProbe(KeyClaim),
			s.cfg.TextProbe(KeyClaim),
		}}
	}
	return automation.Step{}
}

func (s *Script) Resolve(st automation.State, out automation.Outcome) automation.Transition {
	if tr, ok := s.cfg.Resolve(st, out); ok {
		return tr
	}
	switch st {
	case automation.StateClickEntry:
		return s.cfg.ResolveEntry(out, StateClaimReward)
	case StateClaimReward:
		switch out.Probe {
		case KeyQuota:
			return automation.Go("", automation.Stop{Reason: "quota_exhausted", Message: out.Text, Completed: true})
		case KeyClaim:
			return automation.Go(automation.StateReturnToApp, automation.Click{})
		}
	}
	return automation.Stay()
}
