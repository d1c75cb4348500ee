// Package shopping automates the shopping app's ad-for-coins task. The ad
// offered after the entry click comes in two kinds, told apart by its
// title copy.
package shopping

import (
	"time"

	"github.com/devicelab-dev/autopilot/pkg/apps/base"
	"github.com/devicelab-dev/autopilot/pkg/automation"
)

// Name is the script name used on the command line and in config.
const Name = "shopping"

// App-specific states.
const (
	StateDetectAdType automation.State = "detect_ad_type"
	StateWatchingAd   automation.State = "watching_ad"
)

// Keys specific to this app.
const (
	KeyAdTitle  = "adTitle"
	KeyWatchAd  = "watchAd"
	KeyBrowseAd = "browseAd"
	KeyAdClose  = "adClose"
	KeyAdClaim  = "adClaim"
)

// Timings of the two ad kinds.
const (
	WatchDuration  = 15 * time.Second
	BrowseDuration = 16 * time.Second
	SwipeDuration  = 300 * time.Millisecond
)

// The browse ad is scrolled with one upward swipe in the middle of a
// 1080-wide screen.
var browseSwipe = automation.Swipe{X1: 540, Y1: 1600, X2: 540, Y2: 600, Duration: SwipeDuration}

// DefaultConfig returns the ids and literals of the current app release.
func DefaultConfig() base.Config {
	return base.Config{
		Package: "com.shop.mall",
		IDs: map[string]string{
			base.KeySplashSkip: "splash_skip",
			base.KeyIntroClose: "iv_close",
			base.KeyMenuTab:    "tab_earn",
			KeyAdTitle:         "task_title",
			KeyAdClose:         "ad_close",
		},
		Texts: map[string]string{
			base.KeyIntroSkip: "Skip",
			base.KeyEntry:     "Earn coins",
			base.KeyCompleted: "Come back tomorrow",
			KeyWatchAd:        "Watch 15 seconds",
			KeyBrowseAd:       "Browse 15 seconds",
			KeyAdClaim:        "Claim reward",
		},
		Intervals: automation.DefaultIntervals(),
	}
}

// Script is the shopping app state machine.
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
		StateDetectAdType,
		StateWatchingAd,
		automation.StateReturnToApp,
		automation.StateDone,
	}
}

func (s *Script) Interval(st automation.State) time.Duration {
	if st == StateWatchingAd {
		return s.cfg.Intervals.AdWait
	}
	return s.cfg.Interval(st)
}

func (s *Script) Plan(st automation.State) automation.Step {
	if step, ok := s.cfg.Plan(st); ok {
		return step
	}
	switch st {
	case automation.StateClickEntry:
		return s.cfg.EntryStep()
	case StateDetectAdType:
		// The title id carries the copy; the literals catch layouts
		// without it.
		return automation.Step{Probes: []automation.Probe{
			s.cfg.IDProbe(KeyAdTitle),
			s.cfg.TextProbe(KeyWatchAd),
			s.cfg.TextProbe(KeyBrowseAd),
		}}
	case StateWatchingAd:
		return automation.Step{Probes: []automation.Probe{
			s.cfg.IDProbe(KeyAdClose),
			s.cfg.TextProbe(KeyAdClaim),
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
		return s.cfg.ResolveEntry(out, StateDetectAdType)
	case StateDetectAdType:
		return s.detect(out)
	case StateWatchingAd:
		if out.Found() {
			return automation.Go(automation.StateReturnToApp, automation.Click{})
		}
	}
	return automation.Stay()
}

// detect branches on the exact ad copy.
func (s *Script) detect(out automation.Outcome) automation.Transition {
	if !out.Found() {
		return automation.Stay()
	}
	switch out.Text {
	case s.cfg.Text(KeyWatchAd):
		if !out.HasCenter {
			return automation.Stay()
		}
		// Tap the captured centre once the ad has run; the node is not
		// queried again.
		return automation.Go(StateWatchingAd,
			automation.Wait{D: WatchDuration},
			automation.TapAt{X: out.X, Y: out.Y})
	case s.cfg.Text(KeyBrowseAd):
		return automation.Go(StateWatchingAd,
			automation.Click{},
			browseSwipe,
			automation.Wait{D: BrowseDuration},
			automation.Back{})
	}
	return automation.Go("", automation.Stop{Reason: "ad_unrecognized", Message: "ad copy: " + out.Text})
}
