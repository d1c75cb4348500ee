// Package bridge defines the two UI backends autopilot drives: the
// accessibility tree served by UIAutomator2 and the adb shell.
package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/devicelab-dev/autopilot/pkg/core"
)

var (
	// ErrUnavailable is returned by tree lookups while no UIAutomator2
	// session is connected.
	ErrUnavailable = errors.New("accessibility backend unavailable")

	// ErrNotBound is returned by shell calls while no device is bound.
	ErrNotBound = errors.New("shell bridge not bound")
)

// Handle is a live reference to a node in the accessibility tree. It can
// go stale at any time; methods then return errors.
type Handle interface {
	Text(ctx context.Context) (string, error)
	Bounds(ctx context.Context) (core.Bounds, error)
	Click(ctx context.Context) error
}

// Tree is the in-process lookup backend. Lookups that match nothing
// return (nil, nil).
type Tree interface {
	FindByResourceID(ctx context.Context, id string) (Handle, error)
	// FindByText matches text exactly. A nil root searches the whole window.
	FindByText(ctx context.Context, root Handle, text string) (Handle, error)
	GlobalBack(ctx context.Context) bool
	Root(ctx context.Context) (Handle, error)
	// CurrentPackage returns "" when unknown.
	CurrentPackage(ctx context.Context) string
	Source(ctx context.Context) (string, error)
}

// ShellBackend is the out-of-process backend reached through adb.
type ShellBackend interface {
	Tap(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error
	Back(ctx context.Context) error
	OpenAppByPackage(ctx context.Context, pkg string) error
	OpenAppByActivity(ctx context.Context, component string) error
	DumpUITree(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) bool
	CurrentForegroundPackage(ctx context.Context) (string, error)
	Exit() error
}

// Event reports the package owning the foreground window.
type Event struct {
	Package string
	At      time.Time
}
