// Package node resolves UI elements across the tree and shell backends
// and hands results back to the loop.
package node

import (
	"context"

	"github.com/devicelab-dev/autopilot/pkg/bridge"
	"github.com/devicelab-dev/autopilot/pkg/logger"
)

// Source names the backend a result came from.
type Source int

const (
	SourceTree Source = iota
	SourceShell
)

func (s Source) String() string {
	if s == SourceShell {
		return "shell"
	}
	return "tree"
}

// Result is a found UI element. It is only valid until the callback that
// received it returns.
type Result interface {
	// Text returns the element text. ok is false when it cannot be read.
	Text(ctx context.Context) (text string, ok bool)
	// Center returns the centre of the element's bounds.
	Center(ctx context.Context) (x, y int, ok bool)
	// Click activates the element through the backend that found it.
	Click(ctx context.Context) error
	Source() Source
}

// TreeNode is a result backed by a live accessibility handle.
type TreeNode struct {
	Handle bridge.Handle
}

func (n *TreeNode) Text(ctx context.Context) (string, bool) {
	text, err := n.Handle.Text(ctx)
	if err != nil {
		logger.Debug("read text from stale handle: %v", err)
		return "", false
	}
	return text, true
}

func (n *TreeNode) Center(ctx context.Context) (int, int, bool) {
	b, err := n.Handle.Bounds(ctx)
	if err != nil || b.IsEmpty() {
		return 0, 0, false
	}
	x, y := b.Center()
	return x, y, true
}

func (n *TreeNode) Click(ctx context.Context) error {
	return n.Handle.Click(ctx)
}

func (n *TreeNode) Source() Source { return SourceTree }

// CoordinateNode is a result recovered from a UI dump. Clicking taps the
// stored point through the shell.
type CoordinateNode struct {
	X, Y  int
	Label string
	Shell bridge.ShellBackend
}

func (n *CoordinateNode) Text(context.Context) (string, bool) {
	return n.Label, true
}

func (n *CoordinateNode) Center(context.Context) (int, int, bool) {
	return n.X, n.Y, true
}

func (n *CoordinateNode) Click(ctx context.Context) error {
	return n.Shell.Tap(ctx, n.X, n.Y)
}

func (n *CoordinateNode) Source() Source { return SourceShell }
