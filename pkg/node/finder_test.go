package node_test

import (
	"context"
	"errors"
	"testing"

	"github.com/devicelab-dev/autopilot/pkg/bridge/mock"
	"github.com/devicelab-dev/autopilot/pkg/core"
	"github.com/devicelab-dev/autopilot/pkg/node"
)

const skipDump = `<?xml version="1.0"?><hierarchy>
<node text="Skip" resource-id="com.tunes.player:id/skip" bounds="[100,200][300,400]" />
</hierarchy>`

func TestFinder_NoShellBeforeThreshold(t *testing.T) {
	tree := mock.NewTree()
	shell := mock.NewShell()
	shell.SetDump(skipDump, nil)
	f := node.NewFinder(node.ID("com.tunes.player:id/skip"), tree, shell, 3)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		res, err := f.FindWithRetry(ctx)
		if err != nil || res != nil {
			t.Fatalf("attempt %d: expected absence, got %v, %v", i, res, err)
		}
		if shell.Dumps() != 0 {
			t.Fatalf("attempt %d: shell consulted before threshold", i)
		}
		if f.Failures() != i {
			t.Fatalf("attempt %d: expected %d failures, got %d", i, i, f.Failures())
		}
	}

	res, err := f.FindWithRetry(ctx)
	if err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if shell.Dumps() != 1 {
		t.Fatalf("expected one dump on third miss, got %d", shell.Dumps())
	}
	if res == nil || res.Source() != node.SourceShell {
		t.Fatalf("expected shell result, got %v", res)
	}
	x, y, ok := res.Center(ctx)
	if !ok || x != 200 || y != 300 {
		t.Errorf("expected centre (200,300), got (%d,%d,%v)", x, y, ok)
	}
	if text, _ := res.Text(ctx); text != "Skip" {
		t.Errorf("expected label Skip, got %q", text)
	}
}

func TestFinder_TreeSuccessResetsCounter(t *testing.T) {
	tree := mock.NewTree()
	shell := mock.NewShell()
	f := node.NewFinder(node.Text("Check in"), tree, shell, 3)
	ctx := context.Background()

	f.FindWithRetry(ctx)
	f.FindWithRetry(ctx)
	if f.Failures() != 2 {
		t.Fatalf("expected 2 failures, got %d", f.Failures())
	}

	tree.SetText("Check in", &mock.Node{Label: "Check in"})
	res, err := f.FindWithRetry(ctx)
	if err != nil || res == nil || res.Source() != node.SourceTree {
		t.Fatalf("expected tree result, got %v, %v", res, err)
	}
	if f.Failures() != 0 {
		t.Errorf("expected counter reset, got %d", f.Failures())
	}

	tree.SetText("Check in", nil)
	f.FindWithRetry(ctx)
	f.FindWithRetry(ctx)
	if shell.Dumps() != 0 {
		t.Errorf("shell consulted after reset before threshold, dumps=%d", shell.Dumps())
	}
}

func TestFinder_UnavailableTreeCountsAsMiss(t *testing.T) {
	tree := mock.NewTree()
	tree.SetUnavailable(true)
	shell := mock.NewShell()
	shell.SetDump(skipDump, nil)
	f := node.NewFinder(node.Text("Skip"), tree, shell, 2)
	ctx := context.Background()

	if res, err := f.FindWithRetry(ctx); res != nil || err != nil {
		t.Fatalf("first attempt: %v, %v", res, err)
	}
	res, err := f.FindWithRetry(ctx)
	if err != nil || res == nil {
		t.Fatalf("expected shell fallback result, got %v, %v", res, err)
	}
}

func TestFinder_UnboundShellIsAbsence(t *testing.T) {
	tree := mock.NewTree()
	shell := mock.NewShell()
	shell.SetUnbound(true)
	f := node.NewFinder(node.ID("x"), tree, shell, 1)

	res, err := f.FindWithRetry(context.Background())
	if res != nil || err != nil {
		t.Errorf("expected absence, got %v, %v", res, err)
	}
}

func TestFinder_ShellErrorSurfaces(t *testing.T) {
	tree := mock.NewTree()
	shell := mock.NewShell()
	shell.SetDump("", errors.New("uiautomator crashed"))
	f := node.NewFinder(node.ID("x"), tree, shell, 1)

	if _, err := f.FindWithRetry(context.Background()); err == nil {
		t.Error("expected shell error")
	}
}

func TestFinder_DefaultThreshold(t *testing.T) {
	tree := mock.NewTree()
	shell := mock.NewShell()
	f := node.NewFinder(node.ID("x"), tree, shell, 0)
	ctx := context.Background()

	for i := 0; i < node.DefaultFallbackThreshold-1; i++ {
		f.FindWithRetry(ctx)
	}
	if shell.Dumps() != 0 {
		t.Fatal("shell consulted early")
	}
	f.FindWithRetry(ctx)
	if shell.Dumps() != 1 {
		t.Errorf("expected dump at default threshold, got %d", shell.Dumps())
	}
}

func TestTreeNode(t *testing.T) {
	ctx := context.Background()
	n := &mock.Node{Label: "Claim", Rect: core.Bounds{X: 0, Y: 0, Width: 100, Height: 50}}
	res := &node.TreeNode{Handle: n}

	if text, ok := res.Text(ctx); !ok || text != "Claim" {
		t.Errorf("Text() = %q, %v", text, ok)
	}
	if x, y, ok := res.Center(ctx); !ok || x != 50 || y != 25 {
		t.Errorf("Center() = %d, %d, %v", x, y, ok)
	}
	if err := res.Click(ctx); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if n.Clicks() != 1 {
		t.Errorf("expected one click, got %d", n.Clicks())
	}

	empty := &node.TreeNode{Handle: &mock.Node{}}
	if _, _, ok := empty.Center(ctx); ok {
		t.Error("empty bounds must not yield a centre")
	}
}

func TestCoordinateNode_ClickTaps(t *testing.T) {
	shell := mock.NewShell()
	res := &node.CoordinateNode{X: 540, Y: 1200, Label: "Go", Shell: shell}

	if err := res.Click(context.Background()); err != nil {
		t.Fatalf("Click: %v", err)
	}
	taps := shell.Taps()
	if len(taps) != 1 || taps[0] != (mock.Point{X: 540, Y: 1200}) {
		t.Errorf("unexpected taps %v", taps)
	}
	if res.Source().String() != "shell" {
		t.Errorf("unexpected source %s", res.Source())
	}
}

func TestQueryString(t *testing.T) {
	if got := node.ID("a:id/b").String(); got != "id=a:id/b" {
		t.Errorf("unexpected %s", got)
	}
	if got := node.Text("Go").String(); got != `text="Go"` {
		t.Errorf("unexpected %s", got)
	}
}
