// Package mock provides in-memory fakes of the tree and shell backends
// for testing without a device.
package mock

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/devicelab-dev/autopilot/pkg/bridge"
	"github.com/devicelab-dev/autopilot/pkg/core"
)

// Node is a fake tree node.
type Node struct {
	Label    string
	Rect     core.Bounds
	ClickErr error

	mu     sync.Mutex
	clicks int
}

func (n *Node) Text(context.Context) (string, error) {
	return n.Label, nil
}

func (n *Node) Bounds(context.Context) (core.Bounds, error) {
	return n.Rect, nil
}

func (n *Node) Click(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clicks++
	return n.ClickErr
}

// Clicks returns how often Click was called.
func (n *Node) Clicks() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clicks
}

// Tree is a fake bridge.Tree. Nodes are registered by resource id or text.
type Tree struct {
	mu          sync.Mutex
	ids         map[string]*Node
	texts       map[string]*Node
	unavailable bool
	findErr     error
	pkg         string
	source      string
	sourceErr   error
	backs       int
	lookups     []string
}

// NewTree returns an available, empty tree.
func NewTree() *Tree {
	return &Tree{
		ids:   make(map[string]*Node),
		texts: make(map[string]*Node),
	}
}

// SetID places n on screen under resource id. A nil n removes it.
func (t *Tree) SetID(id string, n *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n == nil {
		delete(t.ids, id)
		return
	}
	t.ids[id] = n
}

// SetText places n on screen under its exact text. A nil n removes it.
func (t *Tree) SetText(text string, n *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n == nil {
		delete(t.texts, text)
		return
	}
	t.texts[text] = n
}

// SetUnavailable makes every lookup return bridge.ErrUnavailable.
func (t *Tree) SetUnavailable(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unavailable = v
}

// SetFindError makes every lookup return err.
func (t *Tree) SetFindError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.findErr = err
}

// SetPackage sets the reported foreground package.
func (t *Tree) SetPackage(pkg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pkg = pkg
}

// SetSource sets the hierarchy XML returned by Source.
func (t *Tree) SetSource(xml string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.source = xml
	t.sourceErr = err
}

// Backs returns how many global backs were issued.
func (t *Tree) Backs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.backs
}

// Lookups returns every lookup as "id:<id>" or "text:<text>".
func (t *Tree) Lookups() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lookups...)
}

func (t *Tree) FindByResourceID(_ context.Context, id string) (bridge.Handle, error) {
	return t.find("id:"+id, t.ids, id)
}

func (t *Tree) FindByText(_ context.Context, _ bridge.Handle, text string) (bridge.Handle, error) {
	return t.find("text:"+text, t.texts, text)
}

func (t *Tree) find(label string, m map[string]*Node, key string) (bridge.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lookups = append(t.lookups, label)
	if t.unavailable {
		return nil, bridge.ErrUnavailable
	}
	if t.findErr != nil {
		return nil, t.findErr
	}
	if n, ok := m[key]; ok {
		return n, nil
	}
	return nil, nil
}

func (t *Tree) GlobalBack(context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unavailable {
		return false
	}
	t.backs++
	return true
}

func (t *Tree) Root(context.Context) (bridge.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unavailable {
		return nil, bridge.ErrUnavailable
	}
	return &Node{Label: "root"}, nil
}

func (t *Tree) CurrentPackage(context.Context) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unavailable {
		return ""
	}
	return t.pkg
}

func (t *Tree) Source(context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unavailable {
		return "", bridge.ErrUnavailable
	}
	return t.source, t.sourceErr
}

// Point is a recorded tap.
type Point struct{ X, Y int }

// Shell is a fake bridge.ShellBackend that records every call.
type Shell struct {
	mu         sync.Mutex
	unbound    bool
	dump       string
	dumpErr    error
	dumps      int
	screenshot []byte
	foreground string
	taps       []Point
	swipes     [][4]int
	backs      int
	launched   []string
	activities []string
	exited     bool
}

// NewShell returns a bound shell with an empty dump and failing screenshots.
func NewShell() *Shell {
	return &Shell{}
}

// SetUnbound makes every call fail with bridge.ErrNotBound.
func (s *Shell) SetUnbound(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unbound = v
}

// SetDump sets the XML returned by DumpUITree.
func (s *Shell) SetDump(xml string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dump = xml
	s.dumpErr = err
}

// SetScreenshot makes Screenshot succeed and write data. Nil makes it fail.
func (s *Shell) SetScreenshot(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshot = data
}

// SetForeground sets the package reported by CurrentForegroundPackage.
func (s *Shell) SetForeground(pkg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foreground = pkg
}

// Dumps returns how many UI dumps were requested.
func (s *Shell) Dumps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dumps
}

// Taps returns recorded taps.
func (s *Shell) Taps() []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Point(nil), s.taps...)
}

// Swipes returns recorded swipes as {x1, y1, x2, y2}.
func (s *Shell) Swipes() [][4]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][4]int(nil), s.swipes...)
}

// Backs returns how many back presses were issued.
func (s *Shell) Backs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backs
}

// Launched returns packages opened with OpenAppByPackage.
func (s *Shell) Launched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.launched...)
}

// Activities returns components opened with OpenAppByActivity.
func (s *Shell) Activities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.activities...)
}

// Exited reports whether Exit was called.
func (s *Shell) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

func (s *Shell) check() error {
	if s.unbound {
		return bridge.ErrNotBound
	}
	return nil
}

func (s *Shell) Tap(_ context.Context, x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.taps = append(s.taps, Point{x, y})
	return nil
}

func (s *Shell) Swipe(_ context.Context, x1, y1, x2, y2, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.swipes = append(s.swipes, [4]int{x1, y1, x2, y2})
	return nil
}

func (s *Shell) Back(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.backs++
	return nil
}

func (s *Shell) OpenAppByPackage(_ context.Context, pkg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.launched = append(s.launched, pkg)
	return nil
}

func (s *Shell) OpenAppByActivity(_ context.Context, component string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.activities = append(s.activities, component)
	return nil
}

func (s *Shell) DumpUITree(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return "", err
	}
	s.dumps++
	return s.dump, s.dumpErr
}

func (s *Shell) Screenshot(_ context.Context, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unbound || s.screenshot == nil {
		return false
	}
	if err := os.WriteFile(path, s.screenshot, 0644); err != nil {
		return false
	}
	return true
}

func (s *Shell) CurrentForegroundPackage(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return "", err
	}
	if s.foreground == "" {
		return "", fmt.Errorf("no focused window")
	}
	return s.foreground, nil
}

func (s *Shell) Exit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exited = true
	s.unbound = true
	return nil
}

var (
	_ bridge.Tree         = (*Tree)(nil)
	_ bridge.ShellBackend = (*Shell)(nil)
	_ bridge.Handle       = (*Node)(nil)
)
