package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/devicelab-dev/autopilot/pkg/bridge"
	"github.com/devicelab-dev/autopilot/pkg/logger"
	"github.com/devicelab-dev/autopilot/pkg/uidump"
)

// DefaultFallbackThreshold is how many consecutive tree misses a finder
// tolerates before it starts consulting the shell dump.
const DefaultFallbackThreshold = 3

// Kind selects what a query matches on.
type Kind int

const (
	ByID Kind = iota
	ByText
)

// Query is a lookup: a resource id or an exact text literal.
type Query struct {
	Kind  Kind
	Value string
}

// ID builds a resource id query.
func ID(id string) Query { return Query{Kind: ByID, Value: id} }

// Text builds an exact text query.
func Text(text string) Query { return Query{Kind: ByText, Value: text} }

func (q Query) String() string {
	if q.Kind == ByText {
		return fmt.Sprintf("text=%q", q.Value)
	}
	return "id=" + q.Value
}

// Finder resolves one query. It counts consecutive tree misses; the shell
// dump is only tried once the count reaches the threshold, and any tree
// hit resets it. A Finder is meant to be reused across lookups.
type Finder struct {
	query     Query
	tree      bridge.Tree
	shell     bridge.ShellBackend
	threshold int

	mu       sync.Mutex
	failures int
}

// NewFinder creates a finder. threshold <= 0 uses the default.
func NewFinder(q Query, tree bridge.Tree, shell bridge.ShellBackend, threshold int) *Finder {
	if threshold <= 0 {
		threshold = DefaultFallbackThreshold
	}
	return &Finder{query: q, tree: tree, shell: shell, threshold: threshold}
}

// Query returns what the finder looks for.
func (f *Finder) Query() Query { return f.query }

// Failures returns the current consecutive tree miss count.
func (f *Finder) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}

// FindWithRetry tries the tree, then (past the threshold) the shell.
// Absence is (nil, nil); an unavailable backend counts as absence. Only
// unexpected shell failures are returned as errors.
func (f *Finder) FindWithRetry(ctx context.Context) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h := f.findInTree(ctx); h != nil {
		f.failures = 0
		return &TreeNode{Handle: h}, nil
	}

	f.failures++
	if f.failures < f.threshold || f.shell == nil {
		return nil, nil
	}

	logger.Debug("%s: %d tree misses, trying shell dump", f.query, f.failures)
	n, err := f.findInShell(ctx)
	if errors.Is(err, bridge.ErrNotBound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("shell lookup %s: %w", f.query, err)
	}
	if n == nil {
		return nil, nil
	}
	x, y := n.Center()
	label := n.Text
	if label == "" {
		label = n.ContentDesc
	}
	return &CoordinateNode{X: x, Y: y, Label: label, Shell: f.shell}, nil
}

func (f *Finder) findInTree(ctx context.Context) bridge.Handle {
	if f.tree == nil {
		return nil
	}
	var (
		h   bridge.Handle
		err error
	)
	if f.query.Kind == ByText {
		h, err = f.tree.FindByText(ctx, nil, f.query.Value)
	} else {
		h, err = f.tree.FindByResourceID(ctx, f.query.Value)
	}
	if err != nil && !errors.Is(err, bridge.ErrUnavailable) {
		logger.Debug("tree lookup %s: %v", f.query, err)
	}
	if err != nil {
		return nil
	}
	return h
}

func (f *Finder) findInShell(ctx context.Context) (*uidump.Node, error) {
	if f.query.Kind == ByText {
		return bridge.ShellFindByText(ctx, f.shell, f.query.Value)
	}
	return bridge.ShellFindByID(ctx, f.shell, f.query.Value)
}
