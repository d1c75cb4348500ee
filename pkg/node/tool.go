package node

import (
	"github.com/devicelab-dev/autopilot/pkg/bridge"
	"github.com/devicelab-dev/autopilot/pkg/loop"
)

// Tool builds finders and promises bound to one pair of backends.
type Tool struct {
	tree      bridge.Tree
	shell     bridge.ShellBackend
	handler   loop.Handler
	threshold int
	spawn     Spawner
}

// Option configures a Tool.
type Option func(*Tool)

// WithThreshold sets the fallback threshold of every finder.
func WithThreshold(n int) Option {
	return func(t *Tool) { t.threshold = n }
}

// WithSpawner sets how promises run their search.
func WithSpawner(s Spawner) Option {
	return func(t *Tool) { t.spawn = s }
}

// NewTool creates a tool.
func NewTool(tree bridge.Tree, shell bridge.ShellBackend, handler loop.Handler, opts ...Option) *Tool {
	t := &Tool{
		tree:      tree,
		shell:     shell,
		handler:   handler,
		threshold: DefaultFallbackThreshold,
		spawn:     Go,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Finder returns a new finder for q.
func (t *Tool) Finder(q Query) *Finder {
	return NewFinder(q, t.tree, t.shell, t.threshold)
}

// Promise wraps an existing finder.
func (t *Tool) Promise(f *Finder) *Promise {
	return NewPromise(f, t.handler).WithSpawner(t.spawn)
}

// ByID returns a promise for a resource id lookup on a fresh finder.
func (t *Tool) ByID(id string) *Promise {
	return t.Promise(t.Finder(ID(id)))
}

// ByText returns a promise for an exact text lookup on a fresh finder.
func (t *Tool) ByText(text string) *Promise {
	return t.Promise(t.Finder(Text(text)))
}
