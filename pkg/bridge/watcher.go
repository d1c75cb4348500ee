package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/devicelab-dev/autopilot/pkg/logger"
	"github.com/devicelab-dev/autopilot/pkg/loop"
)

// Watcher polls the foreground package and posts an Event onto the loop
// whenever it changes. It stands in for window-change notifications.
type Watcher struct {
	tree     Tree
	shell    ShellBackend
	handler  loop.Handler
	interval time.Duration

	mu   sync.Mutex
	sink func(Event)
	last string
}

// NewWatcher creates a watcher. The tree backend is asked first; the shell
// is consulted only when the tree has no answer.
func NewWatcher(tree Tree, shell ShellBackend, handler loop.Handler, interval time.Duration) *Watcher {
	return &Watcher{
		tree:     tree,
		shell:    shell,
		handler:  handler,
		interval: interval,
	}
}

// OnEvent sets the function events are delivered to. It runs on the loop.
func (w *Watcher) OnEvent(fn func(Event)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sink = fn
	w.last = ""
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.Poll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll checks the foreground package once.
func (w *Watcher) Poll(ctx context.Context) {
	pkg := Foreground(ctx, w.tree, w.shell)
	if pkg == "" {
		return
	}

	w.mu.Lock()
	if pkg == w.last || w.sink == nil {
		w.mu.Unlock()
		return
	}
	w.last = pkg
	sink := w.sink
	w.mu.Unlock()

	logger.Debug("foreground changed to %s", pkg)
	ev := Event{Package: pkg, At: time.Now()}
	w.handler.Post(func() { sink(ev) })
}

// Foreground returns the package owning the focused window, asking tree
// first and shell second. Either may be nil. It returns "" when unknown.
func Foreground(ctx context.Context, tree Tree, shell ShellBackend) string {
	if tree != nil {
		if pkg := tree.CurrentPackage(ctx); pkg != "" {
			return pkg
		}
	}
	if shell == nil {
		return ""
	}
	pkg, err := shell.CurrentForegroundPackage(ctx)
	if err != nil {
		return ""
	}
	return pkg
}
