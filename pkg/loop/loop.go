// Package loop provides the single-threaded message loop that every
// executor callback runs on.
package loop

import (
	"context"
	"sync"
	"time"
)

// Token identifies a delayed post so it can be cancelled.
type Token uint64

// Handler is the scheduling surface shared by Loop and Manual.
type Handler interface {
	// Post queues fn to run on the loop goroutine.
	Post(fn func())
	// PostDelayed queues fn to run after d.
	PostDelayed(d time.Duration, fn func()) Token
	// Cancel drops a delayed post that has not run yet.
	Cancel(t Token)
	// RemoveAll drops every pending post.
	RemoveAll()
}

type entry struct {
	tok Token // zero for immediate posts
	fn  func()
}

// Loop runs posted functions in FIFO order on the goroutine that calls Run.
type Loop struct {
	mu      sync.Mutex
	queue   []entry
	timers  map[Token]*time.Timer
	next    Token
	wake    chan struct{}
	stop    chan struct{}
	stopped bool
}

// New creates an idle loop. Nothing runs until Run is called.
func New() *Loop {
	return &Loop{
		timers: make(map[Token]*time.Timer),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
}

// Post queues fn. Posts after Stop are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, entry{fn: fn})
	l.mu.Unlock()
	l.signal()
}

// PostDelayed queues fn after d elapses.
func (l *Loop) PostDelayed(d time.Duration, fn func()) Token {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	tok := l.next
	if l.stopped {
		return tok
	}
	l.timers[tok] = time.AfterFunc(d, func() {
		l.mu.Lock()
		if _, ok := l.timers[tok]; !ok {
			l.mu.Unlock()
			return
		}
		delete(l.timers, tok)
		l.queue = append(l.queue, entry{tok: tok, fn: fn})
		l.mu.Unlock()
		l.signal()
	})
	return tok
}

// Cancel drops the delayed post identified by t, whether its timer is
// still pending or it is already queued.
func (l *Loop) Cancel(t Token) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if timer, ok := l.timers[t]; ok {
		timer.Stop()
		delete(l.timers, t)
		return
	}
	for i, e := range l.queue {
		if e.tok == t {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}

// RemoveAll drops every pending post and timer.
func (l *Loop) RemoveAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for tok, timer := range l.timers {
		timer.Stop()
		delete(l.timers, tok)
	}
	l.queue = nil
}

// Pending returns the number of timers and queued posts.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers) + len(l.queue)
}

// Run drains the queue until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if e, ok := l.pop(); ok {
			e.fn()
			continue
		}

		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.stop:
			return nil
		case <-l.wake:
		}
	}
}

// pop takes the head of the queue. Entries stay queued until they run so
// Cancel can still drop them.
func (l *Loop) pop() (entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return entry{}, false
	}
	e := l.queue[0]
	l.queue = l.queue[1:]
	return e, true
}

// Stop ends Run and drops everything still pending.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.mu.Unlock()

	l.RemoveAll()
	close(l.stop)
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
