package node

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/devicelab-dev/autopilot/pkg/core"
	"github.com/devicelab-dev/autopilot/pkg/loop"
)

// Default retry policy recorded on every promise.
const (
	DefaultRetryTimeout  = 2000 * time.Millisecond
	DefaultRetryInterval = 500 * time.Millisecond
)

// ErrAlreadyStarted is returned by a second Start on the same promise.
var ErrAlreadyStarted = errors.New("promise already started")

// Spawner runs fn off the loop.
type Spawner func(fn func())

// Go runs fn on a new goroutine.
func Go(fn func()) { go fn() }

// Promise is a single-shot asynchronous lookup. The search runs through
// the spawner; exactly one of the callbacks then runs on the loop.
//
// The retry timeout and interval are recorded but Start performs a single
// search. Retrying is the caller's job: the heartbeat issues a new promise
// on its next tick.
type Promise struct {
	finder  *Finder
	handler loop.Handler
	spawn   Spawner

	retryTimeout  time.Duration
	retryInterval time.Duration

	then    func(Result)
	missing func()
	onErr   func(error)

	started atomic.Bool
}

// NewPromise wraps finder. Callbacks are delivered through handler.
func NewPromise(finder *Finder, handler loop.Handler) *Promise {
	return &Promise{
		finder:        finder,
		handler:       handler,
		spawn:         Go,
		retryTimeout:  DefaultRetryTimeout,
		retryInterval: DefaultRetryInterval,
	}
}

// Then sets the found callback.
func (p *Promise) Then(fn func(Result)) *Promise {
	p.then = fn
	return p
}

// OnMissing sets the not-found callback.
func (p *Promise) OnMissing(fn func()) *Promise {
	p.missing = fn
	return p
}

// OnError sets the error callback.
func (p *Promise) OnError(fn func(error)) *Promise {
	p.onErr = fn
	return p
}

// Retry records a retry policy.
func (p *Promise) Retry(timeout, interval time.Duration) *Promise {
	p.retryTimeout = timeout
	p.retryInterval = interval
	return p
}

// RetryPolicy returns the recorded timeout and interval.
func (p *Promise) RetryPolicy() (timeout, interval time.Duration) {
	return p.retryTimeout, p.retryInterval
}

// WithSpawner replaces the goroutine spawner.
func (p *Promise) WithSpawner(s Spawner) *Promise {
	p.spawn = s
	return p
}

// Start launches the search. The outcome is always posted to the loop,
// never delivered on the caller's stack.
func (p *Promise) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	p.spawn(func() {
		res, err := p.TryFind(ctx)
		p.handler.Post(func() { p.deliver(res, err) })
	})
	return nil
}

// TryFind runs one search on the calling goroutine. Panics are recovered
// and returned as errors.
func (p *Promise) TryFind(ctx context.Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = core.ErrSearchPanicked.WithMessage(fmt.Sprintf("%s: %v", p.finder.Query(), r))
		}
	}()
	return p.finder.FindWithRetry(ctx)
}

func (p *Promise) deliver(res Result, err error) {
	switch {
	case err != nil:
		if p.onErr != nil {
			p.onErr(err)
		}
	case res != nil:
		if p.then != nil {
			p.then(res)
		}
	default:
		if p.missing != nil {
			p.missing()
		}
	}
}
