package automation

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/autopilot/pkg/core"
	"github.com/devicelab-dev/autopilot/pkg/loop"
	"github.com/devicelab-dev/autopilot/pkg/node"
)

// op is the single in-flight operation slot. While it is held the
// heartbeat skips dispatch. It is released when the step's transition
// completes or the run stops; a watchdog stops the run if neither happens.
type op struct {
	id       uint64
	gen      uint64
	state    State
	started  time.Time
	watchdog loop.Token
	// result is the node the step matched, if any.
	result node.Result
}

func (e *Executor) begin(gen uint64, state State) *op {
	e.nextOp++
	o := &op{id: e.nextOp, gen: gen, state: state, started: time.Now()}
	o.watchdog = e.armWatchdog(o, e.cfg.OpTimeout)

	e.mu.Lock()
	e.op = o
	e.mu.Unlock()
	return o
}

func (e *Executor) inflight() *op {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.op
}

// current reports whether o still owns the slot in a live run.
func (e *Executor) current(o *op) bool {
	return e.live(o.gen) && e.inflight() == o
}

func (e *Executor) release(o *op) {
	e.mu.Lock()
	owned := e.op == o
	if owned {
		e.op = nil
	}
	e.mu.Unlock()
	if owned {
		e.cancelToken(o.watchdog)
	}
}

func (e *Executor) armWatchdog(o *op, d time.Duration) loop.Token {
	return e.schedule(o.gen, d, func() {
		if e.inflight() != o {
			return
		}
		err := core.ErrOperationStuck.WithMessage(fmt.Sprintf("op %d in %s held for %v", o.id, o.state, time.Since(o.started).Round(time.Millisecond)))
		e.stop(core.StatusFailed, ReasonStuck, err.Error())
	})
}

// extend pushes the watchdog back by d, for effects that hold the slot on
// purpose.
func (e *Executor) extend(o *op, d time.Duration) {
	e.cancelToken(o.watchdog)
	o.watchdog = e.armWatchdog(o, d+e.cfg.OpTimeout)
}
