package automation

import (
	"context"
	"errors"
	"fmt"

	"github.com/devicelab-dev/autopilot/pkg/core"
	"github.com/devicelab-dev/autopilot/pkg/node"
)

var errNoMatch = errors.New("click requested but no node matched")

// apply runs tr's effects from index i. Effects that touch the device run
// off the loop; Wait holds the slot; Stop ends the run.
func (e *Executor) apply(o *op, tr Transition, i int) {
	if !e.current(o) {
		return
	}
	if i >= len(tr.Effects) {
		e.complete(o, tr.Next)
		return
	}

	switch eff := tr.Effects[i].(type) {
	case Wait:
		e.log.Info().Str("state", string(o.state)).Dur("wait", eff.D).Msg("holding")
		e.extend(o, eff.D)
		e.schedule(o.gen, eff.D, func() { e.apply(o, tr, i+1) })

	case Stop:
		e.release(o)
		status := core.StatusFailed
		if eff.Completed {
			status = core.StatusCompleted
		}
		e.stop(status, eff.Reason, eff.Message)

	default:
		ctx, log, res := e.ctx, e.log, o.result
		e.deps.Spawn(func() {
			err := e.perform(ctx, res, eff)
			e.post(o.gen, func() {
				if !e.current(o) {
					return
				}
				if err != nil {
					log.Warn().Err(err).Str("state", string(o.state)).Str("effect", effectName(eff)).Msg("effect failed")
				}
				if _, ok := eff.(Launch); ok {
					// The watcher reports the launched app.
					e.foreground = ""
				}
				e.apply(o, tr, i+1)
			})
		})
	}
}

// complete releases the slot and enters next.
func (e *Executor) complete(o *op, next State) {
	e.release(o)
	if next == "" || next == o.state {
		return
	}
	e.log.Info().Str("from", string(o.state)).Str("to", string(next)).Msg("transition")
	e.setState(next)
}

// perform runs one device effect. It runs off the loop.
func (e *Executor) perform(ctx context.Context, res node.Result, eff Effect) error {
	shell := e.deps.Shell
	switch eff := eff.(type) {
	case Click:
		if res == nil {
			return errNoMatch
		}
		return res.Click(ctx)
	case TapAt:
		return shell.Tap(ctx, eff.X, eff.Y)
	case Swipe:
		return shell.Swipe(ctx, eff.X1, eff.Y1, eff.X2, eff.Y2, int(eff.Duration.Milliseconds()))
	case Back:
		return e.back(ctx)
	case Launch:
		return e.launch(ctx)
	default:
		return fmt.Errorf("unsupported effect %T", eff)
	}
}

// back presses back through the shell, falling back to the tree's global
// action.
func (e *Executor) back(ctx context.Context) error {
	err := e.deps.Shell.Back(ctx)
	if err == nil {
		return nil
	}
	if e.deps.Tree != nil && e.deps.Tree.GlobalBack(ctx) {
		return nil
	}
	return err
}

func (e *Executor) launch(ctx context.Context) error {
	if activity := e.script.Activity(); activity != "" {
		return e.deps.Shell.OpenAppByActivity(ctx, activity)
	}
	return e.deps.Shell.OpenAppByPackage(ctx, e.script.Package())
}

func effectName(eff Effect) string {
	switch eff.(type) {
	case Click:
		return "click"
	case TapAt:
		return "tap"
	case Swipe:
		return "swipe"
	case Back:
		return "back"
	case Launch:
		return "launch"
	case Wait:
		return "wait"
	case Stop:
		return "stop"
	}
	return fmt.Sprintf("%T", eff)
}
