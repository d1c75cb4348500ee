package automation

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/autopilot/pkg/bridge"
	"github.com/devicelab-dev/autopilot/pkg/core"
)

// startRecovery brings the target app back to the foreground. It re-invokes
// itself after RecoveryDelay until the app is back or the attempts run out;
// the heartbeat does not dispatch meanwhile.
func (e *Executor) startRecovery(gen uint64) {
	e.recovering = true
	e.attempts = 0
	e.log.Warn().Str("foreground", e.foreground).Msg("app left the foreground, recovering")
	e.recoverStep(gen)
}

func (e *Executor) recoverStep(gen uint64) {
	fg := e.foreground
	if fg == "" || fg == e.script.Package() {
		e.log.Info().Int("attempts", e.attempts).Msg("recovered")
		e.recovering = false
		return
	}
	if e.attempts >= e.cfg.MaxRecoveryAttempts {
		e.recovering = false
		e.stop(core.StatusFailed, ReasonRecoveryExhausted, fmt.Sprintf("foreground stuck on %s after %d attempts", fg, e.attempts))
		return
	}
	e.attempts++

	ctx, log, attempt := e.ctx, e.log, e.attempts
	e.deps.Spawn(func() {
		action, err := e.recoveryAction(ctx, fg)
		if err != nil {
			log.Warn().Err(err).Str("action", action).Int("attempt", attempt).Msg("recovery action failed")
		} else {
			log.Info().Str("action", action).Str("foreground", fg).Int("attempt", attempt).Msg("recovery action")
		}
		e.post(gen, func() {
			e.schedule(gen, e.cfg.RecoveryDelay, func() { e.recheck(gen) })
		})
	})
}

// recheck refreshes the foreground package off the loop, then takes the
// next recovery step.
func (e *Executor) recheck(gen uint64) {
	ctx, tree, shell := e.ctx, e.deps.Tree, e.deps.Shell
	e.deps.Spawn(func() {
		pkg := bridge.Foreground(ctx, tree, shell)
		e.post(gen, func() {
			if pkg != "" {
				e.foreground = pkg
			}
			e.recoverStep(gen)
		})
	})
}

// recoveryAction relaunches from the launcher, dismisses a known
// interrupter, or presses back. It runs off the loop.
func (e *Executor) recoveryAction(ctx context.Context, fg string) (string, error) {
	if e.isLauncher(fg) {
		return "relaunch", e.launch(ctx)
	}
	if id, ok := e.cfg.Interrupters[fg]; ok && e.deps.Tree != nil {
		h, err := e.deps.Tree.FindByResourceID(ctx, id)
		if err == nil && h != nil {
			return "dismiss", h.Click(ctx)
		}
	}
	return "back", e.back(ctx)
}

func (e *Executor) isLauncher(pkg string) bool {
	for _, l := range e.cfg.LauncherPackages {
		if l == pkg {
			return true
		}
	}
	return false
}
