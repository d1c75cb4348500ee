package automation

import (
	"github.com/devicelab-dev/autopilot/pkg/bridge"
)

// interceptPopups dismisses known interstitials. It runs on every tick and
// every event regardless of the in-flight slot; only one scan runs at a time.
func (e *Executor) interceptPopups() {
	tree := e.deps.Tree
	if tree == nil || len(e.cfg.Popups) == 0 {
		return
	}
	if !e.popupBusy.CompareAndSwap(false, true) {
		return
	}
	ctx, ids, log := e.ctx, e.cfg.Popups, e.log
	e.deps.Spawn(func() {
		defer e.popupBusy.Store(false)
		if bridge.DismissPopups(ctx, tree, ids) {
			log.Info().Msg("popup dismissed")
		}
	})
}
