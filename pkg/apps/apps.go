// Package apps maps script names to the app scripts, applying the
// workspace config on top of each app's defaults.
package apps

import (
	"fmt"
	"sort"

	"github.com/devicelab-dev/autopilot/pkg/apps/base"
	"github.com/devicelab-dev/autopilot/pkg/apps/music"
	"github.com/devicelab-dev/autopilot/pkg/apps/shopping"
	"github.com/devicelab-dev/autopilot/pkg/automation"
	"github.com/devicelab-dev/autopilot/pkg/config"
	"github.com/devicelab-dev/autopilot/pkg/core"
)

// All selects every configured app.
const All = "all"

type factory struct {
	defaults func() base.Config
	build    func(base.Config) automation.Script
}

var registry = map[string]factory{
	music.Name: {
		defaults: music.DefaultConfig,
		build:    func(c base.Config) automation.Script { return music.New(c) },
	},
	shopping.Name: {
		defaults: shopping.DefaultConfig,
		build:    func(c base.Config) automation.Script { return shopping.New(c) },
	},
}

// Names returns the known script names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build returns the script called name configured from cfg.
func Build(name string, cfg *config.Config) (automation.Script, error) {
	f, ok := registry[name]
	if !ok {
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown app %q (known: %v)", name, Names()))
	}
	c := f.defaults().WithIntervals(cfg)
	if o, ok := cfg.AppOverrides[name]; ok {
		c = c.Merge(o)
	}
	return f.build(c), nil
}

// Resolve expands a --app value into the scripts to run, in order. "all"
// runs cfg.Apps.
func Resolve(app string, cfg *config.Config) ([]automation.Script, error) {
	names := []string{app}
	if app == All || app == "" {
		names = cfg.Apps
	}
	scripts := make([]automation.Script, 0, len(names))
	for _, name := range names {
		s, err := Build(name, cfg)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}
