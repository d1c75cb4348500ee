package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/autopilot/pkg/apps"
)

var appsCommand = &cli.Command{
	Name:   "apps",
	Usage:  "List the app scripts with their packages and states",
	Action: appsAction,
}

func appsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	w := c.App.Writer

	for _, name := range apps.Names() {
		s, err := apps.Build(name, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s%s%s  %s\n", color(colorBold), name, color(colorReset), s.Package())
		states := s.States()
		parts := make([]string, 0, len(states))
		for _, st := range states {
			parts = append(parts, fmt.Sprintf("%s (%s)", st, s.Interval(st)))
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(parts, " → "))
	}
	fmt.Fprintf(w, "\nrun --app %s runs: %s\n", apps.All, strings.Join(cfg.Apps, ", "))
	return nil
}
