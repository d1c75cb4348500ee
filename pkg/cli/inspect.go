package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/autopilot/pkg/bridge"
	"github.com/devicelab-dev/autopilot/pkg/diagnostics"
	"github.com/devicelab-dev/autopilot/pkg/logger"
	"github.com/devicelab-dev/autopilot/pkg/uidump"
)

// ReasonManual names snapshots taken with the dump command.
const ReasonManual = "manual"

var dumpCommand = &cli.Command{
	Name:  "dump",
	Usage: "Write a .uix hierarchy and .png screenshot of the current screen",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Usage:   "Directory to write into (default: dumpDir from config)",
			EnvVars: []string{"AUTOPILOT_DUMP_DIR"},
		},
		&cli.BoolFlag{
			Name:  "email",
			Usage: "Also mail the snapshot using the email settings from config",
		},
	},
	Action: dumpAction,
}

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the UI hierarchy of the current screen",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "shell",
			Usage: "Read the hierarchy from an adb uiautomator dump instead of UIAutomator2",
		},
	},
	Action: hierarchyAction,
}

func dumpAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if dir := c.String("dir"); dir != "" {
		cfg.DumpDir = dir
	}
	artifacts := cfg.Artifacts
	artifacts.UIHierarchy = true
	artifacts.Screenshot = true
	artifacts.Email = c.Bool("email")

	var sender diagnostics.Sender
	if artifacts.Email {
		if !cfg.Email.Enabled() {
			return fmt.Errorf("--email needs email.host, email.from and email.to in config")
		}
		sender = diagnostics.NewSMTPSender(cfg.Email)
	}

	if err := setupLogging(c); err != nil {
		return err
	}
	defer logger.Close()

	printSection("Setup")
	sess, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()

	d := diagnostics.New(cfg.DumpDir, sess.tree, sess.shell, sender, artifacts)
	paths := d.Dump(ctx, diagnostics.DumpInfo{
		Timestamp: time.Now(),
		App:       ReasonManual,
		State:     bridge.Foreground(ctx, sess.tree, sess.shell),
		Reason:    ReasonManual,
	})
	if len(paths) == 0 {
		return fmt.Errorf("nothing captured; see %s", cfg.DumpDir)
	}

	printSection("Snapshot")
	for _, p := range paths {
		printSetupSuccess(p)
	}
	return nil
}

func hierarchyAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := setupLogging(c); err != nil {
		return err
	}
	defer logger.Close()

	sess, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	var tree bridge.Tree = sess.tree
	if c.Bool("shell") {
		tree = nil
	}
	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	roots := diagnostics.New(cfg.DumpDir, tree, sess.shell, nil, cfg.Artifacts).Snapshot(ctx)
	if roots == nil {
		return fmt.Errorf("no UI hierarchy available")
	}
	fmt.Println()
	if err := uidump.Write(os.Stdout, roots); err != nil {
		return err
	}
	fmt.Printf("\n%s%d elements%s\n", color(colorDim), uidump.Count(roots), color(colorReset))
	return nil
}
