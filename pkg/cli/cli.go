// Package cli provides the command-line interface for autopilot.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/autopilot/pkg/config"
	"github.com/devicelab-dev/autopilot/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config.yaml (default: $AUTOPILOT_HOME/config.yaml)",
		EnvVars: []string{"AUTOPILOT_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"s"},
		Usage:   "ADB serial of the device to drive (overrides config)",
		EnvVars: []string{"AUTOPILOT_DEVICE", "ANDROID_SERIAL"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Also log to the console at debug level",
		EnvVars: []string{"AUTOPILOT_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the command tree. Split from Execute so tests can run it.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "autopilot",
		Usage:   "Heartbeat-driven automation for Android reward apps",
		Version: Version,
		Description: `autopilot drives a music app and a shopping app on an Android device
through their daily reward flows, using UIAutomator2 with an adb shell
fallback. Failed runs leave a .uix hierarchy and a .png screenshot.

Examples:
  autopilot run --app music
  autopilot run --app all --device emulator-5554
  autopilot dump
  autopilot apps`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			dumpCommand,
			hierarchyCommand,
			appsCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config, or config.yaml/config.yml under the home
// directory, then applies flag overrides and validates.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(config.GetHome())
	}
	if err != nil {
		return nil, err
	}

	if serial := c.String("device"); serial != "" {
		cfg.Device = serial
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging opens the log file under the home directory. With
// --verbose, debug lines go to stderr instead.
func setupLogging(c *cli.Context) error {
	if c.Bool("verbose") {
		logger.InitWriter(logger.ConsoleWriter(os.Stderr, !colorsEnabled), zerolog.DebugLevel)
		return nil
	}

	path := config.GetLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	return logger.Init(path)
}
