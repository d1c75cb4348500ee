package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/autopilot/pkg/apps"
	"github.com/devicelab-dev/autopilot/pkg/automation"
	"github.com/devicelab-dev/autopilot/pkg/bridge"
	"github.com/devicelab-dev/autopilot/pkg/config"
	"github.com/devicelab-dev/autopilot/pkg/core"
	"github.com/devicelab-dev/autopilot/pkg/diagnostics"
	"github.com/devicelab-dev/autopilot/pkg/logger"
	"github.com/devicelab-dev/autopilot/pkg/loop"
	"github.com/devicelab-dev/autopilot/pkg/node"
)

// ReasonTimeLimit is the stop reason when --max-duration expires.
const ReasonTimeLimit = "time_limit"

// stopGrace bounds how long a stopping run may take to publish its result,
// diagnostics included.
const stopGrace = 45 * time.Second

const deviceCheckInterval = 5 * time.Second

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run the reward flow of one app or every configured app",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "app",
			Aliases: []string{"a"},
			Usage:   fmt.Sprintf("App to run (%s, or %s for the configured list)", strings.Join(apps.Names(), ", "), apps.All),
			Value:   apps.All,
			EnvVars: []string{"AUTOPILOT_APP"},
		},
		&cli.DurationFlag{
			Name:    "max-duration",
			Usage:   "Fail a run still going after this long (0 = no limit)",
			EnvVars: []string{"AUTOPILOT_MAX_DURATION"},
		},
	},
	Action: runAction,
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	scripts, err := apps.Resolve(c.String("app"), cfg)
	if err != nil {
		return err
	}
	if err := setupLogging(c); err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	printSection("Setup")
	sess, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	r := newRunner(cfg, sess.tree, sess.shell)
	r.limit = c.Duration("max-duration")
	r.supervise = append(r.supervise, func(ctx context.Context) error {
		return sess.monitor(ctx, deviceCheckInterval)
	})

	printSection("Execution")
	results, err := r.run(ctx, scripts)
	printSummary(os.Stdout, results)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Status == core.StatusFailed {
			return cli.Exit("", 1)
		}
	}
	return nil
}

// runner executes scripts one after another on a shared loop, device and
// bridges.
type runner struct {
	loop    *loop.Loop
	watcher *bridge.Watcher
	cfg     automation.Config
	deps    automation.Deps

	// supervise runs alongside the loop for the whole sequence.
	supervise []func(context.Context) error

	limit time.Duration
	grace time.Duration
}

func newRunner(cfg *config.Config, tree bridge.Tree, shell bridge.ShellBackend) *runner {
	l := loop.New()
	def, _, _ := cfg.HeartbeatIntervals()

	var sender diagnostics.Sender
	if cfg.Email.Enabled() {
		sender = diagnostics.NewSMTPSender(cfg.Email)
	}

	return &runner{
		loop:    l,
		watcher: bridge.NewWatcher(tree, shell, l, def),
		cfg:     executorConfig(cfg),
		deps: automation.Deps{
			Loop:   l,
			Tree:   tree,
			Shell:  shell,
			Tool:   node.NewTool(tree, shell, l, node.WithThreshold(cfg.FallbackThreshold)),
			Dumper: diagnostics.New(cfg.DumpDir, tree, shell, sender, cfg.Artifacts),
		},
		grace: stopGrace,
	}
}

func executorConfig(cfg *config.Config) automation.Config {
	return automation.Config{
		Popups:              cfg.Popups,
		LauncherPackages:    cfg.LauncherPackages,
		Interrupters:        cfg.Interrupters,
		RecoveryDelay:       cfg.RecoveryDelay(),
		MaxRecoveryAttempts: cfg.Recovery.MaxAttempts,
		Artifacts:           cfg.Artifacts,
	}
}

// run drives scripts in order. Cancelling ctx stops the active run as
// operator-stopped and skips the rest. The loop and watcher live until the
// last result is in.
func (r *runner) run(ctx context.Context, scripts []automation.Script) ([]automation.Result, error) {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error {
		return ignoreCanceled(r.loop.Run(gctx))
	})
	if r.watcher != nil {
		g.Go(func() error {
			return r.watcher.Run(gctx)
		})
	}
	for _, fn := range r.supervise {
		fn := fn
		g.Go(func() error {
			return fn(gctx)
		})
	}

	var results []automation.Result
	g.Go(func() error {
		defer stopLoop()
		for _, s := range scripts {
			if ctx.Err() != nil {
				return nil
			}
			res, err := r.runOne(ctx, gctx, s)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})

	err := g.Wait()
	return results, err
}

func (r *runner) runOne(ctx, loopCtx context.Context, script automation.Script) (automation.Result, error) {
	ex := automation.New(script, r.cfg, r.deps)
	if r.watcher != nil {
		r.watcher.OnEvent(ex.OnEvent)
	}
	printSetupStep(fmt.Sprintf("Running %s (%s)", script.Name(), script.Package()))

	// Operations hang off the loop's lifetime so an interrupt can still
	// stop the run cleanly.
	ex.Start(loopCtx)

	var deadline <-chan time.Time
	if r.limit > 0 {
		t := time.NewTimer(r.limit)
		defer t.Stop()
		deadline = t.C
	}

	select {
	case res := <-ex.Done():
		return res, nil
	case <-deadline:
		ex.StopWithFailure(ReasonTimeLimit, fmt.Sprintf("run exceeded %s", r.limit))
	case <-ctx.Done():
		ex.Stop(automation.ReasonStopped)
	case <-loopCtx.Done():
		return automation.Result{}, loopCtx.Err()
	}

	grace := time.NewTimer(r.grace)
	defer grace.Stop()
	select {
	case res := <-ex.Done():
		return res, nil
	case <-loopCtx.Done():
		return automation.Result{}, loopCtx.Err()
	case <-grace.C:
		return automation.Result{}, fmt.Errorf("%s did not stop within %s", script.Name(), r.grace)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
