package automation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devicelab-dev/autopilot/pkg/bridge"
	"github.com/devicelab-dev/autopilot/pkg/core"
	"github.com/devicelab-dev/autopilot/pkg/diagnostics"
	"github.com/devicelab-dev/autopilot/pkg/logger"
	"github.com/devicelab-dev/autopilot/pkg/loop"
	"github.com/devicelab-dev/autopilot/pkg/node"
)

// Defaults for Config fields left at zero.
const (
	DefaultRecoveryDelay       = 1500 * time.Millisecond
	DefaultMaxRecoveryAttempts = 5
	DefaultOpTimeout           = 60 * time.Second
	dumpTimeout                = 30 * time.Second
)

// Stop reasons raised by the executor itself.
const (
	ReasonStopped           = "stopped"
	ReasonStuck             = "stuck"
	ReasonRecoveryExhausted = "recovery_exhausted"
)

// Config tunes an Executor.
type Config struct {
	// Resource ids dismissed with a global back whenever they show up.
	Popups []string
	// Packages treated as the home screen by recovery.
	LauncherPackages []string
	// Interrupting package -> resource id of its dismiss button.
	Interrupters map[string]string

	RecoveryDelay       time.Duration
	MaxRecoveryAttempts int
	// OpTimeout stops the run when one operation stays in flight longer.
	OpTimeout time.Duration

	Artifacts core.ArtifactConfig
}

// Dumper writes diagnostics for a stopped run.
type Dumper interface {
	Dump(ctx context.Context, info diagnostics.DumpInfo) []string
}

// Deps are the collaborators an Executor drives. Loop is required; Tool
// is built from the backends when nil.
type Deps struct {
	Loop   loop.Handler
	Tree   bridge.Tree
	Shell  bridge.ShellBackend
	Tool   *node.Tool
	Dumper Dumper
	// Spawn runs blocking work off the loop. Defaults to a goroutine.
	Spawn node.Spawner
}

// Result describes a finished run.
type Result struct {
	App       string
	RunID     string
	Status    core.RunStatus
	Reason    string
	Message   string
	LastState State
	Artifacts []string
	Duration  time.Duration
}

// Executor runs one Script on the loop. Every method except State, Busy
// and Done must be called on the loop or goes through it.
type Executor struct {
	script Script
	cfg    Config
	deps   Deps
	base   zerolog.Logger
	log    zerolog.Logger

	// Loop-confined.
	gen        uint64
	running    bool
	ctx        context.Context
	cancel     context.CancelFunc
	runID      string
	startedAt  time.Time
	finders    map[string]*node.Finder
	tokens     map[loop.Token]struct{}
	foreground string
	recovering bool
	attempts   int
	nextOp     uint64

	popupBusy atomic.Bool

	mu    sync.Mutex
	state State
	op    *op

	done chan Result
}

// New creates an executor for script.
func New(script Script, cfg Config, deps Deps) *Executor {
	if cfg.RecoveryDelay <= 0 {
		cfg.RecoveryDelay = DefaultRecoveryDelay
	}
	if cfg.MaxRecoveryAttempts <= 0 {
		cfg.MaxRecoveryAttempts = DefaultMaxRecoveryAttempts
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	if deps.Spawn == nil {
		deps.Spawn = node.Go
	}
	if deps.Tool == nil {
		deps.Tool = node.NewTool(deps.Tree, deps.Shell, deps.Loop, node.WithSpawner(deps.Spawn))
	}

	base := logger.For("executor").With().Str("app", script.Name()).Logger()
	return &Executor{
		script: script,
		cfg:    cfg,
		deps:   deps,
		base:   base,
		log:    base,
		ctx:    context.Background(),
		cancel: func() {},
		tokens: make(map[loop.Token]struct{}),
		state:  script.Initial(),
		done:   make(chan Result, 1),
	}
}

// Start begins a run. It is a no-op while a run is active.
func (e *Executor) Start(ctx context.Context) {
	e.deps.Loop.Post(func() { e.start(ctx) })
}

// Stop ends the run at the operator's request. No diagnostics are taken
// unless the artifact config asks for them.
func (e *Executor) Stop(reason string) {
	e.deps.Loop.Post(func() { e.stop(core.StatusStopped, reason, "") })
}

// StopWithFailure ends the run as failed and triggers the diagnostics dump.
func (e *Executor) StopWithFailure(reason, message string) {
	e.deps.Loop.Post(func() { e.stop(core.StatusFailed, reason, message) })
}

// OnEvent records the foreground package reported by the watcher and runs
// the popup interceptor. It must be called on the loop.
func (e *Executor) OnEvent(ev bridge.Event) {
	if !e.running {
		return
	}
	if ev.Package != e.foreground {
		e.log.Debug().Str("package", ev.Package).Msg("foreground")
	}
	e.foreground = ev.Package
	e.interceptPopups()
}

// State returns the current state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Busy reports whether an operation is in flight.
func (e *Executor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.op != nil
}

// Done delivers the result of each finished run.
func (e *Executor) Done() <-chan Result {
	return e.done
}

// Script returns the script being run.
func (e *Executor) Script() Script {
	return e.script
}

func (e *Executor) start(parent context.Context) {
	if e.running {
		e.log.Warn().Msg("start ignored, already running")
		return
	}
	e.gen++
	e.running = true
	e.ctx, e.cancel = context.WithCancel(parent)
	e.runID = uuid.NewString()
	e.startedAt = time.Now()
	e.finders = make(map[string]*node.Finder)
	e.foreground = ""
	e.recovering = false
	e.attempts = 0
	e.log = e.base.With().Str("run", e.runID).Logger()
	e.setState(e.script.Initial())

	e.log.Info().Str("package", e.script.Package()).Msg("run started")
	gen := e.gen
	e.schedule(gen, 0, func() { e.tick(gen) })
}

// live reports whether callbacks of generation gen may still act.
func (e *Executor) live(gen uint64) bool {
	return e.running && e.gen == gen
}

// schedule posts fn after d and tracks the token so stop can cancel it.
func (e *Executor) schedule(gen uint64, d time.Duration, fn func()) loop.Token {
	var tok loop.Token
	tok = e.deps.Loop.PostDelayed(d, func() {
		delete(e.tokens, tok)
		if e.live(gen) {
			fn()
		}
	})
	e.tokens[tok] = struct{}{}
	return tok
}

func (e *Executor) cancelToken(tok loop.Token) {
	e.deps.Loop.Cancel(tok)
	delete(e.tokens, tok)
}

// post runs fn on the loop if generation gen is still live by then.
func (e *Executor) post(gen uint64, fn func()) {
	e.deps.Loop.Post(func() {
		if e.live(gen) {
			fn()
		}
	})
}

func (e *Executor) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

// tick is one heartbeat.
func (e *Executor) tick(gen uint64) {
	state := e.State()
	e.schedule(gen, e.script.Interval(state), func() { e.tick(gen) })

	e.interceptPopups()

	if e.inflight() != nil {
		e.log.Debug().Str("state", string(state)).Msg("busy, skipping dispatch")
		return
	}
	if e.recovering {
		return
	}
	if !e.inForeground(state) {
		e.startRecovery(gen)
		return
	}
	e.dispatch(gen, state)
}

// inForeground reports whether the target app owns the screen. An unknown
// foreground and the initial state (which launches the app) both pass.
func (e *Executor) inForeground(state State) bool {
	if state == e.script.Initial() || e.foreground == "" {
		return true
	}
	return e.foreground == e.script.Package()
}

// dispatch runs the current state's probes in order and resolves the
// first match, or the empty outcome when none matches.
func (e *Executor) dispatch(gen uint64, state State) {
	step := e.script.Plan(state)
	o := e.begin(gen, state)
	e.probe(o, step, 0)
}

func (e *Executor) probe(o *op, step Step, i int) {
	if i >= len(step.Probes) {
		e.resolve(o, Outcome{})
		return
	}
	p := step.Probes[i]
	ctx := e.ctx
	log := e.log

	err := e.deps.Tool.Promise(e.finder(o.state, p)).
		Then(func(r node.Result) {
			if !e.current(o) {
				return
			}
			// Reading text and bounds may hit the device; keep it off the loop.
			e.deps.Spawn(func() {
				out := readOutcome(ctx, p.Name, r)
				e.post(o.gen, func() {
					if !e.current(o) {
						return
					}
					o.result = r
					e.resolve(o, out)
				})
			})
		}).
		OnMissing(func() {
			if e.current(o) {
				e.probe(o, step, i+1)
			}
		}).
		OnError(func(err error) {
			if !e.current(o) {
				return
			}
			log.Warn().Err(err).Str("state", string(o.state)).Str("probe", p.Name).Msg("lookup failed")
			if step.Optional {
				e.probe(o, step, i+1)
				return
			}
			e.resolve(o, Outcome{Err: err})
		}).
		Start(ctx)
	if err != nil {
		log.Error().Err(err).Str("probe", p.Name).Msg("start lookup")
		e.release(o)
	}
}

// finder returns the run's finder for (state, probe) so its failure count
// carries over between heartbeats.
func (e *Executor) finder(state State, p Probe) *node.Finder {
	key := string(state) + "/" + p.Name + "/" + p.Query.String()
	f, ok := e.finders[key]
	if !ok {
		f = e.deps.Tool.Finder(p.Query)
		e.finders[key] = f
	}
	return f
}

func readOutcome(ctx context.Context, name string, r node.Result) Outcome {
	out := Outcome{Probe: name}
	if text, ok := r.Text(ctx); ok {
		out.Text = text
	}
	out.X, out.Y, out.HasCenter = r.Center(ctx)
	return out
}

func (e *Executor) resolve(o *op, out Outcome) {
	tr := e.script.Resolve(o.state, out)
	e.log.Debug().
		Str("state", string(o.state)).
		Str("probe", out.Probe).
		Str("text", out.Text).
		Str("next", string(tr.Next)).
		Int("effects", len(tr.Effects)).
		Msg("resolved")
	e.apply(o, tr, 0)
}

// stop ends the run: pending callbacks are cancelled, the state returns to
// the initial one and diagnostics are captured off the loop when the
// artifact config asks for them.
func (e *Executor) stop(status core.RunStatus, reason, message string) {
	if !e.running {
		return
	}
	last := e.State()

	e.running = false
	e.gen++
	for tok := range e.tokens {
		e.deps.Loop.Cancel(tok)
	}
	e.tokens = make(map[loop.Token]struct{})
	e.mu.Lock()
	e.op = nil
	e.mu.Unlock()
	e.recovering = false
	e.cancel()
	e.setState(e.script.Initial())

	res := Result{
		App:       e.script.Name(),
		RunID:     e.runID,
		Status:    status,
		Reason:    reason,
		Message:   message,
		LastState: last,
		Duration:  time.Since(e.startedAt),
	}

	ev := e.log.Info()
	if status == core.StatusFailed {
		ev = e.log.Error()
	}
	ev.Str("status", status.String()).
		Str("reason", reason).
		Str("message", message).
		Str("state", string(last)).
		Dur("duration", res.Duration).
		Msg("run stopped")

	if e.deps.Dumper == nil || !e.cfg.Artifacts.ShouldCapture(status) {
		e.publish(res)
		return
	}
	info := diagnostics.DumpInfo{
		Timestamp: time.Now(),
		App:       res.App,
		RunID:     res.RunID,
		State:     string(last),
		Reason:    reason,
		Message:   message,
	}
	dumper := e.deps.Dumper
	e.deps.Spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), dumpTimeout)
		defer cancel()
		res.Artifacts = dumper.Dump(ctx, info)
		e.publish(res)
	})
}

func (e *Executor) publish(res Result) {
	select {
	case e.done <- res:
	default:
		e.base.Warn().Str("run", res.RunID).Msg("previous result not collected, dropping")
	}
}

func (e *Executor) String() string {
	return fmt.Sprintf("%s[%s]", e.script.Name(), e.State())
}
