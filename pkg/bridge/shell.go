package bridge

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/devicelab-dev/autopilot/pkg/logger"
)

// Device is the adb surface the shell bridge binds to.
// *device.AndroidDevice satisfies it.
type Device interface {
	Tap(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error
	Back(ctx context.Context) error
	LaunchApp(ctx context.Context, pkg string) error
	StartActivity(ctx context.Context, component string) error
	DumpUI(ctx context.Context) (string, error)
	Screencap(ctx context.Context, localPath string) error
	ForegroundPackage(ctx context.Context) (string, error)
}

// ConnectFunc produces a fresh device binding. Used by Rebind.
type ConnectFunc func() (Device, error)

// ShellConfig tunes the shell bridge.
type ShellConfig struct {
	// DumpInterval is the minimum spacing between UI dumps. Zero disables
	// throttling.
	DumpInterval time.Duration
	// RebindInterval is the first backoff step of Rebind.
	RebindInterval time.Duration
	// RebindTimeout bounds the whole Rebind retry.
	RebindTimeout time.Duration
}

// DefaultShellConfig returns the production settings.
func DefaultShellConfig() ShellConfig {
	return ShellConfig{
		DumpInterval:   500 * time.Millisecond,
		RebindInterval: 500 * time.Millisecond,
		RebindTimeout:  30 * time.Second,
	}
}

// Shell implements ShellBackend over a bound Device.
type Shell struct {
	mu      sync.RWMutex
	dev     Device
	connect ConnectFunc
	cfg     ShellConfig
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewShell creates an unbound shell bridge. connect may be nil when
// Rebind is never needed.
func NewShell(connect ConnectFunc, cfg ShellConfig) *Shell {
	limit := rate.Inf
	if cfg.DumpInterval > 0 {
		limit = rate.Every(cfg.DumpInterval)
	}
	return &Shell{
		connect: connect,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.For("shell"),
	}
}

// Bind attaches dev.
func (s *Shell) Bind(dev Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dev = dev
}

// Unbind detaches the current device.
func (s *Shell) Unbind() {
	s.Bind(nil)
}

// Bound reports whether a device is attached.
func (s *Shell) Bound() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dev != nil
}

// Rebind calls the connect function with exponential backoff until it
// yields a device or RebindTimeout elapses.
func (s *Shell) Rebind(ctx context.Context) error {
	if s.connect == nil {
		return fmt.Errorf("rebind: %w", ErrNotBound)
	}

	b := backoff.NewExponentialBackOff()
	if s.cfg.RebindInterval > 0 {
		b.InitialInterval = s.cfg.RebindInterval
	}
	b.MaxElapsedTime = s.cfg.RebindTimeout

	var dev Device
	attempt := 0
	err := backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		d, err := s.connect()
		if err != nil {
			s.log.Warn().Int("attempt", attempt).Err(err).Msg("rebind failed")
			return err
		}
		dev = d
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return fmt.Errorf("rebind: %w", err)
	}

	s.Bind(dev)
	s.log.Info().Int("attempts", attempt).Msg("shell bridge rebound")
	return nil
}

func (s *Shell) device() (Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dev == nil {
		return nil, ErrNotBound
	}
	return s.dev, nil
}

func (s *Shell) Tap(ctx context.Context, x, y int) error {
	d, err := s.device()
	if err != nil {
		return err
	}
	return d.Tap(ctx, x, y)
}

func (s *Shell) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error {
	d, err := s.device()
	if err != nil {
		return err
	}
	return d.Swipe(ctx, x1, y1, x2, y2, durationMs)
}

func (s *Shell) Back(ctx context.Context) error {
	d, err := s.device()
	if err != nil {
		return err
	}
	return d.Back(ctx)
}

func (s *Shell) OpenAppByPackage(ctx context.Context, pkg string) error {
	d, err := s.device()
	if err != nil {
		return err
	}
	return d.LaunchApp(ctx, pkg)
}

func (s *Shell) OpenAppByActivity(ctx context.Context, component string) error {
	d, err := s.device()
	if err != nil {
		return err
	}
	return d.StartActivity(ctx, component)
}

// DumpUITree returns the uiautomator dump XML. Calls are throttled to
// one per DumpInterval.
func (s *Shell) DumpUITree(ctx context.Context) (string, error) {
	d, err := s.device()
	if err != nil {
		return "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("dump throttle: %w", err)
	}
	start := time.Now()
	xml, err := d.DumpUI(ctx)
	s.log.Debug().Dur("elapsed", time.Since(start)).Int("bytes", len(xml)).Err(err).Msg("ui dump")
	return xml, err
}

// Screenshot writes a PNG to path and reports success. A failed capture
// leaves no file behind.
func (s *Shell) Screenshot(ctx context.Context, path string) bool {
	d, err := s.device()
	if err != nil {
		s.log.Warn().Err(err).Msg("screenshot skipped")
		return false
	}
	if err := d.Screencap(ctx, path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("screenshot failed")
		os.Remove(path)
		return false
	}
	return true
}

func (s *Shell) CurrentForegroundPackage(ctx context.Context) (string, error) {
	d, err := s.device()
	if err != nil {
		return "", err
	}
	return d.ForegroundPackage(ctx)
}

// Exit releases the bound device. Devices that run a UIAutomator2 server
// have it stopped.
func (s *Shell) Exit() error {
	s.mu.Lock()
	dev := s.dev
	s.dev = nil
	s.mu.Unlock()

	if dev == nil {
		return nil
	}
	if stopper, ok := dev.(interface{ StopUIAutomator2() error }); ok {
		return stopper.StopUIAutomator2()
	}
	return nil
}
