package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/devicelab-dev/autopilot/pkg/bridge"
	"github.com/devicelab-dev/autopilot/pkg/config"
	"github.com/devicelab-dev/autopilot/pkg/device"
	"github.com/devicelab-dev/autopilot/pkg/logger"
	"github.com/devicelab-dev/autopilot/pkg/uiautomator2"
)

// session is one connected device with both UI backends bound to it.
type session struct {
	dev    *device.AndroidDevice
	info   device.DeviceInfo
	client *uiautomator2.Client
	tree   *bridge.Accessibility
	shell  *bridge.Shell
}

// connect attaches to the configured device, binds the shell backend and
// tries to bring up a UIAutomator2 session for the tree backend. A device
// without a working UIAutomator2 server still yields a session; lookups
// then go through the shell dump.
func connect(ctx context.Context, cfg *config.Config) (*session, error) {
	// 1. Connect to device
	if cfg.Device != "" {
		printSetupStep(fmt.Sprintf("Connecting to device %s...", cfg.Device))
		logger.Info("Connecting to Android device: %s", cfg.Device)
	} else {
		printSetupStep("Connecting to device...")
		logger.Info("Auto-detecting Android device...")
	}
	dev, err := device.New(cfg.Device)
	if err != nil {
		logger.Error("Failed to connect to device: %v", err)
		return nil, fmt.Errorf("connect to device: %w", err)
	}

	info, err := dev.Info()
	if err != nil {
		logger.Error("Failed to get device info: %v", err)
		return nil, fmt.Errorf("get device info: %w", err)
	}
	logger.Info("Device info: %s %s, SDK %s, Serial %s, Emulator: %v",
		info.Brand, info.Model, info.SDK, info.Serial, info.IsEmulator)
	printSetupSuccess(fmt.Sprintf("Connected to %s %s (SDK %s)", info.Brand, info.Model, info.SDK))

	// 2. Fail fast if another instance owns the device
	socketPath := dev.DefaultSocketPath()
	if isSocketInUse(socketPath) {
		return nil, fmt.Errorf("device %s is already in use\n"+
			"Another autopilot instance may be using this device.\n"+
			"Socket: %s\n"+
			"Hint: Wait for it to finish or use a different device", dev.Serial(), socketPath)
	}

	// 3. Shell backend
	serial := dev.Serial()
	shellCfg := bridge.DefaultShellConfig()
	shellCfg.DumpInterval = cfg.DumpInterval()
	shell := bridge.NewShell(func() (bridge.Device, error) {
		d, err := device.New(serial)
		if err != nil {
			return nil, err
		}
		return d, nil
	}, shellCfg)
	shell.Bind(dev)

	s := &session{
		dev:   dev,
		info:  info,
		tree:  bridge.NewAccessibility(nil),
		shell: shell,
	}

	// 4. Tree backend
	client, err := startUIAutomator2(ctx, dev, cfg)
	if err != nil {
		logger.Warn("UIAutomator2 unavailable, using shell dumps only: %v", err)
		printWarning(fmt.Sprintf("UIAutomator2 unavailable, using shell dumps only (%v)", err))
		return s, nil
	}
	s.client = client
	s.tree.Connect(client)
	printSetupSuccess("UIAutomator2 session ready")
	return s, nil
}

func startUIAutomator2(ctx context.Context, dev *device.AndroidDevice, cfg *config.Config) (*uiautomator2.Client, error) {
	if !dev.IsInstalled(device.UIAutomator2Server) || !dev.IsInstalled(device.UIAutomator2Test) {
		apksDir := config.GetDriversDir("android")
		printSetupStep("Installing UIAutomator2 server...")
		logger.Info("Installing UIAutomator2 APKs from %s", apksDir)
		if err := dev.InstallUIAutomator2(apksDir); err != nil {
			return nil, fmt.Errorf("install UIAutomator2: %w", err)
		}
	}

	printSetupStep("Starting UIAutomator2 server...")
	uiaCfg := device.DefaultUIAutomator2Config()
	uiaCfg.DevicePort = cfg.DevicePort
	if err := dev.StartUIAutomator2(uiaCfg); err != nil {
		return nil, err
	}

	client, err := bridge.OpenSession(ctx, dev.SocketPath())
	if err != nil {
		dev.StopUIAutomator2()
		return nil, err
	}
	logger.Info("UIAutomator2 session %s on %s", client.SessionID(), dev.SocketPath())
	return client, nil
}

// Close ends the UIAutomator2 session and releases the device.
func (s *session) Close() {
	s.tree.Disconnect()
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			logger.Warn("close UIAutomator2 session: %v", err)
		}
	}
	if err := s.shell.Exit(); err != nil {
		logger.Warn("release device: %v", err)
	}
}

// monitor rebinds the shell backend whenever adb stops reporting the
// device. It returns an error only when the device does not come back.
func (s *session) monitor(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		if s.dev.IsConnected() {
			continue
		}

		logger.Warn("device %s lost, rebinding shell backend", s.dev.Serial())
		printWarning(fmt.Sprintf("Device %s disconnected, waiting for it to return...", s.dev.Serial()))
		s.shell.Unbind()
		if err := s.shell.Rebind(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("device %s: %w", s.dev.Serial(), err)
		}
		printSetupSuccess(fmt.Sprintf("Device %s reconnected", s.dev.Serial()))
	}
}

// isSocketInUse reports whether a live process is listening on socketPath.
// A stale socket file is removed.
func isSocketInUse(socketPath string) bool {
	if socketPath == "" {
		return false
	}

	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return false
	}

	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		os.Remove(socketPath)
		return false
	}
	conn.Close()
	return true
}
