// Package config handles configuration for autopilot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/autopilot/pkg/core"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Device settings
	Device     string `yaml:"device"`     // ADB serial, empty = auto-detect
	DevicePort int    `yaml:"devicePort"` // UIAutomator2 port on device

	// Which scripts `run --app all` executes, in order
	Apps []string `yaml:"apps"`

	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Recovery  RecoveryConfig  `yaml:"recovery"`

	// Consecutive tree failures before the shell dump is consulted
	FallbackThreshold int `yaml:"fallbackThreshold"`
	// Minimum spacing between two shell UI dumps (ms)
	DumpIntervalMs int `yaml:"dumpIntervalMs"`

	// Known interstitial resource ids dismissed with a global back
	Popups []string `yaml:"popups"`
	// Packages treated as "the home screen" by foreground recovery
	LauncherPackages []string `yaml:"launcherPackages"`
	// Interrupting app package -> resource id of its dismiss button
	Interrupters map[string]string `yaml:"interrupters"`

	// Diagnostics
	DumpDir   string              `yaml:"dumpDir"`
	Artifacts core.ArtifactConfig `yaml:"artifacts"`
	Email     EmailConfig         `yaml:"email"`

	// Per-app overrides keyed by script name (music, shopping)
	AppOverrides map[string]AppConfig `yaml:"appOverrides"`
}

// HeartbeatConfig holds heartbeat intervals in milliseconds.
type HeartbeatConfig struct {
	DefaultMs int `yaml:"defaultMs"`
	LaunchMs  int `yaml:"launchMs"`
	AdWaitMs  int `yaml:"adWaitMs"`
}

// RecoveryConfig controls the return-to-foreground loop.
type RecoveryConfig struct {
	DelayMs     int `yaml:"delayMs"`
	MaxAttempts int `yaml:"maxAttempts"`
}

// EmailConfig configures the optional diagnostics mail.
type EmailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	// Width in pixels the attached screenshot is scaled down to (0 = keep)
	ScreenshotWidth uint `yaml:"screenshotWidth"`
}

// Enabled reports whether enough is configured to send mail.
func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.From != "" && len(e.To) > 0
}

// AppConfig overrides a script's package, launch activity, ids and literals.
type AppConfig struct {
	Package  string            `yaml:"package"`
	Activity string            `yaml:"activity"`
	IDs      map[string]string `yaml:"ids"`
	Texts    map[string]string `yaml:"texts"`
}

// Default returns the configuration used when no config.yaml exists.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.DevicePort == 0 {
		c.DevicePort = 6790
	}
	if len(c.Apps) == 0 {
		c.Apps = []string{"music", "shopping"}
	}
	if c.Heartbeat.DefaultMs == 0 {
		c.Heartbeat.DefaultMs = 1000
	}
	if c.Heartbeat.LaunchMs == 0 {
		c.Heartbeat.LaunchMs = 500
	}
	if c.Heartbeat.AdWaitMs == 0 {
		c.Heartbeat.AdWaitMs = 5000
	}
	if c.Recovery.DelayMs == 0 {
		c.Recovery.DelayMs = 1500
	}
	if c.Recovery.MaxAttempts == 0 {
		c.Recovery.MaxAttempts = 5
	}
	if c.FallbackThreshold == 0 {
		c.FallbackThreshold = 3
	}
	if c.DumpIntervalMs == 0 {
		c.DumpIntervalMs = 500
	}
	if len(c.LauncherPackages) == 0 {
		c.LauncherPackages = []string{
			"com.android.launcher3",
			"com.google.android.apps.nexuslauncher",
			"com.miui.home",
			"com.huawei.android.launcher",
		}
	}
	if c.DumpDir == "" {
		c.DumpDir = GetDumpDir()
	}
	if c.Artifacts == (core.ArtifactConfig{}) {
		c.Artifacts = core.DefaultArtifactConfig()
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.FallbackThreshold < 1 {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("fallbackThreshold must be >= 1, got %d", c.FallbackThreshold))
	}
	for name, ms := range map[string]int{
		"heartbeat.defaultMs": c.Heartbeat.DefaultMs,
		"heartbeat.launchMs":  c.Heartbeat.LaunchMs,
		"heartbeat.adWaitMs":  c.Heartbeat.AdWaitMs,
		"recovery.delayMs":    c.Recovery.DelayMs,
	} {
		if ms < 0 {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s must not be negative, got %d", name, ms))
		}
	}
	if c.Artifacts.Email && !c.Email.Enabled() {
		return core.ErrInvalidConfig.WithMessage("artifacts.email requires email.host, email.from and email.to")
	}
	return nil
}

// HeartbeatIntervals returns the heartbeat intervals as durations.
func (c *Config) HeartbeatIntervals() (def, launch, adWait time.Duration) {
	return ms(c.Heartbeat.DefaultMs), ms(c.Heartbeat.LaunchMs), ms(c.Heartbeat.AdWaitMs)
}

// RecoveryDelay returns the delay between recovery attempts.
func (c *Config) RecoveryDelay() time.Duration {
	return ms(c.Recovery.DelayMs)
}

// DumpInterval returns the minimum spacing between shell UI dumps.
func (c *Config) DumpInterval() time.Duration {
	return ms(c.DumpIntervalMs)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}
