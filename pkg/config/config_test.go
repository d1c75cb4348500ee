package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/autopilot/pkg/core"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
device: emulator-5554
apps:
  - shopping
heartbeat:
  defaultMs: 800
fallbackThreshold: 2
popups:
  - com.shop.mall:id/close_dialog
interrupters:
  com.android.systemui: android:id/button2
appOverrides:
  music:
    package: com.tunes.player.lite
    ids:
      skip: com.tunes.player.lite:id/splash_skip
    texts:
      entry: Free listening
email:
  host: smtp.example.com
  from: bot@example.com
  to:
    - ops@example.com
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Device != "emulator-5554" {
		t.Errorf("expected device emulator-5554, got %s", cfg.Device)
	}
	if diff := cmp.Diff([]string{"shopping"}, cfg.Apps); diff != "" {
		t.Errorf("apps mismatch (-want +got):\n%s", diff)
	}
	if cfg.Heartbeat.DefaultMs != 800 {
		t.Errorf("expected heartbeat.defaultMs 800, got %d", cfg.Heartbeat.DefaultMs)
	}
	if cfg.Heartbeat.LaunchMs != 500 {
		t.Errorf("expected default launchMs 500, got %d", cfg.Heartbeat.LaunchMs)
	}
	if cfg.FallbackThreshold != 2 {
		t.Errorf("expected fallbackThreshold 2, got %d", cfg.FallbackThreshold)
	}
	if cfg.Interrupters["com.android.systemui"] != "android:id/button2" {
		t.Errorf("unexpected interrupters: %v", cfg.Interrupters)
	}

	music := cfg.AppOverrides["music"]
	want := AppConfig{
		Package: "com.tunes.player.lite",
		IDs:     map[string]string{"skip": "com.tunes.player.lite:id/splash_skip"},
		Texts:   map[string]string{"entry": "Free listening"},
	}
	if diff := cmp.Diff(want, music); diff != "" {
		t.Errorf("music override mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Email.Enabled() {
		t.Error("expected email to be enabled")
	}
	if cfg.Email.Port != 587 {
		t.Errorf("expected default email port 587, got %d", cfg.Email.Port)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `apps: [invalid yaml`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_EmptyConfigGetsDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(configPath, []byte(``), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"music", "shopping"}, cfg.Apps); diff != "" {
		t.Errorf("default apps mismatch (-want +got):\n%s", diff)
	}
	def, launch, adWait := cfg.HeartbeatIntervals()
	if def != time.Second || launch != 500*time.Millisecond || adWait != 5*time.Second {
		t.Errorf("unexpected heartbeat intervals: %v %v %v", def, launch, adWait)
	}
	if cfg.FallbackThreshold != 3 {
		t.Errorf("expected fallbackThreshold 3, got %d", cfg.FallbackThreshold)
	}
	if cfg.Artifacts != core.DefaultArtifactConfig() {
		t.Errorf("expected default artifacts, got %+v", cfg.Artifacts)
	}
	if cfg.DumpInterval() != 500*time.Millisecond {
		t.Errorf("expected dump interval 500ms, got %v", cfg.DumpInterval())
	}
	if cfg.RecoveryDelay() != 1500*time.Millisecond {
		t.Errorf("expected recovery delay 1.5s, got %v", cfg.RecoveryDelay())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero threshold", func(c *Config) { c.FallbackThreshold = 0 }, true},
		{"negative heartbeat", func(c *Config) { c.Heartbeat.DefaultMs = -1 }, true},
		{"email artifact without smtp", func(c *Config) { c.Artifacts.Email = true }, true},
		{"email artifact with smtp", func(c *Config) {
			c.Artifacts.Email = true
			c.Email = EmailConfig{Host: "smtp", From: "a@b", To: []string{"c@d"}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && core.CategoryOf(err) != core.ErrCategoryConfig {
				t.Errorf("expected config category, got %s", core.CategoryOf(err))
			}
			var ee *core.ExecutionError
			if err != nil && !errors.As(err, &ee) {
				t.Error("expected ExecutionError")
			}
		})
	}
}

func TestLoadFromDir_ConfigYaml(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `device: serial-a`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Device != "serial-a" {
		t.Errorf("expected device serial-a, got %s", cfg.Device)
	}
}

func TestLoadFromDir_ConfigYml(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	content := `device: serial-b`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Device != "serial-b" {
		t.Errorf("expected device serial-b, got %s", cfg.Device)
	}
}

func TestLoadFromDir_NoConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Device != "" {
		t.Errorf("expected empty device, got %s", cfg.Device)
	}
	if cfg.FallbackThreshold != 3 {
		t.Errorf("expected default fallbackThreshold, got %d", cfg.FallbackThreshold)
	}
}

func TestLoadFromDir_PrefersYamlOverYml(t *testing.T) {
	dir := t.TempDir()

	// Create both config.yaml and config.yml
	yamlContent := `device: from-yaml`
	ymlContent := `device: from-yml`

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(ymlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should prefer config.yaml
	if cfg.Device != "from-yaml" {
		t.Errorf("expected device from-yaml (from config.yaml), got %s", cfg.Device)
	}
}
