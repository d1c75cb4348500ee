package device

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeADB installs a shell script named adb at the front of PATH. Every
// invocation appends its arguments to a log file; responses are canned per
// subcommand so the tests never need a device.
func fakeADB(t *testing.T) (logPath string) {
	t.Helper()

	dir := t.TempDir()
	logPath = filepath.Join(dir, "adb.log")
	script := `#!/bin/sh
echo "$@" >> "` + logPath + `"
if [ "$1" = "-s" ]; then shift; shift; fi
case "$1" in
  devices)
    printf 'List of devices attached\nemulator-5554\tdevice\n'
    ;;
  get-state)
    echo device
    ;;
  exec-out)
    printf '\211PNG\r\n\032\nfakeimage'
    ;;
  shell)
    case "$2" in
      uiautomator*)
        printf 'UI hierchary dumped to: /data/local/tmp/autopilot_dump.xml\n<?xml version="1.0"?><hierarchy><node text="Skip" bounds="[100,200][300,400]" /></hierarchy>'
        ;;
      "dumpsys window"*)
        echo '  mCurrentFocus=Window{1a2b3c u0 com.shop.mall/com.shop.mall.MainActivity}'
        ;;
      monkey*)
        case "$2" in
          *missing.app*) echo '** No activities found to run, monkey aborted.' ;;
          *) echo 'Events injected: 1' ;;
        esac
        ;;
      getprop*)
        case "$2" in
          *model) echo Pixel 7 ;;
          *sdk) echo 34 ;;
          *brand) echo google ;;
          *qemu) echo 1 ;;
        esac
        ;;
      "pm list packages"*)
        echo "package:com.shop.mall"
        ;;
      fail*)
        echo 'boom' >&2
        exit 1
        ;;
      *)
        echo "ok"
        ;;
    esac
    ;;
esac
`
	if err := os.WriteFile(filepath.Join(dir, "adb"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read adb log: %v", err)
	}
	return string(data)
}

func TestNew_AutoDetectsSerial(t *testing.T) {
	fakeADB(t)

	d, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if d.Serial() != "emulator-5554" {
		t.Errorf("expected emulator-5554, got %s", d.Serial())
	}
}

func TestShellPrimitives(t *testing.T) {
	logPath := fakeADB(t)
	ctx := context.Background()

	d, err := New("emulator-5554")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := d.Tap(ctx, 200, 300); err != nil {
		t.Fatalf("Tap failed: %v", err)
	}
	if err := d.Swipe(ctx, 500, 1500, 500, 500, 300); err != nil {
		t.Fatalf("Swipe failed: %v", err)
	}
	if err := d.Back(ctx); err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if err := d.StartActivity(ctx, "com.shop.mall/.MainActivity"); err != nil {
		t.Fatalf("StartActivity failed: %v", err)
	}
	if err := d.ForceStop(ctx, "com.shop.mall"); err != nil {
		t.Fatalf("ForceStop failed: %v", err)
	}

	log := readLog(t, logPath)
	for _, want := range []string{
		"-s emulator-5554 shell input tap 200 300",
		"-s emulator-5554 shell input swipe 500 1500 500 500 300",
		"-s emulator-5554 shell input keyevent 4",
		"-s emulator-5554 shell am start -n com.shop.mall/.MainActivity",
		"-s emulator-5554 shell am force-stop com.shop.mall",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("adb log missing %q:\n%s", want, log)
		}
	}
}

func TestLaunchApp(t *testing.T) {
	fakeADB(t)
	d, err := New("emulator-5554")
	if err != nil {
		t.Fatal(err)
	}

	if err := d.LaunchApp(context.Background(), "com.shop.mall"); err != nil {
		t.Errorf("LaunchApp failed: %v", err)
	}
	if err := d.LaunchApp(context.Background(), "com.missing.app"); err == nil {
		t.Error("expected error when monkey finds no activity")
	}
}

func TestDumpUI_StripsPreamble(t *testing.T) {
	fakeADB(t)
	d, err := New("emulator-5554")
	if err != nil {
		t.Fatal(err)
	}

	xml, err := d.DumpUI(context.Background())
	if err != nil {
		t.Fatalf("DumpUI failed: %v", err)
	}
	if !strings.HasPrefix(xml, "<?xml") {
		t.Errorf("expected XML prefix, got %q", xml)
	}
	if !strings.Contains(xml, `bounds="[100,200][300,400]"`) {
		t.Errorf("expected node in dump, got %q", xml)
	}
}

func TestScreencap_WritesPNG(t *testing.T) {
	fakeADB(t)
	d, err := New("emulator-5554")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "shot.png")
	if err := d.Screencap(context.Background(), path); err != nil {
		t.Fatalf("Screencap failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("expected PNG header, got %v", data[:4])
	}
}

func TestForegroundPackage(t *testing.T) {
	fakeADB(t)
	d, err := New("emulator-5554")
	if err != nil {
		t.Fatal(err)
	}

	pkg, err := d.ForegroundPackage(context.Background())
	if err != nil {
		t.Fatalf("ForegroundPackage failed: %v", err)
	}
	if pkg != "com.shop.mall" {
		t.Errorf("expected com.shop.mall, got %q", pkg)
	}
}

func TestParseFocusedPackage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  mCurrentFocus=Window{1a2b3c u0 com.example/com.example.MainActivity}", "com.example"},
		{"mCurrentFocus=Window{ff u0 com.android.launcher3/com.android.launcher3.Launcher}", "com.android.launcher3"},
		{"mCurrentFocus=null", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseFocusedPackage(tt.in); got != tt.want {
			t.Errorf("parseFocusedPackage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShell_ErrorIncludesStderr(t *testing.T) {
	fakeADB(t)
	d, err := New("emulator-5554")
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.Shell("fail now")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}

func TestInfo(t *testing.T) {
	fakeADB(t)
	d, err := New("emulator-5554")
	if err != nil {
		t.Fatal(err)
	}

	info, err := d.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Model != "Pixel 7" || info.SDK != "34" || info.Brand != "google" || !info.IsEmulator {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestIsInstalled(t *testing.T) {
	fakeADB(t)
	d, err := New("emulator-5554")
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsInstalled("com.shop.mall") {
		t.Error("expected com.shop.mall to be installed")
	}
	if d.IsInstalled("com.tunes.player") {
		t.Error("expected com.tunes.player to be missing")
	}
}

func TestFindAPK(t *testing.T) {
	dir := t.TempDir()
	apk := filepath.Join(dir, "appium-uiautomator2-server-v7.0.0.apk")
	if err := os.WriteFile(apk, []byte("apk"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := findAPK(dir, "appium-uiautomator2-server-v*.apk")
	if err != nil {
		t.Fatalf("findAPK failed: %v", err)
	}
	if got != apk {
		t.Errorf("expected %s, got %s", apk, got)
	}

	if _, err := findAPK(dir, "missing-*.apk"); err == nil {
		t.Error("expected error for missing APK")
	}
}
