// Package device provides Android device access via ADB.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// dumpPath is where `uiautomator dump` writes on the device.
const dumpPath = "/data/local/tmp/autopilot_dump.xml"

// AndroidDevice manages an Android device connection via ADB.
type AndroidDevice struct {
	serial     string
	adbPath    string
	socketPath string // Unix socket path for UIAutomator2
}

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string
	Model      string
	SDK        string
	Brand      string
	IsEmulator bool
}

// New creates an AndroidDevice for the given serial.
// If serial is empty, it auto-detects the connected device.
func New(serial string) (*AndroidDevice, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}

	// Auto-detect serial if not provided
	if serial == "" {
		serial, err = detectDeviceSerial(adbPath)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
	}

	d := &AndroidDevice{
		serial:  serial,
		adbPath: adbPath,
	}

	// Verify device is connected
	if err := d.waitForDevice(5 * time.Second); err != nil {
		return nil, fmt.Errorf("device not found: %w", err)
	}

	return d, nil
}

// detectDeviceSerial finds the first connected device serial.
func detectDeviceSerial(adbPath string) (string, error) {
	cmd := exec.Command(adbPath, "devices")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(out), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[1] == "device" {
			return parts[0], nil
		}
	}
	return "", fmt.Errorf("no connected devices found")
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(cmd string) (string, error) {
	return d.adb(context.Background(), "shell", cmd)
}

// ShellContext executes a shell command on the device, honouring ctx.
func (d *AndroidDevice) ShellContext(ctx context.Context, cmd string) (string, error) {
	return d.adb(ctx, "shell", cmd)
}

// Tap injects a tap at screen coordinates.
func (d *AndroidDevice) Tap(ctx context.Context, x, y int) error {
	_, err := d.ShellContext(ctx, fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// Swipe injects a swipe gesture lasting durationMs.
func (d *AndroidDevice) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error {
	_, err := d.ShellContext(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs))
	return err
}

// Back presses the hardware back key.
func (d *AndroidDevice) Back(ctx context.Context) error {
	_, err := d.ShellContext(ctx, "input keyevent 4")
	return err
}

// LaunchApp starts the launcher activity of pkg using monkey
// (works without knowing the activity name).
func (d *AndroidDevice) LaunchApp(ctx context.Context, pkg string) error {
	out, err := d.ShellContext(ctx, fmt.Sprintf("monkey -p %s -c android.intent.category.LAUNCHER 1", pkg))
	if err != nil {
		return err
	}
	if strings.Contains(out, "No activities found") {
		return fmt.Errorf("launch %s: no launchable activity", pkg)
	}
	return nil
}

// StartActivity starts an explicit component ("pkg/.Activity").
func (d *AndroidDevice) StartActivity(ctx context.Context, component string) error {
	out, err := d.ShellContext(ctx, "am start -n "+component)
	if err != nil {
		return err
	}
	if strings.Contains(out, "Error:") {
		return fmt.Errorf("start %s: %s", component, strings.TrimSpace(out))
	}
	return nil
}

// ForceStop kills an app.
func (d *AndroidDevice) ForceStop(ctx context.Context, pkg string) error {
	_, err := d.ShellContext(ctx, "am force-stop "+pkg)
	return err
}

// DumpUI runs `uiautomator dump` and returns the XML it produced.
func (d *AndroidDevice) DumpUI(ctx context.Context) (string, error) {
	// Dump and read in one command; && ensures cat only runs if dump succeeds
	out, err := d.ShellContext(ctx, fmt.Sprintf("uiautomator dump %s >/dev/null && cat %s", dumpPath, dumpPath))
	if err != nil {
		return "", err
	}
	start := strings.Index(out, "<?xml")
	if start < 0 {
		return "", fmt.Errorf("ui dump returned no XML: %.80q", out)
	}
	return out[start:], nil
}

// Screencap captures the screen as PNG and writes it to localPath.
func (d *AndroidDevice) Screencap(ctx context.Context, localPath string) error {
	data, err := d.adbBytes(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}) {
		return fmt.Errorf("screencap returned %d bytes without PNG header", len(data))
	}
	return os.WriteFile(localPath, data, 0644)
}

var (
	focusRe   = regexp.MustCompile(`mCurrentFocus=Window\{\S+ \S+ ([^/\s}]+)`)
	resumedRe = regexp.MustCompile(`u0 ([^/\s]+)/([^\s}]+)`)
)

// ForegroundPackage returns the package owning the focused window.
func (d *AndroidDevice) ForegroundPackage(ctx context.Context) (string, error) {
	out, err := d.ShellContext(ctx, "dumpsys window | grep mCurrentFocus")
	if err == nil {
		if pkg := parseFocusedPackage(out); pkg != "" {
			return pkg, nil
		}
	}

	out, err = d.ShellContext(ctx, "dumpsys activity activities | grep mResumedActivity")
	if err != nil {
		return "", err
	}
	if m := resumedRe.FindStringSubmatch(out); len(m) >= 3 {
		return m[1], nil
	}
	return "", nil
}

// parseFocusedPackage extracts the package from
// "mCurrentFocus=Window{abc u0 com.example/com.example.MainActivity}".
func parseFocusedPackage(out string) string {
	if m := focusRe.FindStringSubmatch(out); len(m) >= 2 {
		return m[1]
	}
	return ""
}

// IsInstalled checks if a package is installed.
func (d *AndroidDevice) IsInstalled(pkg string) bool {
	out, err := d.Shell("pm list packages " + pkg)
	if err != nil {
		return false
	}
	return strings.Contains(out, "package:"+pkg)
}

// Install installs an APK on the device.
func (d *AndroidDevice) Install(apkPath string) error {
	_, err := d.adb(context.Background(), "install", "-r", "-g", apkPath)
	return err
}

// ForwardSocket forwards a Unix socket to a device TCP port.
func (d *AndroidDevice) ForwardSocket(socketPath string, remotePort int) error {
	_, err := d.adb(context.Background(), "forward", fmt.Sprintf("localfilesystem:%s", socketPath), fmt.Sprintf("tcp:%d", remotePort))
	return err
}

// RemoveSocketForward removes a Unix socket forward.
func (d *AndroidDevice) RemoveSocketForward(socketPath string) error {
	_, err := d.adb(context.Background(), "forward", "--remove", fmt.Sprintf("localfilesystem:%s", socketPath))
	return err
}

// DefaultSocketPath returns the default Unix socket path for this device.
func (d *AndroidDevice) DefaultSocketPath() string {
	return fmt.Sprintf("/tmp/autopilot-uia2-%s.sock", d.serial)
}

// SocketPath returns the current UIAutomator2 socket path (empty if not started).
func (d *AndroidDevice) SocketPath() string {
	return d.socketPath
}

// Info returns device information.
func (d *AndroidDevice) Info() (DeviceInfo, error) {
	info := DeviceInfo{Serial: d.serial}

	if model, err := d.Shell("getprop ro.product.model"); err == nil {
		info.Model = strings.TrimSpace(model)
	}
	if sdk, err := d.Shell("getprop ro.build.version.sdk"); err == nil {
		info.SDK = strings.TrimSpace(sdk)
	}
	if brand, err := d.Shell("getprop ro.product.brand"); err == nil {
		info.Brand = strings.TrimSpace(brand)
	}

	// Check if emulator
	chars, _ := d.Shell("getprop ro.kernel.qemu")
	info.IsEmulator = strings.TrimSpace(chars) == "1"

	return info, nil
}

// IsConnected checks if the device is reachable.
func (d *AndroidDevice) IsConnected() bool {
	out, err := d.adb(context.Background(), "get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "device"
}

// adb executes an ADB command and returns stdout as a string.
func (d *AndroidDevice) adb(ctx context.Context, args ...string) (string, error) {
	out, err := d.adbBytes(ctx, args...)
	return string(out), err
}

func (d *AndroidDevice) adbBytes(ctx context.Context, args ...string) ([]byte, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, d.adbPath, cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return nil, fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, errMsg)
	}

	return stdout.Bytes(), nil
}

// waitForDevice waits for the device to be available.
func (d *AndroidDevice) waitForDevice(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.IsConnected() {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for device %s", d.serial)
}

// findADB locates the ADB binary.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}

	if home := os.Getenv("ANDROID_HOME"); home != "" {
		path := home + "/platform-tools/adb"
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("adb not found in PATH; ensure Android SDK is installed")
}
