package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/devicelab-dev/autopilot/pkg/automation"
	"github.com/devicelab-dev/autopilot/pkg/core"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

func printSection(title string) {
	fmt.Printf("\n%s%s%s\n", color(colorBold), title, color(colorReset))
}

// printSetupStep prints an in-progress setup message
func printSetupStep(msg string) {
	fmt.Printf("  %s⏳%s %s\n", color(colorCyan), color(colorReset), msg)
}

// printSetupSuccess prints a success message for setup
func printSetupSuccess(msg string) {
	fmt.Printf("  %s✓%s %s\n", color(colorGreen), color(colorReset), msg)
}

func printWarning(msg string) {
	fmt.Printf("  %s⚠%s %s\n", color(colorYellow), color(colorReset), msg)
}

// statusMark returns the symbol and color for a run status.
func statusMark(s core.RunStatus) (string, string) {
	switch s {
	case core.StatusCompleted:
		return "✓", colorGreen
	case core.StatusFailed:
		return "✗", colorRed
	default:
		return "■", colorYellow
	}
}

// printSummary writes one line per finished run plus its artifacts.
func printSummary(w io.Writer, results []automation.Result) {
	fmt.Fprintf(w, "\n%sSummary%s\n", color(colorBold), color(colorReset))
	fmt.Fprintln(w, strings.Repeat("─", 60))

	for _, r := range results {
		mark, c := statusMark(r.Status)
		fmt.Fprintf(w, "  %s%s%s %-10s %-10s %s%s%s",
			color(c), mark, color(colorReset),
			r.App, r.Status, color(colorDim), formatDuration(r.Duration), color(colorReset))
		if r.Reason != "" {
			fmt.Fprintf(w, "  %s (state %s)", r.Reason, r.LastState)
		}
		fmt.Fprintln(w)
		if r.Message != "" {
			fmt.Fprintf(w, "      %s\n", r.Message)
		}
		for _, a := range r.Artifacts {
			fmt.Fprintf(w, "      %s→%s %s\n", color(colorCyan), color(colorReset), a)
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}
