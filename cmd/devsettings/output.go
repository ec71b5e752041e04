package main

import (
	"fmt"
	"os"

	"github.com/kalambet/devsettings/internal/mirror"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, fmt.Sprintf(format, args...))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+fmt.Sprintf(format, args...)))
}

// formatState renders one control for get/list. Disabled controls are
// dimmed.
func formatState(st mirror.State) string {
	line := fmt.Sprintf("%-22s %-8s %s", st.Key, st.Value, st.Kind)
	switch {
	case st.Range != nil:
		line += fmt.Sprintf(" [%d..%d]", st.Range.Min, st.Range.Max)
	case len(st.Options) > 0:
		line += fmt.Sprintf(" %v", st.Options)
	}
	if !st.Enabled {
		return colorize(colorDim, line+" (disabled)")
	}
	return line
}

// cliNotifier shows mirror notices on the terminal.
type cliNotifier struct{}

func (cliNotifier) Warn(msg string) { printWarning("%s", msg) }
func (cliNotifier) Info(msg string) { printStep("%s", msg) }
