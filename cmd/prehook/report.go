package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ANSI color codes for the result column.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// useColor resolves the color setting against the output destination.
// "auto" colors only real terminals.
func useColor(setting string, w io.Writer) bool {
	switch setting {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// printResult renders one hook outcome as a dot-leader line, followed
// by diagnostics when the hook failed.
func printResult(w io.Writer, res HookResult, width int, color bool) {
	label, tint := statusLabel(res.Status)

	dots := width - len(res.Name) + 3
	if dots < 3 {
		dots = 3
	}
	line := res.Name + strings.Repeat(".", dots)
	if color {
		line += tint + label + colorReset
	} else {
		line += label
	}
	fmt.Fprintln(w, line)

	if res.Status == statusSkipped && res.SkipReason != "" {
		fmt.Fprintf(w, "- skipped: %s\n", res.SkipReason)
	}

	// Verbose hooks show their output even when they pass.
	if res.Status == statusPassed && res.Verbose {
		if res.Duration > 0 {
			fmt.Fprintf(w, "- duration: %s\n", res.Duration.Round(time.Millisecond))
		}
		if out := strings.TrimRight(string(res.Output), "\n"); out != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, out)
			fmt.Fprintln(w)
		}
	}

	if res.Status != statusFailed {
		return
	}

	fmt.Fprintf(w, "- hook id: %s\n", res.ID)
	if res.ExitCode != 0 {
		fmt.Fprintf(w, "- exit code: %d\n", res.ExitCode)
	}
	if res.Duration > 0 {
		fmt.Fprintf(w, "- duration: %s\n", res.Duration.Round(time.Millisecond))
	}
	if len(res.Modified) > 0 {
		fmt.Fprintln(w, "- files were modified by this hook")
		for _, f := range res.Modified {
			fmt.Fprintf(w, "    %s\n", f)
		}
	}
	if out := strings.TrimRight(string(res.Output), "\n"); out != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, out)
		fmt.Fprintln(w)
	}
}

// statusLabel maps a status to its display text and color.
func statusLabel(status string) (string, string) {
	switch status {
	case statusPassed:
		return "Passed", colorGreen
	case statusFailed:
		return "Failed", colorRed
	case statusSkipped:
		return "Skipped", colorYellow
	}
	return status, colorReset
}
