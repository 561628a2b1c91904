package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPrintResult_PassedLine(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, HookResult{ID: "fmt", Name: "Format", Status: statusPassed}, 10, false)
	got := buf.String()
	if !strings.HasPrefix(got, "Format...") {
		t.Errorf("expected dot leader, got %q", got)
	}
	if !strings.Contains(got, "Passed") {
		t.Errorf("expected Passed, got %q", got)
	}
}

func TestPrintResult_AlignsToWidth(t *testing.T) {
	var a, b bytes.Buffer
	printResult(&a, HookResult{Name: "ab", Status: statusPassed}, 10, false)
	printResult(&b, HookResult{Name: "abcdefghij", Status: statusPassed}, 10, false)

	lineA := strings.SplitN(a.String(), "\n", 2)[0]
	lineB := strings.SplitN(b.String(), "\n", 2)[0]
	if len(lineA) != len(lineB) {
		t.Errorf("lines not aligned: %q vs %q", lineA, lineB)
	}
}

func TestPrintResult_FailureDetails(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, HookResult{
		ID:       "lint",
		Name:     "Linter",
		Status:   statusFailed,
		ExitCode: 2,
		Duration: 1500 * time.Millisecond,
		Output:   []byte("main.go:3: unused variable\n"),
		Modified: []string{"main.go"},
	}, 6, false)

	got := buf.String()
	for _, want := range []string{
		"Failed",
		"- hook id: lint",
		"- exit code: 2",
		"- duration: 1.5s",
		"- files were modified by this hook",
		"    main.go",
		"main.go:3: unused variable",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in output:\n%s", want, got)
		}
	}
}

func TestPrintResult_VerbosePassedShowsOutput(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, HookResult{
		Name: "Format", Status: statusPassed, Verbose: true,
		Output: []byte("reformatted nothing\n"), Duration: 1500 * time.Millisecond,
	}, 10, false)
	got := buf.String()
	if !strings.Contains(got, "reformatted nothing") {
		t.Errorf("verbose pass should show output, got %q", got)
	}
	if !strings.Contains(got, "duration: 1.5s") {
		t.Errorf("verbose pass should show duration, got %q", got)
	}
}

func TestPrintResult_QuietPassedHidesOutput(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, HookResult{
		Name: "Format", Status: statusPassed,
		Output: []byte("reformatted nothing\n"),
	}, 10, false)
	if strings.Contains(buf.String(), "reformatted nothing") {
		t.Errorf("non-verbose pass should stay quiet, got %q", buf.String())
	}
}

func TestPrintResult_SkipReason(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, HookResult{
		Name: "x", Status: statusSkipped, SkipReason: "no files to check",
	}, 1, false)
	if !strings.Contains(buf.String(), "- skipped: no files to check") {
		t.Errorf("missing skip reason:\n%s", buf.String())
	}
}

func TestPrintResult_Color(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, HookResult{Name: "x", Status: statusPassed}, 1, true)
	if !strings.Contains(buf.String(), colorGreen) || !strings.Contains(buf.String(), colorReset) {
		t.Errorf("expected color codes:\n%q", buf.String())
	}

	buf.Reset()
	printResult(&buf, HookResult{Name: "x", Status: statusPassed}, 1, false)
	if strings.Contains(buf.String(), "\033[") {
		t.Errorf("unexpected color codes:\n%q", buf.String())
	}
}

func TestUseColor_Settings(t *testing.T) {
	var buf bytes.Buffer
	if useColor("always", &buf) != true {
		t.Error("always should color any writer")
	}
	if useColor("never", &buf) != false {
		t.Error("never should not color")
	}
	if useColor("auto", &buf) != false {
		t.Error("auto should not color a plain buffer")
	}
}

func TestStatusLabel(t *testing.T) {
	cases := []struct {
		status string
		label  string
		tint   string
	}{
		{statusPassed, "Passed", colorGreen},
		{statusFailed, "Failed", colorRed},
		{statusSkipped, "Skipped", colorYellow},
	}
	for _, c := range cases {
		label, tint := statusLabel(c.status)
		if label != c.label || tint != c.tint {
			t.Errorf("statusLabel(%q) = %q, %q", c.status, label, tint)
		}
	}
}
