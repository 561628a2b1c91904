package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func hookPath(t *testing.T, root, stage string) string {
	t.Helper()
	dir, err := gitDir(root)
	if err != nil {
		t.Fatalf("gitDir: %v", err)
	}
	return filepath.Join(dir, "hooks", stage)
}

func TestInstallHooks_WritesScript(t *testing.T) {
	root := initTestRepo(t)
	written, err := installHooks(root, []string{stagePreCommit}, false)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("expected 1 script, got %v", written)
	}

	data, err := os.ReadFile(written[0])
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if !isPrehookScript(data) {
		t.Error("script missing prehook marker")
	}
	if !strings.Contains(string(data), "prehook run --stage pre-commit") {
		t.Errorf("script does not invoke prehook:\n%s", data)
	}

	info, err := os.Stat(written[0])
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Error("hook script not executable")
	}
}

func TestInstallHooks_PreservesForeignHook(t *testing.T) {
	root := initTestRepo(t)
	path := hookPath(t, root, stagePreCommit)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	foreign := "#!/bin/sh\necho custom check\n"
	if err := os.WriteFile(path, []byte(foreign), 0o755); err != nil {
		t.Fatalf("write foreign hook: %v", err)
	}

	if _, err := installHooks(root, []string{stagePreCommit}, false); err != nil {
		t.Fatalf("install: %v", err)
	}

	legacy, err := os.ReadFile(path + legacySuffix)
	if err != nil {
		t.Fatalf("legacy hook not preserved: %v", err)
	}
	if string(legacy) != foreign {
		t.Errorf("legacy content changed: %q", legacy)
	}

	script, _ := os.ReadFile(path)
	if !strings.Contains(string(script), legacySuffix) {
		t.Errorf("installed script does not chain to legacy:\n%s", script)
	}
}

func TestInstallHooks_OverwriteDropsForeignHook(t *testing.T) {
	root := initTestRepo(t)
	path := hookPath(t, root, stagePreCommit)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := installHooks(root, []string{stagePreCommit}, true); err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := os.Stat(path + legacySuffix); !os.IsNotExist(err) {
		t.Error("overwrite must not create a legacy hook")
	}
}

func TestInstallHooks_ReinstallKeepsChaining(t *testing.T) {
	root := initTestRepo(t)
	path := hookPath(t, root, stagePreCommit)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho old\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := installHooks(root, []string{stagePreCommit}, false); err != nil {
		t.Fatalf("first install: %v", err)
	}
	if _, err := installHooks(root, []string{stagePreCommit}, false); err != nil {
		t.Fatalf("second install: %v", err)
	}

	script, _ := os.ReadFile(path)
	if !strings.Contains(string(script), legacySuffix) {
		t.Errorf("reinstall lost the legacy chain:\n%s", script)
	}
	if _, err := os.Stat(path + legacySuffix); err != nil {
		t.Errorf("legacy hook gone after reinstall: %v", err)
	}
}

func TestUninstallHooks_RestoresLegacy(t *testing.T) {
	root := initTestRepo(t)
	path := hookPath(t, root, stagePreCommit)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	foreign := "#!/bin/sh\necho custom\n"
	if err := os.WriteFile(path, []byte(foreign), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := installHooks(root, []string{stagePreCommit}, false); err != nil {
		t.Fatalf("install: %v", err)
	}
	removed, err := uninstallHooks(root, []string{stagePreCommit})
	if err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if len(removed) != 1 {
		t.Fatalf("expected 1 removal, got %v", removed)
	}

	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("legacy not restored: %v", err)
	}
	if string(restored) != foreign {
		t.Errorf("restored content wrong: %q", restored)
	}
}

func TestUninstallHooks_LeavesForeignHooksAlone(t *testing.T) {
	root := initTestRepo(t)
	path := hookPath(t, root, stagePreCommit)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	foreign := "#!/bin/sh\necho mine\n"
	if err := os.WriteFile(path, []byte(foreign), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}

	removed, err := uninstallHooks(root, []string{stagePreCommit})
	if err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("foreign hook removed: %v", removed)
	}
	if data, _ := os.ReadFile(path); string(data) != foreign {
		t.Errorf("foreign hook changed: %q", data)
	}
}

func TestInstalledHookState(t *testing.T) {
	root := initTestRepo(t)

	installed, current := installedHookState(root, stagePreCommit)
	if installed || current {
		t.Error("nothing installed yet")
	}

	if _, err := installHooks(root, []string{stagePreCommit}, false); err != nil {
		t.Fatalf("install: %v", err)
	}
	installed, current = installedHookState(root, stagePreCommit)
	if !installed || !current {
		t.Errorf("expected installed and current, got %v %v", installed, current)
	}
}

func TestHookScriptFor_MultipleStages(t *testing.T) {
	script := hookScriptFor(stagePrePush, false)
	if !strings.Contains(script, "--stage pre-push") {
		t.Errorf("wrong stage in script:\n%s", script)
	}
	if !strings.HasPrefix(script, "#!/bin/sh\n") {
		t.Errorf("missing shebang:\n%s", script)
	}
}

func TestHookScriptFor_PrePushForwardsRanges(t *testing.T) {
	script := hookScriptFor(stagePrePush, false)
	if !strings.Contains(script, `refs="$(cat)"`) {
		t.Errorf("pre-push script must capture stdin:\n%s", script)
	}
	if !strings.Contains(script, "--from-ref") || !strings.Contains(script, "--to-ref") {
		t.Errorf("pre-push script must forward the pushed range:\n%s", script)
	}

	// Other stages never touch stdin.
	commit := hookScriptFor(stagePreCommit, false)
	if strings.Contains(commit, "$(cat)") {
		t.Errorf("pre-commit script must not consume stdin:\n%s", commit)
	}
}

func TestHookScriptFor_PrePushLegacyGetsRefs(t *testing.T) {
	script := hookScriptFor(stagePrePush, true)
	if !strings.Contains(script, `printf '%s\n' "$refs" | "$legacy"`) {
		t.Errorf("legacy pre-push hook must be fed the captured refs:\n%s", script)
	}
}
