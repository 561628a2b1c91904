package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DiagnoseResult is the outcome of one preflight check.
type DiagnoseResult struct {
	Check  string `json:"check"`
	Status string `json:"status"` // "ok", "warn", "fail"
	Detail string `json:"detail,omitempty"`
}

// DiagnoseOutput is the complete diagnose output.
type DiagnoseOutput struct {
	Version string           `json:"version"`
	Checks  []DiagnoseResult `json:"checks"`
	OK      bool             `json:"ok"`
}

// RunDiagnose runs all preflight checks and prints JSON to stdout.
// Warnings (hook not installed, no config yet) do not flip OK; only a
// broken prerequisite does.
func RunDiagnose(configPath string, settings Settings) bool {
	output := DiagnoseOutput{
		Version: Version,
		Checks:  make([]DiagnoseResult, 0),
	}

	allOK := true
	add := func(check, status, detail string) {
		output.Checks = append(output.Checks, DiagnoseResult{Check: check, Status: status, Detail: detail})
		if status == "fail" {
			allOK = false
		}
	}

	// 1. git usable
	if v, err := gitVersion(); err == nil {
		add("git", "ok", v)
	} else {
		add("git", "fail", fmt.Sprintf("git not usable: %v", err))
	}

	// 2. inside a git repository
	root, err := cachedRepoRoot()
	if err != nil {
		add("repository", "fail", err.Error())
	} else {
		add("repository", "ok", root)
	}

	// 3. config present and valid
	path := configPath
	if path == "" && root != "" {
		path = filepath.Join(root, ConfigFileName)
	}
	switch {
	case path == "":
		add("config", "warn", "no repository, config not checked")
	default:
		if _, statErr := os.Stat(path); statErr != nil {
			add("config", "warn", fmt.Sprintf("%s not found", path))
			break
		}
		if cfg, loadErr := loadConfigFile(path); loadErr != nil {
			add("config", "fail", loadErr.Error())
		} else {
			add("config", "ok", fmt.Sprintf("%s (%d repos)", path, len(cfg.Repos)))
		}
	}

	// 4. store writable
	store := newStore(settings)
	if err := store.ensureRoot(); err != nil {
		add("store", "fail", err.Error())
	} else if probe, probeErr := os.CreateTemp(store.Root, "probe-*"); probeErr != nil {
		add("store", "fail", fmt.Sprintf("store not writable: %v", probeErr))
	} else {
		probe.Close()
		os.Remove(probe.Name())
		add("store", "ok", store.Root)
	}

	// 5. hook script installed for the default stage
	if root != "" {
		installed, current := installedHookState(root, stagePreCommit)
		switch {
		case !installed:
			add("hook-script", "warn", "pre-commit hook not installed (run: prehook install)")
		case !current:
			add("hook-script", "warn", "pre-commit hook installed by a different prehook version")
		default:
			add("hook-script", "ok", "pre-commit hook installed and current")
		}
	}

	output.OK = allOK

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(output)
	return allOK
}
