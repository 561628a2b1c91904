package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// needsEnv reports whether a language installs into a per-hook
// environment directory. system and fail run from the host PATH;
// script runs straight out of the cloned repo.
func needsEnv(language string) bool {
	switch language {
	case langPython, langNode, langGolang:
		return true
	}
	return false
}

// envKey identifies a language environment: same repo, language,
// version constraint, and dependency set mean the same environment.
// The repo component is the store-relative clone dir so GC can match
// environments to the clone they were installed from.
func envKey(storeRoot, repoDir, language, version string, deps []string) string {
	rel := repoDir
	if r, err := filepath.Rel(storeRoot, repoDir); err == nil {
		rel = r
	}
	h := sha256.Sum256([]byte(strings.Join(deps, "\x00")))
	return fmt.Sprintf("%s|%s|%s|%x", rel, language, version, h[:8])
}

// ensureEnv returns the environment directory for a hook, installing it
// on first use. repoDir is "" for local hooks, which install relative
// to the host repository root.
func ensureEnv(store *Store, repoDir string, def *HookDef) (string, error) {
	if !needsEnv(def.Language) {
		return "", nil
	}

	key := envKey(store.Root, repoDir, def.Language, def.LanguageVersion, def.AdditionalDependencies)
	if dir, err := store.LookupEnv(key); err != nil || dir != "" {
		return dir, err
	}

	return store.CreateEnv(key, def.Language, func(dir string) error {
		switch def.Language {
		case langPython:
			return installPython(dir, repoDir, def)
		case langNode:
			return installNode(dir, repoDir, def)
		case langGolang:
			return installGolang(dir, repoDir, def)
		}
		return fmt.Errorf("language %q does not install environments", def.Language)
	})
}

// installPython creates a venv and installs the hook repo plus any
// additional dependencies into it.
func installPython(envDir, repoDir string, def *HookDef) error {
	python := "python3"
	if v := def.LanguageVersion; v != "" {
		// "3.11" and "python3.11" both name the interpreter binary.
		if strings.HasPrefix(v, "python") {
			python = v
		} else {
			python = "python" + v
		}
	}

	if err := runInstall(repoDir, nil, python, "-m", "venv", envDir); err != nil {
		return fmt.Errorf("create venv: %w", err)
	}

	pip := filepath.Join(envDir, "bin", "pip")
	args := []string{"install", "--quiet"}
	if repoDir != "" {
		args = append(args, repoDir)
	}
	args = append(args, def.AdditionalDependencies...)
	if len(args) == 2 {
		return nil // nothing to install beyond the venv itself
	}
	if err := runInstall(repoDir, nil, pip, args...); err != nil {
		return fmt.Errorf("pip install: %w", err)
	}
	return nil
}

// installNode installs the hook repo and additional dependencies under
// the environment prefix; npm puts executables in <prefix>/bin.
func installNode(envDir, repoDir string, def *HookDef) error {
	args := []string{"install", "--global", "--prefix", envDir, "--no-audit", "--no-fund"}
	if repoDir != "" {
		args = append(args, repoDir)
	}
	args = append(args, def.AdditionalDependencies...)
	if err := runInstall(repoDir, nil, "npm", args...); err != nil {
		return fmt.Errorf("npm install: %w", err)
	}
	return nil
}

// installGolang builds the hook repo's commands into the environment's
// bin directory, then any additional dependencies by module path.
func installGolang(envDir, repoDir string, def *HookDef) error {
	bin := filepath.Join(envDir, "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		return fmt.Errorf("create env bin: %w", err)
	}
	goEnv := []string{"GOBIN=" + bin}

	if repoDir != "" {
		if err := runInstall(repoDir, goEnv, "go", "install", "./..."); err != nil {
			return fmt.Errorf("go install: %w", err)
		}
	}
	for _, dep := range def.AdditionalDependencies {
		if !strings.Contains(dep, "@") {
			dep += "@latest"
		}
		if err := runInstall(repoDir, goEnv, "go", "install", dep); err != nil {
			return fmt.Errorf("go install %s: %w", dep, err)
		}
	}
	return nil
}

// runInstall executes an environment-install command, surfacing the
// tool's combined output on failure (that output is the diagnosis).
func runInstall(dir string, extraEnv []string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(scrubGitEnv(os.Environ()), extraEnv...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
		}
		return fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, msg)
	}
	return nil
}

// hookEnviron builds the environment for a hook subprocess: the host
// environment scrubbed of git internals, with the environment's bin
// directory (if any) prepended to PATH.
func hookEnviron(envDir string) []string {
	environ := scrubGitEnv(os.Environ())
	if envDir == "" {
		return environ
	}

	bin := filepath.Join(envDir, "bin")
	out := make([]string, 0, len(environ)+1)
	seen := false
	for _, kv := range environ {
		if name, val, ok := strings.Cut(kv, "="); ok && name == "PATH" {
			out = append(out, "PATH="+bin+string(os.PathListSeparator)+val)
			seen = true
			continue
		}
		out = append(out, kv)
	}
	if !seen {
		out = append(out, "PATH="+bin)
	}
	return out
}
