package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	repoRootOnce sync.Once
	repoRootVal  string
	repoRootErr  error
)

// cachedRepoRoot resolves the host repository root once per process.
func cachedRepoRoot() (string, error) {
	repoRootOnce.Do(func() {
		repoRootVal, repoRootErr = findRepoRoot(".")
	})
	return repoRootVal, repoRootErr
}

// findRepoRoot asks git for the top-level directory containing dir.
func findRepoRoot(dir string) (string, error) {
	out, err := gitOutput(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// gitDir returns the .git directory for a repository root (handles
// worktrees, where .git is a file pointing elsewhere).
func gitDir(root string) (string, error) {
	out, err := gitOutput(root, "rev-parse", "--git-dir")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(out)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return dir, nil
}

// gitVersion reports the installed git version string.
func gitVersion() (string, error) {
	out, err := gitOutput("", "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// gitOutput runs git in dir and returns stdout. On failure the error
// carries git's stderr, which is where git puts the useful part.
func gitOutput(dir string, args ...string) (string, error) {
	return gitOutputContext(context.Background(), dir, args...)
}

// gitOutputContext is gitOutput with cancellation, used for network
// operations (clone, fetch, ls-remote) that honor the clone timeout.
func gitOutputContext(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Hook repos must not pick up the host's hooks or local config.
	cmd.Env = append(scrubGitEnv(os.Environ()),
		"GIT_TERMINAL_PROMPT=0",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}

// scrubGitEnv removes git-internal variables from an environment. When
// prehook runs from inside a git hook, git exports GIT_DIR, GIT_INDEX_FILE
// and friends scoped to the host repo; letting those leak into clones or
// hook subprocesses makes every git call inside them operate on the
// wrong repository.
func scrubGitEnv(environ []string) []string {
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if strings.HasPrefix(name, "GIT_") && name != "GIT_CONFIG_GLOBAL" && name != "GIT_SSH_COMMAND" {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// splitLines splits command output into non-empty lines.
func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// stagedFiles lists repo-relative paths staged for commit.
func stagedFiles(root string) ([]string, error) {
	out, err := gitOutput(root, "diff", "--staged", "--name-only", "--diff-filter=ACMR")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// allTrackedFiles lists every tracked repo-relative path.
func allTrackedFiles(root string) ([]string, error) {
	out, err := gitOutput(root, "ls-files")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// changedFiles lists paths changed between two revisions. The
// three-dot range diffs against the merge base, so files already on
// the remote side are not re-checked.
func changedFiles(root, fromRef, toRef string) ([]string, error) {
	out, err := gitOutput(root, "diff", "--name-only", "--diff-filter=ACMR", fromRef+"..."+toRef)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// unstagedDigest fingerprints each dirty path's unstaged diff.
// Comparing digests before and after a hook runs detects hooks that
// rewrote files (formatters), which must fail the run so the user
// restages. Hashing the diff content, not just the path list, catches
// hooks that touch files that were already dirty going in.
func unstagedDigest(root string) (map[string]string, error) {
	// --no-ext-diff keeps the fingerprint stable under diff tooling config.
	out, err := gitOutput(root, "diff", "--no-ext-diff", "--name-only")
	if err != nil {
		return nil, err
	}

	digest := make(map[string]string)
	for _, path := range splitLines(out) {
		diff, err := gitOutput(root, "diff", "--no-ext-diff", "--", path)
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256([]byte(diff))
		digest[path] = fmt.Sprintf("%x", sum[:8])
	}
	return digest, nil
}

// modifiedSince compares two unstagedDigest snapshots and returns the
// paths whose unstaged diff appeared or changed, sorted.
func modifiedSince(before, after map[string]string) []string {
	var out []string
	for p, d := range after {
		if before[p] != d {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
