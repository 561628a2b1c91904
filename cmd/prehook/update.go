package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// RevChange describes one repo record's pin moving to a newer revision.
type RevChange struct {
	Repo   string
	OldRev string
	NewRev string
}

// UpdateOptions configure an autoupdate pass.
type UpdateOptions struct {
	Repo         string // limit to one repo URL; "" = all remote repos
	BleedingEdge bool   // pin the default-branch head instead of a tag
	DryRun       bool   // report without rewriting the config
}

// runAutoupdate queries each remote repo for a newer revision and
// rewrites the rev pins in place. Everything else in the file — key
// order, comments, quoting — is preserved byte-for-byte; only the pin
// values change.
func runAutoupdate(ctx context.Context, configPath string, opts UpdateOptions) ([]RevChange, error) {
	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	text := string(data)

	var changes []RevChange
	for i := range cfg.Repos {
		repo := &cfg.Repos[i]
		if !repo.IsRemote() {
			continue
		}
		if opts.Repo != "" && opts.Repo != repo.Repo {
			continue
		}

		var next string
		if opts.BleedingEdge {
			next, err = remoteHead(ctx, repo.Repo)
		} else {
			next, err = latestTag(ctx, repo.Repo)
		}
		if err != nil {
			return changes, fmt.Errorf("%s: %w", repo.Repo, err)
		}
		if next == "" || next == repo.Rev {
			continue
		}

		rewritten, err := rewriteRev(text, repo.Repo, repo.Rev, next)
		if err != nil {
			return changes, fmt.Errorf("%s: %w", repo.Repo, err)
		}
		text = rewritten
		changes = append(changes, RevChange{Repo: repo.Repo, OldRev: repo.Rev, NewRev: next})
	}

	if len(changes) == 0 || opts.DryRun {
		return changes, nil
	}

	info, err := os.Stat(configPath)
	if err != nil {
		return changes, fmt.Errorf("stat config file: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(text), info.Mode().Perm()); err != nil {
		return changes, fmt.Errorf("write config file: %w", err)
	}
	return changes, nil
}

// latestTag asks the remote for its tags and returns the highest
// version-ordered one. Non-version tags (no digits) are ignored.
func latestTag(ctx context.Context, url string) (string, error) {
	out, err := gitOutputContext(ctx, "", "ls-remote", "--tags", url)
	if err != nil {
		return "", err
	}

	var tags []string
	for _, line := range splitLines(out) {
		_, ref, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		tag := strings.TrimPrefix(ref, "refs/tags/")
		if tag == ref {
			continue
		}
		// ^{} entries are peeled duplicates of annotated tags.
		tag = strings.TrimSuffix(tag, "^{}")
		if !strings.ContainsAny(tag, "0123456789") {
			continue
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return "", nil
	}

	// Annotated tags appear twice (ref and peeled); taking the max
	// after sorting makes the duplicates harmless.
	sort.Slice(tags, func(i, j int) bool { return tagLess(tags[i], tags[j]) })
	return tags[len(tags)-1], nil
}

// tagLess orders tags by numeric version segments, falling back to
// string order for equal versions so sorting is deterministic.
func tagLess(a, b string) bool {
	if versionLess(a, b) {
		return true
	}
	if versionLess(b, a) {
		return false
	}
	return a < b
}

// remoteHead returns the sha of the remote's default branch.
func remoteHead(ctx context.Context, url string) (string, error) {
	out, err := gitOutputContext(ctx, "", "ls-remote", url, "HEAD")
	if err != nil {
		return "", err
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return "", fmt.Errorf("remote has no HEAD")
	}
	sha, _, _ := strings.Cut(lines[0], "\t")
	return sha, nil
}

// revLine matches a "rev:" mapping line, capturing the prefix up to the
// value, the (possibly quoted) value, and the rest of the line.
var revLine = regexp.MustCompile(`^(\s*rev\s*:\s*)(["']?)([^"'#\s]+)(["']?)(.*)$`)

// repoLine matches a "- repo:" sequence-entry line.
var repoLine = regexp.MustCompile(`^\s*-\s+repo\s*:\s*(["']?)([^"'#]+?)(["']?)\s*(#.*)?$`)

// rewriteRev replaces the rev pin for one repo record in raw config
// text, line by line, leaving every other byte untouched. YAML
// re-serialization would lose comments and formatting, which is why
// the rewrite is textual.
func rewriteRev(text, repoURL, oldRev, newRev string) (string, error) {
	lines := strings.Split(text, "\n")
	current := ""
	replaced := false

	for i, line := range lines {
		if m := repoLine.FindStringSubmatch(line); m != nil {
			current = strings.TrimSpace(m[2])
			continue
		}
		if current != repoURL || replaced {
			continue
		}
		if m := revLine.FindStringSubmatch(line); m != nil {
			if m[3] != oldRev {
				return "", fmt.Errorf("rev mismatch in config: found %q, expected %q", m[3], oldRev)
			}
			lines[i] = m[1] + m[2] + newRev + m[4] + m[5]
			replaced = true
		}
	}

	if !replaced {
		return "", fmt.Errorf("no rev line found for repo %s", repoURL)
	}
	return strings.Join(lines, "\n"), nil
}
