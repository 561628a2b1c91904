package main

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// metaHookFunc is a hook implemented inside prehook. It sees the files
// selected for it and returns output plus an exit code.
type metaHookFunc func(r *Runner, files []string) ([]byte, int)

// metaHookFuncs maps meta hook ids to their implementations.
var metaHookFuncs = map[string]metaHookFunc{
	"check-hooks-apply":      checkHooksApply,
	"check-useless-excludes": checkUselessExcludes,
}

// metaHookDefs returns the definitions of prehook's built-in hooks.
// They audit the config itself, so they trigger on config changes and
// run without filenames.
func metaHookDefs() []HookDef {
	off := false
	return []HookDef{
		{
			ID:            "check-hooks-apply",
			Name:          "Check hooks apply to the repository",
			Entry:         "check-hooks-apply",
			Language:      langSystem,
			Files:         `^\.prehook\.yaml$`,
			AlwaysRun:     true,
			PassFilenames: &off,
		},
		{
			ID:            "check-useless-excludes",
			Name:          "Check for useless excludes",
			Entry:         "check-useless-excludes",
			Language:      langSystem,
			Files:         `^\.prehook\.yaml$`,
			AlwaysRun:     true,
			PassFilenames: &off,
		},
	}
}

// checkHooksApply reports configured hooks whose file selection matches
// nothing in the repository: usually a stale files pattern or a hook
// left behind after the files it checked were removed.
func checkHooksApply(r *Runner, _ []string) ([]byte, int) {
	all, err := allTrackedFiles(r.root)
	if err != nil {
		return []byte(err.Error()), 1
	}

	var buf strings.Builder
	code := 0
	for i := range r.cfg.Repos {
		repo := &r.cfg.Repos[i]
		if repo.Repo == repoMeta {
			continue
		}
		for _, b := range repo.Hooks {
			def := probeDef(r, repo, b)
			if def == nil || def.AlwaysRun {
				continue
			}
			filter, err := newFileFilter(r.cfg, def, r.identify)
			if err != nil {
				continue
			}
			if len(filter.apply(all)) == 0 {
				fmt.Fprintf(&buf, "%s does not apply to this repository\n", def.ID)
				code = 1
			}
		}
	}
	return []byte(buf.String()), code
}

// checkUselessExcludes reports exclude patterns that exclude nothing.
func checkUselessExcludes(r *Runner, _ []string) ([]byte, int) {
	all, err := allTrackedFiles(r.root)
	if err != nil {
		return []byte(err.Error()), 1
	}

	var buf strings.Builder
	code := 0

	if r.cfg.Exclude != "" && !patternHits(r.cfg.Exclude, all) {
		fmt.Fprintf(&buf, "The global exclude pattern %q does not match any files\n", r.cfg.Exclude)
		code = 1
	}

	for i := range r.cfg.Repos {
		repo := &r.cfg.Repos[i]
		if repo.Repo == repoMeta {
			continue
		}
		for _, b := range repo.Hooks {
			if b.Exclude == "" {
				continue
			}
			if !patternHits(b.Exclude, all) {
				fmt.Fprintf(&buf, "The exclude pattern %q for %s does not match any files\n", b.Exclude, b.ID)
				code = 1
			}
		}
	}
	return []byte(buf.String()), code
}

// probeDef resolves a binding to its effective definition using only
// what is already on disk; repos not yet cloned are skipped rather
// than fetched, since meta hooks must not hit the network.
func probeDef(r *Runner, repo *RepoRef, b HookBinding) *HookDef {
	if repo.Repo == repoLocal {
		def := localHookDef(b)
		return &def
	}

	idx, err := r.store.loadIndex()
	if err != nil {
		return nil
	}
	for _, e := range idx.Repos {
		if e.URL == repo.Repo && e.Rev == repo.Rev {
			defs, err := loadRepoManifest(filepath.Join(r.store.Root, e.Dir))
			if err != nil {
				return nil
			}
			if base, ok := findHookDef(defs, b.ID); ok {
				def := applyBinding(base, b)
				return &def
			}
			return nil
		}
	}
	return nil
}

// patternHits reports whether a compiled pattern matches any path.
func patternHits(pattern string, paths []string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return true // bad pattern is someone else's error to report
	}
	for _, p := range paths {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}
