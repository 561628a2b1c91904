package main

import (
	"fmt"
	"regexp"
)

// fileFilter holds the compiled selection rules for one hook. All
// fields are read-only after construction; safe for concurrent use.
type fileFilter struct {
	topFiles     *regexp.Regexp // config-level files pattern, nil = match all
	topExclude   *regexp.Regexp // config-level exclude pattern, nil = exclude none
	hookFiles    *regexp.Regexp
	hookExclude  *regexp.Regexp
	types        []string
	excludeTypes []string
	identify     *identifier
}

// newFileFilter compiles config- and hook-level patterns into a filter.
// Patterns were syntax-checked at config load, but compile errors are
// still surfaced: manifests arrive from cloned repos after validation.
func newFileFilter(cfg *Config, def *HookDef, id *identifier) (*fileFilter, error) {
	f := &fileFilter{
		types:        def.Types,
		excludeTypes: def.ExcludeTypes,
		identify:     id,
	}

	var err error
	if f.topFiles, err = compileOrNil(cfg.Files); err != nil {
		return nil, fmt.Errorf("config files: %w", err)
	}
	if f.topExclude, err = compileOrNil(cfg.Exclude); err != nil {
		return nil, fmt.Errorf("config exclude: %w", err)
	}
	if f.hookFiles, err = compileOrNil(def.Files); err != nil {
		return nil, fmt.Errorf("hook %s files: %w", def.ID, err)
	}
	if f.hookExclude, err = compileOrNil(def.Exclude); err != nil {
		return nil, fmt.Errorf("hook %s exclude: %w", def.ID, err)
	}

	return f, nil
}

// compileOrNil compiles a pattern, treating "" as absent. Patterns
// match anywhere in the repo-relative path, mirroring the search-style
// semantics hook authors expect (anchor explicitly with ^ and $).
func compileOrNil(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// apply returns the subset of candidate files the hook should see,
// preserving order.
func (f *fileFilter) apply(files []string) []string {
	var out []string
	for _, path := range files {
		if f.matches(path) {
			out = append(out, path)
		}
	}
	return out
}

// matches checks one repo-relative path against every selection rule.
func (f *fileFilter) matches(path string) bool {
	if f.topFiles != nil && !f.topFiles.MatchString(path) {
		return false
	}
	if f.topExclude != nil && f.topExclude.MatchString(path) {
		return false
	}
	if f.hookFiles != nil && !f.hookFiles.MatchString(path) {
		return false
	}
	if f.hookExclude != nil && f.hookExclude.MatchString(path) {
		return false
	}

	if len(f.types) > 0 || len(f.excludeTypes) > 0 {
		tags := f.identify.tags(path)
		// types: ALL listed tags must be present.
		for _, t := range f.types {
			if !tags[t] {
				return false
			}
		}
		// exclude_types: ANY listed tag disqualifies.
		for _, t := range f.excludeTypes {
			if tags[t] {
				return false
			}
		}
	}

	return true
}
