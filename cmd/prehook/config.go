package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config mirrors the top-level YAML structure of .prehook.yaml.
type Config struct {
	Repos          []RepoRef `yaml:"repos"`
	DefaultStages  []string  `yaml:"default_stages,omitempty"`
	Files          string    `yaml:"files,omitempty"`
	Exclude        string    `yaml:"exclude,omitempty"`
	FailFast       bool      `yaml:"fail_fast,omitempty"`
	MinimumVersion string    `yaml:"minimum_prehook_version,omitempty"`
}

// RepoRef mirrors a single record inside the repos list: a source
// repository reference, its revision pin, and the hook bindings.
type RepoRef struct {
	Repo  string        `yaml:"repo"`
	Rev   string        `yaml:"rev,omitempty"`
	Hooks []HookBinding `yaml:"hooks"`
}

// HookBinding mirrors one hook declaration under a repo record. Every
// field except ID is an optional override of the manifest definition;
// pointer fields distinguish "not set" from an explicit false.
type HookBinding struct {
	ID                     string   `yaml:"id"`
	Name                   string   `yaml:"name,omitempty"`
	Alias                  string   `yaml:"alias,omitempty"`
	Entry                  string   `yaml:"entry,omitempty"`
	Language               string   `yaml:"language,omitempty"`
	LanguageVersion        string   `yaml:"language_version,omitempty"`
	Files                  string   `yaml:"files,omitempty"`
	Exclude                string   `yaml:"exclude,omitempty"`
	Types                  []string `yaml:"types,omitempty"`
	ExcludeTypes           []string `yaml:"exclude_types,omitempty"`
	Args                   []string `yaml:"args,omitempty"`
	AdditionalDependencies []string `yaml:"additional_dependencies,omitempty"`
	Stages                 []string `yaml:"stages,omitempty"`
	AlwaysRun              *bool    `yaml:"always_run,omitempty"`
	PassFilenames          *bool    `yaml:"pass_filenames,omitempty"`
	RequireSerial          *bool    `yaml:"require_serial,omitempty"`
	Verbose                *bool    `yaml:"verbose,omitempty"`
}

// Sentinel repo values: hooks defined inline in the config, and hooks
// built into prehook itself. Everything else is a clonable URL.
const (
	repoLocal = "local"
	repoMeta  = "meta"
)

// ConfigFileName is the config file looked up at the repository root.
const ConfigFileName = ".prehook.yaml"

// IsRemote reports whether the repo record references a clonable repository.
func (r *RepoRef) IsRemote() bool {
	return r.Repo != repoLocal && r.Repo != repoMeta
}

// loadConfigFile reads and unmarshals a YAML config file.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// validateConfig checks a parsed Config for schema violations. It is
// the single gate between "YAML parsed" and "records usable": every
// operation downstream assumes a validated config.
func validateConfig(cfg *Config) error {
	if len(cfg.Repos) == 0 {
		return fmt.Errorf("repos list is required")
	}

	if cfg.MinimumVersion != "" && versionLess(Version, cfg.MinimumVersion) {
		return fmt.Errorf("config requires prehook >= %s (this is %s)", cfg.MinimumVersion, Version)
	}

	if err := compileOK(cfg.Files); err != nil {
		return fmt.Errorf("files: %w", err)
	}
	if err := compileOK(cfg.Exclude); err != nil {
		return fmt.Errorf("exclude: %w", err)
	}
	for _, stage := range cfg.DefaultStages {
		if !validStages[stage] {
			return fmt.Errorf("default_stages: unknown stage %q", stage)
		}
	}

	for i := range cfg.Repos {
		if err := validateRepoRef(&cfg.Repos[i]); err != nil {
			return fmt.Errorf("repos[%d]: %w", i, err)
		}
	}

	return nil
}

// validateRepoRef checks one repo record and its hook bindings.
func validateRepoRef(r *RepoRef) error {
	if r.Repo == "" {
		return fmt.Errorf("repo is required")
	}
	if len(r.Hooks) == 0 {
		return fmt.Errorf("%s: hooks list is required", r.Repo)
	}

	// Revision pin: required for remote repos so invocations are
	// reproducible, meaningless for local and meta records.
	if r.IsRemote() && r.Rev == "" {
		return fmt.Errorf("%s: rev is required for remote repos", r.Repo)
	}
	if !r.IsRemote() && r.Rev != "" {
		return fmt.Errorf("%s: rev is not allowed for %s repos", r.Repo, r.Repo)
	}

	seen := make(map[string]bool)
	for i := range r.Hooks {
		h := &r.Hooks[i]
		if h.ID == "" {
			return fmt.Errorf("%s: hooks[%d]: id is required", r.Repo, i)
		}
		key := h.ID
		if h.Alias != "" {
			key = h.ID + "/" + h.Alias
		}
		if seen[key] {
			return fmt.Errorf("%s: hook %q listed twice without distinct aliases", r.Repo, h.ID)
		}
		seen[key] = true

		if err := validateBinding(h, r.Repo == repoLocal); err != nil {
			return fmt.Errorf("%s: hook %q: %w", r.Repo, h.ID, err)
		}
	}

	return nil
}

// validateBinding checks one hook binding. Local hooks have no manifest
// behind them, so entry and language must be declared inline.
func validateBinding(h *HookBinding, local bool) error {
	if local {
		if h.Entry == "" {
			return fmt.Errorf("entry is required for local hooks")
		}
		if h.Language == "" {
			return fmt.Errorf("language is required for local hooks")
		}
	}
	if h.Language != "" && !validLanguages[h.Language] {
		return fmt.Errorf("unknown language %q (supported: %s)", h.Language, strings.Join(languageNames(), ", "))
	}
	if err := compileOK(h.Files); err != nil {
		return fmt.Errorf("files: %w", err)
	}
	if err := compileOK(h.Exclude); err != nil {
		return fmt.Errorf("exclude: %w", err)
	}
	for _, stage := range h.Stages {
		if !validStages[stage] {
			return fmt.Errorf("stages: unknown stage %q", stage)
		}
	}
	return nil
}

// compileOK verifies a pattern compiles. Empty patterns are fine:
// an unset files/exclude field means "match everything"/"exclude nothing".
func compileOK(pattern string) error {
	if pattern == "" {
		return nil
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("invalid pattern %q: %v", pattern, err)
	}
	return nil
}

// versionLess compares two dotted version strings numerically per
// segment, ignoring a leading "v". Non-numeric segments compare as 0,
// so a dev build ("dev") never satisfies a minimum-version bound.
func versionLess(a, b string) bool {
	as := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bs := strings.Split(strings.TrimPrefix(b, "v"), ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av = atoiSafe(as[i])
		}
		if i < len(bs) {
			bv = atoiSafe(bs[i])
		}
		if av != bv {
			return av < bv
		}
	}
	return false
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// sampleConfig is printed by the sample-config subcommand: a minimal
// valid starting point with one remote repo and one local hook.
const sampleConfig = `repos:
  - repo: https://github.com/prehook/prehook-hooks
    rev: v1.4.0
    hooks:
      - id: trailing-whitespace
      - id: end-of-file-fixer
  - repo: local
    hooks:
      - id: todo-guard
        name: Block stray FIXMEs
        entry: grep -nH FIXME
        language: system
        types: [text]
`
