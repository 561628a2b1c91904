package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `repos:
  - repo: https://example.com/hooks
    rev: v1.2.0
    hooks:
      - id: fmt-check
        args: ["--strict"]
        additional_dependencies: ["extra==1.0"]
`)
	cfg, err := loadConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Repos) != 1 {
		t.Fatalf("expected 1 repo, got %d", len(cfg.Repos))
	}
	r := cfg.Repos[0]
	if r.Rev != "v1.2.0" {
		t.Errorf("expected rev v1.2.0, got %q", r.Rev)
	}
	if !r.IsRemote() {
		t.Error("expected remote repo")
	}
	h := r.Hooks[0]
	if len(h.Args) != 1 || h.Args[0] != "--strict" {
		t.Errorf("unexpected args: %v", h.Args)
	}
	if len(h.AdditionalDependencies) != 1 {
		t.Errorf("unexpected additional_dependencies: %v", h.AdditionalDependencies)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "repos: [unclosed")
	_, err := loadConfigFile(path)
	if err == nil || !strings.Contains(err.Error(), "parse config YAML") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestValidateConfig_NoRepos(t *testing.T) {
	err := validateConfig(&Config{})
	if err == nil || !strings.Contains(err.Error(), "repos list is required") {
		t.Errorf("expected repos error, got %v", err)
	}
}

func TestValidateConfig_RemoteNeedsRev(t *testing.T) {
	cfg := &Config{Repos: []RepoRef{{
		Repo:  "https://example.com/hooks",
		Hooks: []HookBinding{{ID: "x"}},
	}}}
	err := validateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "rev is required") {
		t.Errorf("expected rev error, got %v", err)
	}
}

func TestValidateConfig_LocalRejectsRev(t *testing.T) {
	cfg := &Config{Repos: []RepoRef{{
		Repo: repoLocal,
		Rev:  "v1",
		Hooks: []HookBinding{{
			ID: "x", Entry: "true", Language: langSystem,
		}},
	}}}
	err := validateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "rev is not allowed") {
		t.Errorf("expected rev rejection, got %v", err)
	}
}

func TestValidateConfig_LocalHookNeedsEntry(t *testing.T) {
	cfg := &Config{Repos: []RepoRef{{
		Repo:  repoLocal,
		Hooks: []HookBinding{{ID: "x", Language: langSystem}},
	}}}
	err := validateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "entry is required") {
		t.Errorf("expected entry error, got %v", err)
	}
}

func TestValidateConfig_UnknownLanguage(t *testing.T) {
	cfg := &Config{Repos: []RepoRef{{
		Repo:  repoLocal,
		Hooks: []HookBinding{{ID: "x", Entry: "true", Language: "cobol"}},
	}}}
	err := validateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), `unknown language "cobol"`) {
		t.Errorf("expected language error, got %v", err)
	}
}

func TestValidateConfig_BadFilesPattern(t *testing.T) {
	cfg := &Config{Repos: []RepoRef{{
		Repo: repoLocal,
		Hooks: []HookBinding{{
			ID: "x", Entry: "true", Language: langSystem, Files: "[unclosed",
		}},
	}}}
	err := validateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "invalid pattern") {
		t.Errorf("expected pattern error, got %v", err)
	}
}

func TestValidateConfig_DuplicateHookWithoutAlias(t *testing.T) {
	cfg := &Config{Repos: []RepoRef{{
		Repo: repoLocal,
		Hooks: []HookBinding{
			{ID: "x", Entry: "true", Language: langSystem},
			{ID: "x", Entry: "true", Language: langSystem},
		},
	}}}
	err := validateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "listed twice") {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestValidateConfig_DuplicateHookWithAlias(t *testing.T) {
	cfg := &Config{Repos: []RepoRef{{
		Repo: repoLocal,
		Hooks: []HookBinding{
			{ID: "x", Entry: "true", Language: langSystem},
			{ID: "x", Alias: "x-strict", Entry: "true", Language: langSystem},
		},
	}}}
	if err := validateConfig(cfg); err != nil {
		t.Errorf("aliased duplicate should validate, got %v", err)
	}
}

func TestValidateConfig_UnknownStage(t *testing.T) {
	cfg := &Config{
		DefaultStages: []string{"pre-lunch"},
		Repos: []RepoRef{{
			Repo:  repoLocal,
			Hooks: []HookBinding{{ID: "x", Entry: "true", Language: langSystem}},
		}},
	}
	err := validateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), `unknown stage "pre-lunch"`) {
		t.Errorf("expected stage error, got %v", err)
	}
}

func TestValidateConfig_MinimumVersionTooNew(t *testing.T) {
	// A dev build never satisfies a version bound.
	cfg := &Config{
		MinimumVersion: "99.0",
		Repos: []RepoRef{{
			Repo:  repoLocal,
			Hooks: []HookBinding{{ID: "x", Entry: "true", Language: langSystem}},
		}},
	}
	err := validateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "requires prehook >= 99.0") {
		t.Errorf("expected version error, got %v", err)
	}
}

func TestSampleConfig_Validates(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	if _, err := loadConfigFile(path); err != nil {
		t.Errorf("sample config must validate: %v", err)
	}
}

func TestVersionLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"1.0", "1.1", true},
		{"1.1", "1.0", false},
		{"1.0", "1.0", false},
		{"v1.2", "1.10", true},
		{"2.0.1", "2.0", false},
		{"2.0", "2.0.1", true},
		{"dev", "0.1", true},
	}
	for _, c := range cases {
		if got := versionLess(c.a, c.b); got != c.want {
			t.Errorf("versionLess(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
