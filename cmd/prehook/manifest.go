package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the manifest a hook repository publishes at its
// root to describe the hooks it provides.
const ManifestFileName = ".prehook-hooks.yaml"

// Git hook stages prehook can be bound to.
const (
	stagePreCommit      = "pre-commit"
	stagePreMergeCommit = "pre-merge-commit"
	stagePrePush        = "pre-push"
	stagePrepareMsg     = "prepare-commit-msg"
	stageCommitMsg      = "commit-msg"
	stagePostCheckout   = "post-checkout"
	stagePostCommit     = "post-commit"
	stagePostMerge      = "post-merge"
	stagePostRewrite    = "post-rewrite"
)

// validStages is the set of recognized stage names.
var validStages = map[string]bool{
	stagePreCommit:      true,
	stagePreMergeCommit: true,
	stagePrePush:        true,
	stagePrepareMsg:     true,
	stageCommitMsg:      true,
	stagePostCheckout:   true,
	stagePostCommit:     true,
	stagePostMerge:      true,
	stagePostRewrite:    true,
}

// Supported hook languages.
const (
	langSystem = "system"
	langScript = "script"
	langPython = "python"
	langNode   = "node"
	langGolang = "golang"
	langFail   = "fail"
)

// validLanguages is the set of languages prehook knows how to set up
// and invoke.
var validLanguages = map[string]bool{
	langSystem: true,
	langScript: true,
	langPython: true,
	langNode:   true,
	langGolang: true,
	langFail:   true,
}

// languageNames returns the supported languages in stable order for
// error messages.
func languageNames() []string {
	names := make([]string, 0, len(validLanguages))
	for name := range validLanguages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HookDef is one hook definition from a repository manifest. It carries
// everything needed to run the hook; config-side bindings override
// individual fields per use.
type HookDef struct {
	ID                     string   `yaml:"id"`
	Name                   string   `yaml:"name"`
	Entry                  string   `yaml:"entry"`
	Language               string   `yaml:"language"`
	LanguageVersion        string   `yaml:"language_version,omitempty"`
	Files                  string   `yaml:"files,omitempty"`
	Exclude                string   `yaml:"exclude,omitempty"`
	Types                  []string `yaml:"types,omitempty"`
	ExcludeTypes           []string `yaml:"exclude_types,omitempty"`
	Args                   []string `yaml:"args,omitempty"`
	AdditionalDependencies []string `yaml:"additional_dependencies,omitempty"`
	PassFilenames          *bool    `yaml:"pass_filenames,omitempty"` // default true
	AlwaysRun              bool     `yaml:"always_run,omitempty"`
	RequireSerial          bool     `yaml:"require_serial,omitempty"`
	Verbose                bool     `yaml:"verbose,omitempty"`
	Stages                 []string `yaml:"stages,omitempty"`
	MinimumVersion         string   `yaml:"minimum_prehook_version,omitempty"`
	Description            string   `yaml:"description,omitempty"`
}

// loadManifestFile reads and unmarshals a hook manifest.
func loadManifestFile(path string) ([]HookDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var defs []HookDef
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse manifest YAML: %w", err)
	}

	if err := validateManifest(defs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return defs, nil
}

// loadRepoManifest loads the manifest from a cloned hook repository.
func loadRepoManifest(repoDir string) ([]HookDef, error) {
	return loadManifestFile(filepath.Join(repoDir, ManifestFileName))
}

// validateManifest checks manifest-level invariants: unique ids and a
// runnable entry/language per hook.
func validateManifest(defs []HookDef) error {
	if len(defs) == 0 {
		return fmt.Errorf("manifest declares no hooks")
	}
	seen := make(map[string]bool)
	for i, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("hooks[%d]: id is required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate hook id %q", d.ID)
		}
		seen[d.ID] = true
		if d.Entry == "" {
			return fmt.Errorf("hook %q: entry is required", d.ID)
		}
		if !validLanguages[d.Language] {
			return fmt.Errorf("hook %q: unknown language %q", d.ID, d.Language)
		}
		if err := compileOK(d.Files); err != nil {
			return fmt.Errorf("hook %q: files: %w", d.ID, err)
		}
		if err := compileOK(d.Exclude); err != nil {
			return fmt.Errorf("hook %q: exclude: %w", d.ID, err)
		}
		for _, stage := range d.Stages {
			if !validStages[stage] {
				return fmt.Errorf("hook %q: unknown stage %q", d.ID, stage)
			}
		}
	}
	return nil
}

// findHookDef resolves a binding id against a manifest.
func findHookDef(defs []HookDef, id string) (HookDef, bool) {
	for _, d := range defs {
		if d.ID == id {
			return d, true
		}
	}
	return HookDef{}, false
}

// applyBinding merges a config binding onto a manifest definition.
// Set fields in the binding win; unset fields keep the manifest value.
func applyBinding(def HookDef, b HookBinding) HookDef {
	if b.Name != "" {
		def.Name = b.Name
	}
	if b.Entry != "" {
		def.Entry = b.Entry
	}
	if b.Language != "" {
		def.Language = b.Language
	}
	if b.LanguageVersion != "" {
		def.LanguageVersion = b.LanguageVersion
	}
	if b.Files != "" {
		def.Files = b.Files
	}
	if b.Exclude != "" {
		def.Exclude = b.Exclude
	}
	if len(b.Types) > 0 {
		def.Types = b.Types
	}
	if len(b.ExcludeTypes) > 0 {
		def.ExcludeTypes = b.ExcludeTypes
	}
	if len(b.Args) > 0 {
		def.Args = b.Args
	}
	if len(b.AdditionalDependencies) > 0 {
		def.AdditionalDependencies = b.AdditionalDependencies
	}
	if len(b.Stages) > 0 {
		def.Stages = b.Stages
	}
	if b.AlwaysRun != nil {
		def.AlwaysRun = *b.AlwaysRun
	}
	if b.PassFilenames != nil {
		def.PassFilenames = b.PassFilenames
	}
	if b.RequireSerial != nil {
		def.RequireSerial = *b.RequireSerial
	}
	if b.Verbose != nil {
		def.Verbose = *b.Verbose
	}
	return def
}

// localHookDef builds a definition for a local-repo binding, which has
// no manifest behind it. validateBinding has already required entry and
// language to be present.
func localHookDef(b HookBinding) HookDef {
	def := HookDef{
		ID:       b.ID,
		Name:     b.Name,
		Entry:    b.Entry,
		Language: b.Language,
	}
	if def.Name == "" {
		def.Name = b.ID
	}
	return applyBinding(def, b)
}

// passFilenames reports the effective pass_filenames value (default true).
func (d *HookDef) passFilenames() bool {
	return d.PassFilenames == nil || *d.PassFilenames
}

// stagesFor reports the stages this hook runs in, falling back to the
// config default_stages, then to all stages.
func (d *HookDef) stagesFor(defaults []string) []string {
	if len(d.Stages) > 0 {
		return d.Stages
	}
	if len(defaults) > 0 {
		return defaults
	}
	all := make([]string, 0, len(validStages))
	for s := range validStages {
		all = append(all, s)
	}
	sort.Strings(all)
	return all
}
