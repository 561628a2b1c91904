package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches to a subcommand and returns the process exit code.
func run(args []string) int {
	if len(args) > 0 && (args[0] == "--version" || args[0] == "-version" || args[0] == "version") {
		fmt.Fprintf(os.Stdout, "prehook %s\n", Version)
		return 0
	}

	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	settings, err := loadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "run":
		return cmdRun(ctx, settings, args)
	case "install":
		return cmdInstall(args, false)
	case "uninstall":
		return cmdInstall(args, true)
	case "validate":
		return cmdValidate(args)
	case "autoupdate":
		return cmdAutoupdate(ctx, args)
	case "gc":
		return cmdGC(settings, args)
	case "clean":
		return cmdClean(settings)
	case "sample-config":
		fmt.Fprint(os.Stdout, sampleConfig)
		return 0
	case "diagnose":
		flags := flag.NewFlagSet("diagnose", flag.ExitOnError)
		configPath := flags.String("config", "", "Config file to check")
		flags.Parse(args)
		if RunDiagnose(*configPath, settings) {
			return 0
		}
		return 1
	default:
		fmt.Fprintf(os.Stderr, "prehook: unknown command %q\n", cmd)
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: prehook [command] [flags]

commands:
  run            run hooks against selected files (default)
  install        install git hook scripts into .git/hooks
  uninstall      remove prehook's git hook scripts
  validate       validate a config or manifest file
  autoupdate     move rev pins to the latest revisions
  gc             remove unreferenced cached repos
  clean          remove the entire store
  sample-config  print a starter config
  diagnose       run preflight checks, print JSON
  version        print version
`)
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// cmdRun is the default operation: execute hooks and report.
func cmdRun(ctx context.Context, settings Settings, args []string) int {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	var files stringList
	allFiles := flags.Bool("all-files", false, "Run on all tracked files")
	flags.Var(&files, "files", "Run on a specific file (repeatable)")
	hookID := flags.String("hook", "", "Run only the hook with this id or alias")
	stage := flags.String("stage", stagePreCommit, "Hook stage to run")
	fromRef := flags.String("from-ref", "", "Run on files changed since this revision (with -to-ref)")
	toRef := flags.String("to-ref", "", "Run on files changed up to this revision (with -from-ref)")
	configPath := flags.String("config", "", "Config file path")
	jobs := flags.Int("jobs", 0, "Max concurrent hook invocations (0 = from env/NumCPU)")
	failFast := flags.Bool("fail-fast", false, "Stop after the first failing hook")
	verbose := flags.Bool("verbose", false, "Detailed stderr diagnostics")
	color := flags.String("color", "", "Color output: auto, always, never")
	flags.Parse(args)

	if *jobs > 0 {
		settings.Jobs = *jobs
	}
	if *color != "" {
		settings.Color = *color
	}
	settings.Sanitize()

	if !validStages[*stage] {
		fmt.Fprintf(os.Stderr, "prehook: unknown stage %q\n", *stage)
		return 2
	}
	if (*fromRef == "") != (*toRef == "") {
		fmt.Fprintln(os.Stderr, "prehook: -from-ref and -to-ref must be given together")
		return 2
	}

	root, err := cachedRepoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
		return 1
	}

	path := *configPath
	if path == "" {
		path = filepath.Join(root, ConfigFileName)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		if settings.AllowNoConfig {
			return 0
		}
		fmt.Fprintf(os.Stderr, "prehook: no config file at %s (set PREHOOK_ALLOW_NO_CONFIG=true to skip)\n", path)
		return 1
	}

	cfg, err := loadConfigFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
		return 1
	}

	store := newStore(settings)
	store.Verbose = *verbose
	runner := newRunner(cfg, settings, store, root, os.Stdout, *verbose)
	code, err := runner.Run(ctx, RunOptions{
		Stage:    *stage,
		AllFiles: *allFiles,
		Files:    files,
		FromRef:  *fromRef,
		ToRef:    *toRef,
		HookID:   *hookID,
		FailFast: *failFast,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
	}
	return code
}

// cmdInstall installs or removes git hook scripts.
func cmdInstall(args []string, uninstall bool) int {
	name := "install"
	if uninstall {
		name = "uninstall"
	}
	flags := flag.NewFlagSet(name, flag.ExitOnError)
	var hookTypes stringList
	flags.Var(&hookTypes, "hook-type", "Stage to install (repeatable, default pre-commit)")
	overwrite := flags.Bool("overwrite", false, "Replace existing foreign hooks instead of chaining")
	flags.Parse(args)

	if len(hookTypes) == 0 {
		hookTypes = stringList{stagePreCommit}
	}
	for _, stage := range hookTypes {
		if !validStages[stage] {
			fmt.Fprintf(os.Stderr, "prehook: unknown hook type %q\n", stage)
			return 2
		}
	}

	root, err := cachedRepoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
		return 1
	}

	if uninstall {
		removed, err := uninstallHooks(root, hookTypes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
			return 1
		}
		for _, p := range removed {
			fmt.Fprintf(os.Stdout, "prehook uninstalled at %s\n", p)
		}
		return 0
	}

	written, err := installHooks(root, hookTypes, *overwrite)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
		return 1
	}
	for _, p := range written {
		fmt.Fprintf(os.Stdout, "prehook installed at %s\n", p)
	}
	return 0
}

// cmdValidate parses a config (or manifest) file and reports schema
// violations without running anything.
func cmdValidate(args []string) int {
	flags := flag.NewFlagSet("validate", flag.ExitOnError)
	manifest := flags.Bool("manifest", false, "Validate a hook manifest instead of a config")
	flags.Parse(args)

	paths := flags.Args()
	if len(paths) == 0 {
		if *manifest {
			paths = []string{ManifestFileName}
		} else {
			paths = []string{ConfigFileName}
		}
	}

	code := 0
	for _, path := range paths {
		var err error
		if *manifest {
			_, err = loadManifestFile(path)
		} else {
			_, err = loadConfigFile(path)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
			code = 1
		}
	}
	return code
}

// cmdAutoupdate moves rev pins forward and reports each change.
func cmdAutoupdate(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("autoupdate", flag.ExitOnError)
	configPath := flags.String("config", "", "Config file path")
	repo := flags.String("repo", "", "Update only this repo URL")
	bleedingEdge := flags.Bool("bleeding-edge", false, "Pin the default-branch head instead of the latest tag")
	dryRun := flags.Bool("dry-run", false, "Report updates without rewriting the config")
	flags.Parse(args)

	path := *configPath
	if path == "" {
		root, err := cachedRepoRoot()
		if err != nil {
			fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
			return 1
		}
		path = filepath.Join(root, ConfigFileName)
	}

	changes, err := runAutoupdate(ctx, path, UpdateOptions{
		Repo:         *repo,
		BleedingEdge: *bleedingEdge,
		DryRun:       *dryRun,
	})
	for _, c := range changes {
		fmt.Fprintf(os.Stdout, "%s: %s -> %s\n", c.Repo, c.OldRev, c.NewRev)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
		return 1
	}
	if len(changes) == 0 {
		fmt.Fprintln(os.Stdout, "all rev pins already current")
	}
	return 0
}

// cmdGC removes cached repos no config in the repo references.
func cmdGC(settings Settings, args []string) int {
	flags := flag.NewFlagSet("gc", flag.ExitOnError)
	configPath := flags.String("config", "", "Config file path")
	flags.Parse(args)

	keep := make(map[string]bool)
	path := *configPath
	if path == "" {
		if root, err := cachedRepoRoot(); err == nil {
			path = filepath.Join(root, ConfigFileName)
		}
	}
	if path != "" {
		if cfg, err := loadConfigFile(path); err == nil {
			keep = configuredKeys(cfg)
		}
	}

	removed, err := newStore(settings).GC(keep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stdout, "%d repo(s) removed\n", removed)
	return 0
}

// cmdClean removes the whole store.
func cmdClean(settings Settings) int {
	if err := newStore(settings).Clean(); err != nil {
		fmt.Fprintf(os.Stderr, "prehook: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stdout, "cleaned %s\n", settings.Home)
	return 0
}
