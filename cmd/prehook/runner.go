package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Hook result statuses.
const (
	statusPassed  = "passed"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

// maxCommandBytes bounds the byte length of a single hook invocation's
// argv. Conservative against the smallest common ARG_MAX once the
// environment is accounted for.
const maxCommandBytes = 32 << 10

// HookResult is the outcome of one hook over one run.
type HookResult struct {
	ID         string
	Name       string
	Status     string
	SkipReason string
	ExitCode   int
	Duration   time.Duration
	Output     []byte
	Modified   []string // files the hook rewrote
	Verbose    bool     // show output even on success
}

// preparedHook is a hook resolved against its manifest, environment,
// and file selection, ready to execute.
type preparedHook struct {
	def     HookDef
	repoDir string // "" for local and meta hooks
	envDir  string
	files   []string
	meta    metaHookFunc // non-nil for built-in meta hooks
}

// RunOptions select what a run operates on.
type RunOptions struct {
	Stage    string   // hook stage, default pre-commit
	AllFiles bool     // run on every tracked file
	Files    []string // explicit file list (wins over staging area)
	FromRef  string   // with ToRef, run on files changed in the range
	ToRef    string
	HookID   string // run only this hook id or alias
	FailFast bool   // stop after the first failing hook
}

// Runner executes the hooks a config declares against a host repo.
type Runner struct {
	cfg      *Config
	store    *Store
	root     string
	identify *identifier
	verbose  bool
	color    bool
	stdout   io.Writer

	// sem bounds concurrent hook subprocesses across all hooks.
	sem *semaphore.Weighted
}

// newRunner wires a Runner over a validated config.
func newRunner(cfg *Config, s Settings, store *Store, root string, out io.Writer, verbose bool) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    store,
		root:     root,
		identify: newIdentifier(root),
		verbose:  verbose,
		color:    useColor(s.Color, out),
		stdout:   out,
		sem:      semaphore.NewWeighted(int64(s.Jobs)),
	}
}

// Run resolves, filters, and executes every selected hook. The
// returned exit code is 0 only when every hook passed or was skipped.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (int, error) {
	if opts.Stage == "" {
		opts.Stage = stagePreCommit
	}

	candidates, err := r.candidateFiles(opts)
	if err != nil {
		return 1, err
	}

	hooks, err := r.resolveHooks(ctx, opts)
	if err != nil {
		return 1, err
	}
	if len(hooks) == 0 {
		if opts.HookID != "" {
			return 1, fmt.Errorf("no hook matches id %q", opts.HookID)
		}
		fmt.Fprintln(r.stdout, "no hooks configured for stage "+opts.Stage)
		return 0, nil
	}

	width := nameColumnWidth(hooks)
	failed := false
	for i := range hooks {
		res := r.runHook(ctx, &hooks[i], candidates)
		printResult(r.stdout, res, width, r.color)
		if res.Status == statusFailed {
			failed = true
			if opts.FailFast || r.cfg.FailFast {
				break
			}
		}
	}

	if failed {
		return 1, nil
	}
	return 0, nil
}

// candidateFiles determines the file universe for this run.
func (r *Runner) candidateFiles(opts RunOptions) ([]string, error) {
	switch {
	case len(opts.Files) > 0:
		return opts.Files, nil
	case opts.AllFiles:
		return allTrackedFiles(r.root)
	case opts.FromRef != "" && opts.ToRef != "":
		// Pre-push: the installed hook script reads the pushed ranges
		// from stdin and forwards them as refs.
		return changedFiles(r.root, opts.FromRef, opts.ToRef)
	case opts.Stage == stagePreCommit || opts.Stage == stagePreMergeCommit:
		return stagedFiles(r.root)
	default:
		return allTrackedFiles(r.root)
	}
}

// resolveHooks walks the config's repo records in order and produces
// the prepared hooks for this run: clones fetched, manifests loaded,
// bindings merged, environments installed.
func (r *Runner) resolveHooks(ctx context.Context, opts RunOptions) ([]preparedHook, error) {
	var out []preparedHook
	for i := range r.cfg.Repos {
		repo := &r.cfg.Repos[i]
		prepared, err := r.resolveRepo(ctx, repo, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, prepared...)
	}
	return out, nil
}

// resolveRepo prepares the selected hooks of one repo record.
func (r *Runner) resolveRepo(ctx context.Context, repo *RepoRef, opts RunOptions) ([]preparedHook, error) {
	var (
		defs    []HookDef
		repoDir string
	)

	switch {
	case repo.Repo == repoMeta:
		defs = metaHookDefs()
	case repo.Repo == repoLocal:
		// Definitions come straight from the bindings.
	default:
		var err error
		repoDir, err = r.store.CloneRepo(ctx, repo.Repo, repo.Rev)
		if err != nil {
			return nil, err
		}
		defs, err = loadRepoManifest(repoDir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", repo.Repo, err)
		}
	}

	var out []preparedHook
	for _, b := range repo.Hooks {
		var def HookDef
		if repo.Repo == repoLocal {
			def = localHookDef(b)
		} else {
			base, ok := findHookDef(defs, b.ID)
			if !ok {
				return nil, fmt.Errorf("%s: no hook with id %q (is rev %s too old?)", repo.Repo, b.ID, repo.Rev)
			}
			def = applyBinding(base, b)
		}
		if def.Name == "" {
			def.Name = def.ID
		}
		if def.MinimumVersion != "" && versionLess(Version, def.MinimumVersion) {
			return nil, fmt.Errorf("hook %s requires prehook >= %s", def.ID, def.MinimumVersion)
		}

		if !hookSelected(&def, b.Alias, opts, r.cfg.DefaultStages) {
			continue
		}

		envDir, err := ensureEnv(r.store, repoDir, &def)
		if err != nil {
			return nil, fmt.Errorf("hook %s: %w", def.ID, err)
		}

		ph := preparedHook{def: def, repoDir: repoDir, envDir: envDir}
		if repo.Repo == repoMeta {
			ph.meta = metaHookFuncs[def.ID]
		}
		out = append(out, ph)
	}
	return out, nil
}

// hookSelected applies the stage filter and the --hook id filter.
func hookSelected(def *HookDef, alias string, opts RunOptions, defaults []string) bool {
	if opts.HookID != "" && opts.HookID != def.ID && opts.HookID != alias {
		return false
	}
	stage := opts.Stage
	if stage == "" {
		stage = stagePreCommit
	}
	for _, s := range def.stagesFor(defaults) {
		if s == stage {
			return true
		}
	}
	return false
}

// runHook filters candidates for one hook and executes it.
func (r *Runner) runHook(ctx context.Context, h *preparedHook, candidates []string) HookResult {
	res := HookResult{ID: h.def.ID, Name: h.def.Name, Verbose: h.def.Verbose || r.verbose}

	filter, err := newFileFilter(r.cfg, &h.def, r.identify)
	if err != nil {
		res.Status = statusFailed
		res.Output = []byte(err.Error())
		return res
	}
	h.files = filter.apply(candidates)

	if len(h.files) == 0 && !h.def.AlwaysRun {
		res.Status = statusSkipped
		res.SkipReason = "no files to check"
		return res
	}

	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	before, digestErr := unstagedDigest(r.root)

	var (
		exitCode int
		output   []byte
	)
	if h.meta != nil {
		output, exitCode = h.meta(r, h.files)
	} else if h.def.Language == langFail {
		// A fail hook exists to block the files it matched.
		output = []byte(h.def.Entry + "\n\n" + joinLines(h.files))
		exitCode = 1
	} else {
		output, exitCode, err = r.execute(ctx, h)
		if err != nil {
			res.Status = statusFailed
			res.Output = []byte(err.Error())
			return res
		}
	}

	res.ExitCode = exitCode
	res.Output = output

	if digestErr == nil {
		if after, err := unstagedDigest(r.root); err == nil {
			res.Modified = modifiedSince(before, after)
		}
	}

	if exitCode != 0 || len(res.Modified) > 0 {
		res.Status = statusFailed
	} else {
		res.Status = statusPassed
	}
	return res
}

// execute builds and runs the hook's command invocations. Filenames
// are chunked under the argv byte budget; chunks run concurrently
// unless the hook requires serial execution. The worst exit code wins
// and outputs are concatenated in chunk order.
func (r *Runner) execute(ctx context.Context, h *preparedHook) ([]byte, int, error) {
	argv, err := splitEntry(h.def.Entry, h.repoDir == "")
	if err != nil {
		return nil, 1, fmt.Errorf("hook %s: %w", h.def.ID, err)
	}

	if h.def.Language == langScript && h.repoDir != "" {
		// Script entries name a file inside the hook repo.
		argv[0] = resolveScript(h.repoDir, argv[0])
	}
	argv = append(argv, h.def.Args...)

	var chunks [][]string
	if h.def.passFilenames() {
		chunks = chunkArgs(argv, h.files, maxCommandBytes)
	} else {
		chunks = [][]string{nil}
	}

	outputs := make([][]byte, len(chunks))
	codes := make([]int, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	if h.def.RequireSerial {
		g.SetLimit(1)
	}

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			if err := r.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer r.sem.Release(1)

			out, code, err := r.invoke(gctx, h, append(append([]string{}, argv...), chunk...))
			if err != nil {
				return err
			}
			outputs[i] = out
			codes[i] = code
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 1, err
	}

	worst := 0
	var buf bytes.Buffer
	for i := range chunks {
		if codes[i] > worst {
			worst = codes[i]
		}
		buf.Write(outputs[i])
	}
	return buf.Bytes(), worst, nil
}

// invoke runs a single hook command in the host repo root.
func (r *Runner) invoke(ctx context.Context, h *preparedHook, argv []string) ([]byte, int, error) {
	if r.verbose {
		fmt.Fprintf(os.Stderr, "prehook: exec %v\n", argv)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.root
	cmd.Env = hookEnviron(h.envDir)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return out.Bytes(), 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out.Bytes(), exitErr.ExitCode(), nil
	}
	return nil, 1, fmt.Errorf("hook %s: run %s: %w", h.def.ID, argv[0], err)
}

// chunkArgs splits files into per-invocation chunks so that the argv
// prefix plus the chunk stays under the byte budget. A single oversize
// path still gets its own chunk rather than being dropped.
func chunkArgs(prefix []string, files []string, budget int) [][]string {
	base := 0
	for _, a := range prefix {
		base += len(a) + 1
	}

	var chunks [][]string
	var cur []string
	size := base
	for _, f := range files {
		n := len(f) + 1
		if len(cur) > 0 && size+n > budget {
			chunks = append(chunks, cur)
			cur = nil
			size = base
		}
		cur = append(cur, f)
		size += n
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	if len(chunks) == 0 {
		chunks = [][]string{nil}
	}
	return chunks
}

// nameColumnWidth sizes the dot-leader column off the longest hook name.
func nameColumnWidth(hooks []preparedHook) int {
	width := 0
	for i := range hooks {
		if n := len(hooks[i].def.Name); n > width {
			width = n
		}
	}
	return width
}

// configuredKeys returns the url@rev identities a config references,
// for store GC.
func configuredKeys(cfg *Config) map[string]bool {
	keys := make(map[string]bool)
	for i := range cfg.Repos {
		if cfg.Repos[i].IsRemote() {
			keys[repoKey(cfg.Repos[i].Repo, cfg.Repos[i].Rev)] = true
		}
	}
	return keys
}

func joinLines(lines []string) string {
	sorted := append([]string{}, lines...)
	sort.Strings(sorted)
	var buf bytes.Buffer
	for _, l := range sorted {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.String()
}
