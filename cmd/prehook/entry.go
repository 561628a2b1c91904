package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// EntryAnalysis holds shell features detected in an entry string by a
// single parse-and-walk of its AST. Manifest entries are supposed to be
// plain word vectors; anything here means the author wrote real shell.
type EntryAnalysis struct {
	Pipes               bool
	Redirects           bool
	CommandSubstitution bool
	VariableExpansion   bool
	Subshells           bool
	BackgroundJobs      bool
	MultipleCommands    bool
	ParseError          bool
}

// NeedsShell reports whether the entry cannot be executed as a plain
// argv and requires a shell wrapper.
func (a EntryAnalysis) NeedsShell() bool {
	return a.Pipes || a.Redirects || a.CommandSubstitution ||
		a.Subshells || a.BackgroundJobs || a.MultipleCommands
}

// features lists the detected shell constructs for error messages.
func (a EntryAnalysis) features() []string {
	var out []string
	if a.Pipes {
		out = append(out, "pipes")
	}
	if a.Redirects {
		out = append(out, "redirects")
	}
	if a.CommandSubstitution {
		out = append(out, "command substitution")
	}
	if a.Subshells {
		out = append(out, "subshells")
	}
	if a.BackgroundJobs {
		out = append(out, "background jobs")
	}
	if a.MultipleCommands {
		out = append(out, "command lists")
	}
	return out
}

// analyzeEntry parses an entry string as bash and walks the AST once.
func analyzeEntry(entry string) EntryAnalysis {
	var a EntryAnalysis

	if entry == "" {
		return a
	}

	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(entry), "")
	if err != nil {
		a.ParseError = true
		return a
	}

	calls := 0
	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.Stmt:
			if n.Background {
				a.BackgroundJobs = true
			}
		case *syntax.BinaryCmd:
			switch n.Op {
			case syntax.Pipe, syntax.PipeAll:
				a.Pipes = true
			case syntax.AndStmt, syntax.OrStmt:
				a.MultipleCommands = true
			}
		case *syntax.Redirect:
			a.Redirects = true
		case *syntax.CmdSubst:
			a.CommandSubstitution = true
		case *syntax.ParamExp:
			a.VariableExpansion = true
		case *syntax.Subshell:
			a.Subshells = true
		case *syntax.CallExpr:
			calls++
		}
		return true
	})
	if calls > 1 {
		a.MultipleCommands = true
	}

	return a
}

// splitEntry turns an entry string into an argv using shell word
// splitting (quotes respected, no expansion). Entries needing real
// shell evaluation are rejected for manifest hooks — a hook that wants
// a pipeline must ship a script and use language: script. Local hooks
// get wrapped in sh -c instead, since their authors own the config.
func splitEntry(entry string, allowShell bool) ([]string, error) {
	if strings.TrimSpace(entry) == "" {
		return nil, fmt.Errorf("entry is empty")
	}

	a := analyzeEntry(entry)
	if a.ParseError {
		return nil, fmt.Errorf("entry %q does not parse as shell words", entry)
	}
	if a.NeedsShell() || a.VariableExpansion {
		if !allowShell {
			features := a.features()
			if len(features) == 0 {
				features = []string{"variable expansion"}
			}
			return nil, fmt.Errorf("entry %q uses %s; ship a script instead",
				entry, strings.Join(features, ", "))
		}
		// Wrap: the trailing "--" sentinel keeps appended filenames out
		// of sh's own option parsing, and "$@" forwards them.
		return []string{"sh", "-c", entry + ` "$@"`, "--"}, nil
	}

	fields, err := shell.Fields(entry, nil)
	if err != nil {
		return nil, fmt.Errorf("split entry %q: %w", entry, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("entry %q splits to no words", entry)
	}
	return fields, nil
}

// resolveScript resolves a script-language entry against its hook
// repo. Entries that don't name a file there pass through untouched
// and resolve on PATH like any other command.
func resolveScript(repoDir, name string) string {
	p := filepath.Join(repoDir, name)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return name
}
