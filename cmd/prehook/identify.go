package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// extensionTags maps a lowercased file extension to its type tags.
// Tags are additive: a .py file carries "python" AND "text".
var extensionTags = map[string][]string{
	".py":    {"python", "text"},
	".pyi":   {"python", "pyi", "text"},
	".go":    {"go", "text"},
	".js":    {"javascript", "text"},
	".mjs":   {"javascript", "text"},
	".ts":    {"ts", "text"},
	".tsx":   {"tsx", "text"},
	".jsx":   {"jsx", "text"},
	".json":  {"json", "text"},
	".yaml":  {"yaml", "text"},
	".yml":   {"yaml", "text"},
	".toml":  {"toml", "text"},
	".md":    {"markdown", "text"},
	".rst":   {"rst", "text"},
	".txt":   {"plain-text", "text"},
	".sh":    {"shell", "text"},
	".bash":  {"shell", "bash", "text"},
	".zsh":   {"shell", "zsh", "text"},
	".c":     {"c", "text"},
	".h":     {"c", "header", "text"},
	".cpp":   {"c++", "text"},
	".hpp":   {"c++", "header", "text"},
	".rs":    {"rust", "text"},
	".rb":    {"ruby", "text"},
	".java":  {"java", "text"},
	".proto": {"proto", "text"},
	".sql":   {"sql", "text"},
	".html":  {"html", "text"},
	".css":   {"css", "text"},
	".xml":   {"xml", "text"},
	".ini":   {"ini", "text"},
	".cfg":   {"ini", "text"},
	".svg":   {"svg", "image", "text"},
	".png":   {"image", "binary"},
	".jpg":   {"image", "binary"},
	".jpeg":  {"image", "binary"},
	".gif":   {"image", "binary"},
	".pdf":   {"pdf", "binary"},
	".zip":   {"archive", "binary"},
	".gz":    {"archive", "binary"},
	".tar":   {"archive", "binary"},
	".whl":   {"archive", "binary"},
	".so":    {"binary"},
	".dylib": {"binary"},
	".exe":   {"binary"},
}

// nameTags maps exact basenames (files with no meaningful extension)
// to their tags.
var nameTags = map[string][]string{
	"Dockerfile":     {"dockerfile", "text"},
	"Makefile":       {"makefile", "text"},
	"makefile":       {"makefile", "text"},
	"go.mod":         {"go-mod", "text"},
	"go.sum":         {"go-sum", "text"},
	".gitignore":     {"gitignore", "text"},
	".gitmodules":    {"gitmodules", "text"},
	".env":           {"dotenv", "text"},
	"CMakeLists.txt": {"cmake", "text"},
}

// interpreterTags maps a shebang interpreter basename to tags.
var interpreterTags = map[string][]string{
	"python":  {"python"},
	"python3": {"python"},
	"sh":      {"shell"},
	"bash":    {"shell", "bash"},
	"zsh":     {"shell", "zsh"},
	"node":    {"javascript"},
	"ruby":    {"ruby"},
	"perl":    {"perl"},
}

// identifier classifies files into type tags and memoizes the result
// for the lifetime of a run. Safe for concurrent use: hooks filtering
// the same file set run in parallel.
type identifier struct {
	root string

	mu    sync.Mutex
	cache map[string]map[string]bool
}

// newIdentifier creates an identifier rooted at the host repository.
func newIdentifier(root string) *identifier {
	return &identifier{
		root:  root,
		cache: make(map[string]map[string]bool),
	}
}

// tags returns the tag set for a repo-relative path.
func (id *identifier) tags(relPath string) map[string]bool {
	id.mu.Lock()
	if t, ok := id.cache[relPath]; ok {
		id.mu.Unlock()
		return t
	}
	id.mu.Unlock()

	t := classifyFile(filepath.Join(id.root, relPath))

	id.mu.Lock()
	id.cache[relPath] = t
	id.mu.Unlock()
	return t
}

// classifyFile computes the tag set for one on-disk file.
func classifyFile(path string) map[string]bool {
	tags := map[string]bool{"file": true}

	info, err := os.Lstat(path)
	if err != nil {
		// Deleted between selection and classification; keep the
		// minimal tag set so text-only hooks skip it.
		return tags
	}

	if info.Mode()&os.ModeSymlink != 0 {
		tags["symlink"] = true
		return tags
	}
	if info.Mode()&0o111 != 0 {
		tags["executable"] = true
	} else {
		tags["non-executable"] = true
	}

	base := filepath.Base(path)
	if nt, ok := nameTags[base]; ok {
		addTags(tags, nt)
	}
	if et, ok := extensionTags[strings.ToLower(filepath.Ext(base))]; ok {
		addTags(tags, et)
	}

	// Tags from extension settle text vs binary; otherwise sniff.
	if !tags["text"] && !tags["binary"] {
		addContentTags(tags, path)
	}

	return tags
}

// addContentTags sniffs the first bytes of a file for a text/binary
// decision and a shebang interpreter.
func addContentTags(tags map[string]bool, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	buf := make([]byte, 1024)
	n, _ := f.Read(buf)
	buf = buf[:n]

	if n == 0 || !bytes.Contains(buf, []byte{0}) {
		tags["text"] = true
	} else {
		tags["binary"] = true
		return
	}

	if bytes.HasPrefix(buf, []byte("#!")) {
		if it, ok := interpreterTags[shebangInterpreter(buf)]; ok {
			addTags(tags, it)
		}
	}
}

// shebangInterpreter extracts the interpreter basename from a shebang
// line, resolving the "#!/usr/bin/env prog" indirection.
func shebangInterpreter(buf []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	if !scanner.Scan() {
		return ""
	}
	line := strings.TrimPrefix(scanner.Text(), "#!")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	prog := filepath.Base(fields[0])
	if prog == "env" && len(fields) > 1 {
		prog = filepath.Base(fields[1])
	}
	return prog
}

func addTags(tags map[string]bool, more []string) {
	for _, t := range more {
		tags[t] = true
	}
}
