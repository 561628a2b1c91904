package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name string, content []byte, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, mode); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestClassifyFile_PythonExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "tool.py", []byte("print('hi')\n"), 0o644)
	tags := classifyFile(path)
	for _, want := range []string{"file", "python", "text", "non-executable"} {
		if !tags[want] {
			t.Errorf("expected tag %q, got %v", want, tags)
		}
	}
}

func TestClassifyFile_Executable(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "run.sh", []byte("#!/bin/sh\n"), 0o755)
	tags := classifyFile(path)
	if !tags["executable"] || !tags["shell"] {
		t.Errorf("expected executable shell tags, got %v", tags)
	}
}

func TestClassifyFile_ShebangWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "tool", []byte("#!/usr/bin/env python3\nprint()\n"), 0o755)
	tags := classifyFile(path)
	if !tags["python"] || !tags["text"] {
		t.Errorf("expected python text tags from shebang, got %v", tags)
	}
}

func TestClassifyFile_BinarySniff(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "blob", []byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x01}, 0o644)
	tags := classifyFile(path)
	if !tags["binary"] || tags["text"] {
		t.Errorf("expected binary tag, got %v", tags)
	}
}

func TestClassifyFile_EmptyIsText(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "empty", nil, 0o644)
	tags := classifyFile(path)
	if !tags["text"] {
		t.Errorf("empty file should be text, got %v", tags)
	}
}

func TestClassifyFile_Symlink(t *testing.T) {
	dir := t.TempDir()
	target := writeTempFile(t, dir, "target.py", []byte("x"), 0o644)
	link := filepath.Join(dir, "link.py")
	if err := os.Symlink(target, link); err != nil {
		t.Skip("symlinks not supported")
	}
	tags := classifyFile(link)
	if !tags["symlink"] {
		t.Errorf("expected symlink tag, got %v", tags)
	}
	if tags["python"] {
		t.Errorf("symlinks should not get content tags, got %v", tags)
	}
}

func TestClassifyFile_Missing(t *testing.T) {
	tags := classifyFile(filepath.Join(t.TempDir(), "gone"))
	if !tags["file"] || len(tags) != 1 {
		t.Errorf("missing file should get minimal tag set, got %v", tags)
	}
}

func TestClassifyFile_NameTags(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "Dockerfile", []byte("FROM scratch\n"), 0o644)
	tags := classifyFile(path)
	if !tags["dockerfile"] {
		t.Errorf("expected dockerfile tag, got %v", tags)
	}
}

func TestShebangInterpreter(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"#!/bin/bash\n", "bash"},
		{"#!/usr/bin/env python3\n", "python3"},
		{"#!/usr/bin/env -S node --harmony\n", "-S"}, // env -S is not resolved
		{"#!\n", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := shebangInterpreter([]byte(c.line)); got != c.want {
			t.Errorf("shebangInterpreter(%q) = %q, want %q", c.line, got, c.want)
		}
	}
}

func TestIdentifier_Caches(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "a.py", []byte("x"), 0o644)

	id := newIdentifier(dir)
	first := id.tags("a.py")
	if !first["python"] {
		t.Fatalf("expected python tag, got %v", first)
	}

	// Removing the file must not change the cached answer.
	os.Remove(filepath.Join(dir, "a.py"))
	second := id.tags("a.py")
	if !second["python"] {
		t.Errorf("cache miss: got %v", second)
	}
}
