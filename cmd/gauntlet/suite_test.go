package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSuiteWithCodeFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sum.rb", "p $stdin.read.split.sum(&:to_i)\n")
	path := writeFile(t, dir, "sum.yaml", `
language: ruby
version: 3.0.1
code_file: sum.rb
run_timeout: 1500
tests:
  - input: "1\n2"
    expected_output: "3"
  - input: "2\n4"
    expected_output: "6"
`)

	s, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite: %v", err)
	}

	req := s.Request()
	if req.Code != "p $stdin.read.split.sum(&:to_i)\n" {
		t.Errorf("code = %q", req.Code)
	}
	if req.Version == nil || *req.Version != "3.0.1" {
		t.Errorf("version = %v, want 3.0.1", req.Version)
	}
	if req.RunTimeout == nil || *req.RunTimeout != 1500 {
		t.Errorf("run_timeout = %v, want 1500", req.RunTimeout)
	}
	if len(req.Tests) != 2 {
		t.Fatalf("got %d tests, want 2", len(req.Tests))
	}
	if req.Tests[0].Input != "1\n2" || req.Tests[1].ExpectedOutput != "6" {
		t.Errorf("tests = %+v", req.Tests)
	}
}

func TestLoadSuiteInlineCode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "echo.yaml", `
language: python
code: |
  print(input())
`)

	s, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite: %v", err)
	}
	req := s.Request()
	if req.Version != nil {
		t.Errorf("version = %v, want nil", *req.Version)
	}
	if req.Tests == nil {
		t.Error("tests should be an empty list, not nil")
	}
}

func TestLoadSuiteErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "print(1)")

	tests := []struct {
		name string
		body string
	}{
		{"no language", "code: x\n"},
		{"no code", "language: python\n"},
		{"both code and file", "language: python\ncode: x\ncode_file: a.py\n"},
		{"missing code file", "language: python\ncode_file: nope.py\n"},
		{"bad yaml", "language: [python\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "suite.yaml", tt.body)
			if _, err := LoadSuite(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
