package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/michaelbrown/gauntlet/internal/harness"
)

// Suite is a test suite file:
//
//	language: ruby
//	code_file: sum.rb
//	tests:
//	  - input: "1 2"
//	    expected_output: "3"
type Suite struct {
	Language   string         `yaml:"language"`
	Version    string         `yaml:"version"`
	Code       string         `yaml:"code"`
	CodeFile   string         `yaml:"code_file"`
	RunTimeout *int64         `yaml:"run_timeout"`
	Tests      []harness.Test `yaml:"tests"`
}

// LoadSuite reads a suite. code_file is relative to the suite's directory.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite: %w", err)
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing suite: %w", err)
	}

	if s.CodeFile != "" {
		if s.Code != "" {
			return nil, errors.New("suite sets both code and code_file")
		}
		file := s.CodeFile
		if !filepath.IsAbs(file) {
			file = filepath.Join(filepath.Dir(path), file)
		}
		code, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading code file: %w", err)
		}
		s.Code = string(code)
	}

	if s.Language == "" {
		return nil, errors.New("suite language is required")
	}
	if s.Code == "" {
		return nil, errors.New("suite has no code")
	}
	return &s, nil
}

// Request converts the suite to a harness request.
func (s *Suite) Request() harness.Request {
	req := harness.Request{
		Code:       s.Code,
		Language:   s.Language,
		RunTimeout: s.RunTimeout,
		Tests:      s.Tests,
	}
	if s.Version != "" {
		v := s.Version
		req.Version = &v
	}
	if req.Tests == nil {
		req.Tests = []harness.Test{}
	}
	return req
}
