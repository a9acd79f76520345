// Package harness runs one program against an ordered list of test cases.
package harness

import (
	"context"
	"fmt"

	"github.com/michaelbrown/gauntlet/internal/dispatch"
)

// Test is one input and the output it should produce.
type Test struct {
	Input          string `json:"input" yaml:"input"`
	ExpectedOutput string `json:"expected_output" yaml:"expected_output"`
}

// Request runs Code against every test in order.
type Request struct {
	Code       string  `json:"code"`
	Language   string  `json:"language"`
	Version    *string `json:"version,omitempty"`
	RunTimeout *int64  `json:"run_timeout,omitempty"`
	Tests      []Test  `json:"tests"`
}

// ExecutionWithTest is the outcome of one test case.
type ExecutionWithTest struct {
	Input             string  `json:"input"`
	ExpectedOutput    string  `json:"expected_output"`
	ActualOutput      string  `json:"actual_output"`
	Stderr            *string `json:"stderr"`
	Time              int64   `json:"time"`
	TimeLimitExceeded bool    `json:"time_limit_exceeded"`
	DidNotCrash       bool    `json:"did_not_crash"`
}

// Passed reports whether the output matched exactly and the program did not crash.
func (e ExecutionWithTest) Passed() bool {
	return e.DidNotCrash && e.ActualOutput == e.ExpectedOutput
}

// Result holds every test outcome in order and how many passed.
type Result struct {
	Executions  []ExecutionWithTest `json:"executions"`
	TestsPassed int                 `json:"tests_passed"`
}

// Executor runs a single request.
type Executor interface {
	Execute(ctx context.Context, req dispatch.Request) (dispatch.Execution, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req dispatch.Request) (dispatch.Execution, error)

func (f ExecutorFunc) Execute(ctx context.Context, req dispatch.Request) (dispatch.Execution, error) {
	return f(ctx, req)
}

// Harness dispatches test cases one after another and stops at the first failure.
type Harness struct {
	exec Executor
}

// New creates a Harness running through exec.
func New(exec Executor) *Harness {
	return &Harness{exec: exec}
}

// Run executes every test. Any dispatch failure aborts the run and no partial
// result is returned. onExecution, if non-nil, is called after each test.
func (h *Harness) Run(ctx context.Context, req Request, onExecution func(i int, e ExecutionWithTest)) (Result, error) {
	result := Result{Executions: make([]ExecutionWithTest, 0, len(req.Tests))}

	for i, test := range req.Tests {
		input := test.Input
		exec, err := h.exec.Execute(ctx, dispatch.Request{
			Code:       req.Code,
			Language:   req.Language,
			Version:    req.Version,
			Input:      &input,
			RunTimeout: req.RunTimeout,
		})
		if err != nil {
			return Result{}, fmt.Errorf("test %d: %w", i+1, err)
		}

		e := ExecutionWithTest{
			Input:             test.Input,
			ExpectedOutput:    test.ExpectedOutput,
			ActualOutput:      exec.Stdout,
			Stderr:            exec.Stderr,
			Time:              exec.Time,
			TimeLimitExceeded: exec.TimeLimitExceeded,
			DidNotCrash:       exec.DidNotCrash,
		}
		result.Executions = append(result.Executions, e)
		if e.Passed() {
			result.TestsPassed++
		}

		if onExecution != nil {
			onExecution(i, e)
		}
	}
	return result, nil
}
