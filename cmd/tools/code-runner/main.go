package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/gauntlet/internal/catalog"
	"github.com/michaelbrown/gauntlet/internal/config"
	"github.com/michaelbrown/gauntlet/internal/dispatch"
	"github.com/michaelbrown/gauntlet/internal/harness"
	"github.com/michaelbrown/gauntlet/internal/service"
)

const maxOutput = 4000

// Runner is the part of the service the tools call.
type Runner interface {
	ListRuntimes(ctx context.Context) ([]catalog.Runtime, error)
	ExecuteCode(ctx context.Context, req dispatch.Request) (dispatch.Execution, error)
	RunTests(ctx context.Context, req harness.Request) (harness.Result, error)
}

func main() {
	cfg, err := config.Load(os.Getenv("GAUNTLET_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	profile, _ := cfg.DispatchProfile()

	// stdout carries the protocol, so logs go to stderr only.
	svc, err := service.New(service.Options{
		RuntimesURL: cfg.Engine.RuntimesURL,
		ExecuteURL:  cfg.Engine.ExecuteURL,
		Timeout:     cfg.Engine.Timeout,
		Profile:     profile,
		TTL:         cfg.Cache.TTL,
		Logger:      cfg.Logger(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating service: %v\n", err)
		os.Exit(1)
	}

	if err := server.ServeStdio(newServer(svc)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
	}
}

func newServer(r Runner) *server.MCPServer {
	s := server.NewMCPServer("gauntlet-code-runner", "0.1.0")
	t := &tools{runner: r}

	s.AddTool(mcp.Tool{
		Name:        "list_runtimes",
		Description: "List the languages and versions the execution engine can run.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, t.handleListRuntimes)

	s.AddTool(mcp.Tool{
		Name:        "code_run",
		Description: "Run a program once on the remote execution engine and return its output.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Language name or alias (see list_runtimes)",
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to execute",
				},
				"input": map[string]any{
					"type":        "string",
					"description": "Input to provide to the program (optional)",
				},
				"version": map[string]any{
					"type":        "string",
					"description": "Exact runtime version (optional)",
				},
			},
			Required: []string{"language", "code"},
		},
	}, t.handleCodeRun)

	s.AddTool(mcp.Tool{
		Name:        "code_test",
		Description: "Run a program against test cases in order and report which pass. A test passes when the output matches exactly and the program did not crash.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Language name or alias (see list_runtimes)",
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to test",
				},
				"version": map[string]any{
					"type":        "string",
					"description": "Exact runtime version (optional)",
				},
				"tests": map[string]any{
					"type":        "array",
					"description": "Test cases",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"input":           map[string]any{"type": "string"},
							"expected_output": map[string]any{"type": "string"},
						},
						"required": []string{"input", "expected_output"},
					},
				},
			},
			Required: []string{"language", "code", "tests"},
		},
	}, t.handleCodeTest)

	return s
}

type tools struct {
	runner Runner
}

func (t *tools) handleListRuntimes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rts, err := t.runner.ListRuntimes(ctx)
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.Language + " " + rt.Version)
		if len(rt.Aliases) > 0 {
			b.WriteString(" (" + strings.Join(rt.Aliases, ", ") + ")")
		}
		b.WriteString("\n")
	}
	return textResult(b.String(), false), nil
}

func (t *tools) handleCodeRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}

	language, _ := args["language"].(string)
	code, _ := args["code"].(string)
	if language == "" || code == "" {
		return errResult("error: 'language' and 'code' are required"), nil
	}

	req := dispatch.Request{Code: code, Language: language}
	if input, ok := args["input"].(string); ok {
		req.Input = &input
	}
	if version, ok := args["version"].(string); ok && version != "" {
		req.Version = &version
	}

	exec, err := t.runner.ExecuteCode(ctx, req)
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}
	return textResult(formatExecution(exec), !exec.DidNotCrash), nil
}

func (t *tools) handleCodeTest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}

	language, _ := args["language"].(string)
	code, _ := args["code"].(string)
	if language == "" || code == "" {
		return errResult("error: 'language' and 'code' are required"), nil
	}

	// Round-trip through JSON to pick up the test objects.
	var tests []harness.Test
	raw, _ := json.Marshal(args["tests"])
	if err := json.Unmarshal(raw, &tests); err != nil || tests == nil {
		return errResult("error: 'tests' must be a list of {input, expected_output}"), nil
	}

	req := harness.Request{Code: code, Language: language, Tests: tests}
	if version, ok := args["version"].(string); ok && version != "" {
		req.Version = &version
	}

	res, err := t.runner.RunTests(ctx, req)
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}
	return textResult(formatResult(res), res.TestsPassed != len(tests)), nil
}

func formatExecution(exec dispatch.Execution) string {
	var output strings.Builder
	output.WriteString(exec.Stdout)
	if exec.Stderr != nil {
		if output.Len() > 0 {
			output.WriteString("\n")
		}
		output.WriteString("STDERR:\n" + *exec.Stderr)
	}
	if exec.TimeLimitExceeded {
		output.WriteString("\ntime limit exceeded")
	}
	if !exec.DidNotCrash {
		output.WriteString("\nprogram crashed")
	}
	output.WriteString(fmt.Sprintf("\ntime: %dms", exec.Time))
	return output.String()
}

func formatResult(res harness.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d tests passed\n", res.TestsPassed, len(res.Executions))
	for i, e := range res.Executions {
		if e.Passed() {
			fmt.Fprintf(&b, "test %d: PASS\n", i+1)
			continue
		}
		fmt.Fprintf(&b, "test %d: FAIL\n  input: %q\n  expected: %q\n  actual: %q\n", i+1, e.Input, e.ExpectedOutput, e.ActualOutput)
		if e.Stderr != nil {
			fmt.Fprintf(&b, "  stderr: %s\n", *e.Stderr)
		}
		if e.TimeLimitExceeded {
			b.WriteString("  time limit exceeded\n")
		}
	}
	return b.String()
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	if len(text) > maxOutput {
		text = text[:maxOutput] + "\n... (output truncated)"
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: isError,
	}
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
