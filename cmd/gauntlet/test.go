package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/gauntlet/internal/harness"
)

var testCmd = &cobra.Command{
	Use:   "test <suite.yaml>",
	Short: "Run a program against a YAML test suite",
	Long: `Run the suite's program against every test in order, stopping at the
first engine failure. Exits non-zero unless every test passes.

Examples:
  gauntlet test suites/sum.yaml
  gauntlet test suites/sum.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: runTest,
}

func init() {
	testCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	suite, err := LoadSuite(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	req := suite.Request()
	var onExecution func(int, harness.ExecutionWithTest)
	if !jsonFlag {
		onExecution = func(i int, e harness.ExecutionWithTest) { printExecution(i, e) }
	}

	res, err := a.svc.RunTestsStream(cmd.Context(), req, onExecution)
	if err != nil {
		return err
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Println(strings.Repeat("─", 60))
		fmt.Printf("%d/%d passed\n", res.TestsPassed, len(req.Tests))
	}

	if res.TestsPassed != len(req.Tests) {
		return fmt.Errorf("%d of %d tests failed", len(req.Tests)-res.TestsPassed, len(req.Tests))
	}
	return nil
}

func printExecution(i int, e harness.ExecutionWithTest) {
	if e.Passed() {
		fmt.Printf("\033[32mPASS\033[0m test %d (%dms)\n", i+1, e.Time)
		return
	}

	fmt.Printf("\033[31mFAIL\033[0m test %d (%dms)\n", i+1, e.Time)
	fmt.Printf("  input:    %s\n", truncate(e.Input, 100))
	fmt.Printf("  expected: %s\n", truncate(e.ExpectedOutput, 100))
	fmt.Printf("  actual:   %s\n", truncate(e.ActualOutput, 100))
	if e.Stderr != nil {
		fmt.Printf("  \033[90m│ %s\033[0m\n", truncate(*e.Stderr, 200))
	}
	if e.TimeLimitExceeded {
		fmt.Println("  \033[33mtime limit exceeded\033[0m")
	} else if !e.DidNotCrash {
		fmt.Println("  \033[33mcrashed\033[0m")
	}
}
