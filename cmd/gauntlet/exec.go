package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/gauntlet/internal/dispatch"
)

var (
	languageFlag   string
	versionFlag    string
	inputFlag      string
	runTimeoutFlag int64
	jsonFlag       bool
)

var execCmd = &cobra.Command{
	Use:   "exec <file|->",
	Short: "Run one program on the engine",
	Long: `Run a source file (or stdin with "-") once and print its output.

Examples:
  gauntlet exec main.rb -l ruby --input "1 2"
  echo 'print(42)' | gauntlet exec - -l python --json`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Language or alias (required)")
	execCmd.Flags().StringVar(&versionFlag, "version", "", "Exact runtime version")
	execCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Input passed to the program")
	execCmd.Flags().Int64Var(&runTimeoutFlag, "run-timeout", 0, "Run timeout in ms (1-3000)")
	execCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the normalized execution as JSON")
	execCmd.MarkFlagRequired("language")
	rootCmd.AddCommand(execCmd)
}

func readSource(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	return string(data), nil
}

func runExec(cmd *cobra.Command, args []string) error {
	code, err := readSource(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	req := dispatch.Request{Code: code, Language: languageFlag}
	if versionFlag != "" {
		req.Version = &versionFlag
	}
	if cmd.Flags().Changed("input") {
		req.Input = &inputFlag
	}
	if cmd.Flags().Changed("run-timeout") {
		req.RunTimeout = &runTimeoutFlag
	}

	exec, err := a.svc.ExecuteCode(cmd.Context(), req)
	if err != nil {
		return err
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(exec)
	}

	fmt.Println(exec.Stdout)
	if exec.Stderr != nil {
		fmt.Fprintf(os.Stderr, "\033[90m%s\033[0m\n", *exec.Stderr)
	}
	if exec.TimeLimitExceeded {
		fmt.Fprintln(os.Stderr, "\033[33mtime limit exceeded\033[0m")
	}
	if !exec.DidNotCrash {
		return fmt.Errorf("program crashed after %dms", exec.Time)
	}
	return nil
}
