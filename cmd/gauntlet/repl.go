package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/gauntlet/internal/dispatch"
)

var replCmd = &cobra.Command{
	Use:   "repl <file>",
	Short: "Feed lines of input to a program interactively",
	Long: `Load a program and run it once per line entered, with the line as its input.
Use \n inside a line for multi-line input.

Examples:
  gauntlet repl sum.rb -l ruby`,
	Args: cobra.ExactArgs(1),
	RunE: runRepl,
}

func init() {
	replCmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Language or alias (required)")
	replCmd.Flags().StringVar(&versionFlag, "version", "", "Exact runtime version")
	replCmd.MarkFlagRequired("language")
	rootCmd.AddCommand(replCmd)
}

// interrupter cancels the request in flight, if any. It is shared between
// the signal goroutine and the input loop.
type interrupter struct {
	cancel atomic.Pointer[context.CancelFunc]
}

func (in *interrupter) set(cancel context.CancelFunc) { in.cancel.Store(&cancel) }

func (in *interrupter) clear() { in.cancel.Store(nil) }

// interrupt cancels the current request and reports whether there was one.
func (in *interrupter) interrupt() bool {
	if c := in.cancel.Load(); c != nil {
		(*c)()
		return true
	}
	return false
}

// replState is the program lines are fed to.
type replState struct {
	path     string
	code     string
	language string
	version  *string
}

func runRepl(cmd *cobra.Command, args []string) error {
	code, err := readSource(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	st := &replState{path: args[0], code: code, language: languageFlag}
	if versionFlag != "" {
		st.version = &versionFlag
	}

	fmt.Printf("\033[1mgauntlet repl\033[0m - %s (%s), profile %s\n", st.path, st.language, a.svc.Profile().Name)
	fmt.Println("Type /help for commands.")
	fmt.Println()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36min>\033[0m ",
		HistoryFile:     filepath.Join(os.TempDir(), "gauntlet_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	// Ctrl+C while a program runs stops waiting for it, not the whole app.
	var inflight interrupter
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			inflight.interrupt()
		}
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		if strings.HasPrefix(strings.TrimSpace(line), "/") {
			if quit := handleReplCommand(strings.TrimSpace(line), st); quit {
				return nil
			}
			continue
		}

		input := strings.ReplaceAll(line, `\n`, "\n")
		req := dispatch.Request{Code: st.code, Language: st.language, Version: st.version, Input: &input}

		reqCtx, cancel := context.WithCancel(cmd.Context())
		inflight.set(cancel)
		exec, err := a.svc.ExecuteCode(reqCtx, req)
		wasInterrupted := reqCtx.Err() != nil
		inflight.clear()
		cancel()

		if err != nil {
			if wasInterrupted {
				fmt.Println("(interrupted)")
				continue
			}
			fmt.Printf("\033[31merror: %s\033[0m\n\n", err)
			continue
		}

		fmt.Printf("\033[32mout>\033[0m %s\n", exec.Stdout)
		if exec.Stderr != nil {
			fmt.Printf("  \033[90m│ %s\033[0m\n", truncate(*exec.Stderr, 400))
		}
		switch {
		case exec.TimeLimitExceeded:
			fmt.Printf("  \033[33mtime limit exceeded (%dms)\033[0m\n", exec.Time)
		case !exec.DidNotCrash:
			fmt.Printf("  \033[33mcrashed (%dms)\033[0m\n", exec.Time)
		}
		fmt.Println()
	}
}

// handleReplCommand runs a slash command and reports whether to quit.
func handleReplCommand(input string, st *replState) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		fmt.Println("Goodbye!")
		return true
	case "/reload":
		code, err := readSource(st.path)
		if err != nil {
			fmt.Printf("\033[31merror: %s\033[0m\n\n", err)
			return false
		}
		st.code = code
		fmt.Printf("Reloaded %s.\n\n", st.path)
	case "/load":
		if len(fields) < 2 {
			fmt.Println("Usage: /load <file>")
			fmt.Println()
			return false
		}
		code, err := readSource(fields[1])
		if err != nil {
			fmt.Printf("\033[31merror: %s\033[0m\n\n", err)
			return false
		}
		st.path, st.code = fields[1], code
		fmt.Printf("Loaded %s.\n\n", st.path)
	case "/lang":
		if len(fields) < 2 {
			fmt.Printf("Language: %s\n\n", st.language)
			return false
		}
		st.language, st.version = fields[1], nil
		if len(fields) > 2 {
			v := fields[2]
			st.version = &v
		}
		fmt.Printf("Language set to %s.\n\n", st.language)
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help                 - Show this help")
		fmt.Println("  /reload               - Re-read the program from disk")
		fmt.Println("  /load <file>          - Switch to another program")
		fmt.Println("  /lang <lang> [ver]    - Switch language and optional version")
		fmt.Println("  /quit                 - Exit")
		fmt.Println()
	default:
		fmt.Printf("Unknown command: %s (try /help)\n\n", input)
	}
	return false
}
