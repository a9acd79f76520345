package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFlag  string
	profileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "gauntlet",
	Short: "Gauntlet - run code against test suites on a remote engine",
	Long: `Gauntlet forwards source code to a Piston-compatible execution engine,
normalizes what comes back and runs programs against ordered test suites.

It can serve an HTTP API, run programs and suites from the command line,
and keeps a history of test runs.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ./gauntlet.yaml or ~/.gauntlet/gauntlet.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Engine profile (default, args, legacy)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
