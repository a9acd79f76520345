package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var runtimesCmd = &cobra.Command{
	Use:   "runtimes",
	Short: "List runtimes installed on the engine",
	RunE:  runRuntimes,
}

func init() {
	rootCmd.AddCommand(runtimesCmd)
}

func runRuntimes(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	rts, err := a.svc.ListRuntimes(cmd.Context())
	if err != nil {
		return err
	}

	sort.SliceStable(rts, func(i, j int) bool { return rts[i].Language < rts[j].Language })

	fmt.Printf("%-16s %-12s %s\n", "LANGUAGE", "VERSION", "ALIASES")
	fmt.Println(strings.Repeat("─", 60))
	for _, rt := range rts {
		fmt.Printf("%-16s %-12s %s\n", rt.Language, rt.Version, strings.Join(rt.Aliases, ", "))
	}
	return nil
}
