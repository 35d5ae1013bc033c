package main

import (
	"fmt"
	"os"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [target]",
	Short: "Describe the flattened plan",
	Long:  `Prints the steps of the target in execution order as a markdown report, rendered when stdout is a terminal.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := runOptions(cmd, args)
		engine, closer, err := cli.OpenEngine(opts)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer closer()

		dag, err := engine.Build(opts.Target)
		if err != nil {
			fmt.Printf("Error flattening plan: %v\n", err)
			os.Exit(1)
		}
		if err := tui.WritePlanReport(os.Stdout, engine.Name, dag); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
