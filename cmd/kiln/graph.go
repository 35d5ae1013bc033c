package main

import (
	"fmt"
	"os"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [target]",
	Short: "Export the plan graph visualization",
	Long:  `Flattens the target and outputs a Mermaid diagram (graph TD) with one subgraph per group.`,
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
		fmt.Print(graph.GenerateMermaid(dag, nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
