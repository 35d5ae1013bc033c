package main

import (
	"fmt"
	"os"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/spf13/cobra"
)

var ninjaCmd = &cobra.Command{
	Use:   "ninja [target]",
	Short: "Write the plan as a ninja file",
	Long: `Serializes the target group to build.ninja next to the plan.
The output path can be set with -o or the ` + cli.NinjaOutputEnv + ` environment variable; "-" writes to stdout.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := runOptions(cmd, args)
		output, _ := cmd.Flags().GetString("output")

		path, err := cli.WriteNinja(opts, output)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if path != "-" {
			fmt.Fprintf(os.Stderr, "wrote %s\n", path)
		}
	},
}

func init() {
	rootCmd.AddCommand(ninjaCmd)
	ninjaCmd.Flags().StringP("output", "o", "", "Output file")
}
