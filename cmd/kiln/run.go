package main

import (
	"fmt"
	"os"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [target]",
	Short: "Execute a plan directly",
	Long: `Runs the target group, or the plan's root group, one step at a time.
Commands whose outputs are still fresh are not run again.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := runOptions(cmd, args)
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		opts.Watch, _ = cmd.Flags().GetBool("watch")
		opts.MetricsFile, _ = cmd.Flags().GetString("metrics-file")

		if err := cli.Execute(opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("headless", false, "Print step lines only, without the plan overview")
	runCmd.Flags().BoolP("watch", "w", false, "Run again whenever the plan or a source input changes")
	runCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file after the run")
}
