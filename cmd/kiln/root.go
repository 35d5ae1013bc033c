package main

import (
	"fmt"
	"os"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kiln",
	Short: "Kiln runs declarative build plans or turns them into ninja files",
	Long: `Kiln flattens a build plan into a dependency graph. The graph can be executed
directly, one command at a time, or serialized to a build.ninja file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("plan", "f", ".", "Plan document, or a directory containing kiln.yaml")
	rootCmd.PersistentFlags().StringArray("var", nil, "Set a plan variable (KEY=VALUE, repeatable)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level on stderr (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("tools", "", "Tool alias file (default: tools.yaml next to the plan)")
	rootCmd.PersistentFlags().String("redis", "", "Share fingerprints through Redis (redis://host:port/db)")
	rootCmd.PersistentFlags().String("fingerprint", "stat", "Freshness check: stat or content")
}

// runOptions reads the persistent flags; a positional argument names the target.
func runOptions(cmd *cobra.Command, args []string) cli.RunOptions {
	flags := cmd.Flags()
	opts := cli.RunOptions{}
	opts.PlanPath, _ = flags.GetString("plan")
	opts.Vars, _ = flags.GetStringArray("var")
	opts.LogLevel, _ = flags.GetString("log-level")
	opts.ToolsPath, _ = flags.GetString("tools")
	opts.RedisURL, _ = flags.GetString("redis")
	opts.Fingerprint, _ = flags.GetString("fingerprint")
	if len(args) > 0 {
		opts.Target = args[0]
	}
	return opts
}
