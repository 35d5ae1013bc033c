package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of kiln",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if banner, _ := cmd.Flags().GetBool("banner"); banner {
			tui.PrintBanner(out, tui.Profile(out))
		}
		fmt.Fprintf(out, "kiln version %s\n", strings.TrimSpace(kiln.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("banner", false, "Print the banner first")
}
