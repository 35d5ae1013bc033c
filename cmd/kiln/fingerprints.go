package main

import (
	"fmt"
	"os"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/spf13/cobra"
)

var fingerprintsCmd = &cobra.Command{
	Use:   "fingerprints",
	Short: "Manage recorded fingerprints",
	Long:  `List or forget the fingerprints that decide whether a command is fresh.`,
}

var fingerprintsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded write-sets",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cli.ListFingerprints(cmd.Context(), runOptions(cmd, nil), os.Stdout); err != nil {
			fmt.Printf("Error listing fingerprints: %v\n", err)
			os.Exit(1)
		}
	},
}

var fingerprintsRmCmd = &cobra.Command{
	Use:   "rm <output>...",
	Short: "Forget the commands writing the given outputs",
	Long:  `Forgets the commands writing the given outputs. With --all, forgets every command.`,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		if len(args) == 0 && !all {
			fmt.Println("Error: name at least one output, or pass --all")
			os.Exit(1)
		}
		if all {
			args = nil
		}

		n, err := cli.ForgetFingerprints(cmd.Context(), runOptions(cmd, nil), args)
		if err != nil {
			fmt.Printf("Error removing fingerprints: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed %d fingerprints\n", n)
	},
}

func init() {
	rootCmd.AddCommand(fingerprintsCmd)
	fingerprintsCmd.AddCommand(fingerprintsLsCmd)
	fingerprintsCmd.AddCommand(fingerprintsRmCmd)
	fingerprintsRmCmd.Flags().Bool("all", false, "Forget every fingerprint")
}
