package main

import (
	"fmt"
	"os"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the plan for consistency",
	Long: `Flattens every group and lowers the root group to ninja without writing it.
Reports broken references, cycles, conflicting outputs and unreachable groups.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(cmd); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Plan is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command) error {
	opts := runOptions(cmd, nil)
	engine, closer, err := cli.OpenEngine(opts)
	if err != nil {
		return err
	}
	defer closer()

	overrides, err := cli.ParseVars(opts.Vars)
	if err != nil {
		return err
	}
	ninjaOpts, err := engine.NinjaOptions(overrides)
	if err != nil {
		return err
	}
	report, err := validator.ValidatePlan(engine.Registry(), engine.Root(), ninjaOpts)
	if err != nil {
		return err
	}

	fmt.Printf("%d steps reachable from '%s'.\n", report.Steps, report.Root)
	for _, g := range report.Unreachable {
		fmt.Printf("warning: group '%s' is not reachable from '%s'\n", g, report.Root)
	}
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
