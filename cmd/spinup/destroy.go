package main

import (
	"github.com/spf13/cobra"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy [machine-name]",
	Short: "Destroy machines in this directory's cluster",
	Long: `Destroy the named machine, or every machine in the current
directory's cluster when no name is given.

Each machine is shut down gracefully, force-stopped after the grace
period, undefined and its volumes deleted. Machines whose destroy
fails keep their record entry so a later destroy can retry them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}

		ctx := cmd.Context()
		rt, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := rt.ctrl.Destroy(ctx, name)
		if report != nil && len(report.Outcomes) == 0 && err == nil {
			cmd.Println("Nothing to destroy")
			return nil
		}
		printReport(report)
		return err
	},
}
