package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spinup/internal/output"
)

var (
	outputFormat string
	noHeaders    bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show this directory's cluster",
	Long: `Show the machines recorded for the current directory together with
the hypervisor's live view of their domains.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   Full cluster status as YAML
  -o json   Full cluster status as JSON`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}

		ctx := cmd.Context()
		rt, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		status, err := rt.ctrl.Status(ctx)
		if err != nil {
			return err
		}
		if status == nil {
			cmd.Println("No machines recorded for this directory")
			return nil
		}

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}

		result, err := formatter.FormatStatus(output.NewClusterView(status))
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, yaml, json)")
	statusCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "Omit table headers")
}
