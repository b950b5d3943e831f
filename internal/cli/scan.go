package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "scan [environment-id]",
		Short: "Run drift detection against an environment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				results, err := app.Scans.ScanAllActive(cmd.Context())
				if err != nil {
					return err
				}
				return printOutput(results)
			}

			if len(args) == 0 {
				return fmt.Errorf("environment ID required unless --all is set")
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid environment ID %q", args[0])
			}

			result, err := app.Scans.ScanEnvironment(cmd.Context(), id)
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(result)
			}

			fmt.Printf("Scanned %d resources: %d opened, %d refreshed, %d closed, %d unchanged, %d failed\n",
				result.Scanned, result.Opened, result.Refreshed, result.Closed, result.Unchanged, len(result.Failures))
			for _, f := range result.Failures {
				fmt.Printf("  failed %s: %s\n", f.ResourceID, f.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "scan every active environment")

	return cmd
}
