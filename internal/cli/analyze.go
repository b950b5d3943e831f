package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/driftguard/driftguard/internal/services"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		actor      string
		deployment bool
		force      bool
		history    bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <event-id>",
		Short: "Classify the probable cause of a drift event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid event ID %q", args[0])
			}

			if history {
				analyses, err := app.Analyses.History(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printOutput(analyses)
			}

			input := services.AnalyzeInput{
				Actor:           actor,
				DeploymentEvent: deployment,
			}

			var result interface{}
			if force {
				result, err = app.Analyses.Reanalyze(cmd.Context(), id, input)
			} else {
				result, err = app.Analyses.Analyze(cmd.Context(), id, input)
			}
			if err != nil {
				return err
			}

			return printOutput(result)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "actor attributed to the change, if known")
	cmd.Flags().BoolVar(&deployment, "deployment", false, "a deployment event was recorded near the change")
	cmd.Flags().BoolVar(&force, "force", false, "supersede an existing analysis and classify again")
	cmd.Flags().BoolVar(&history, "history", false, "show all analyses of the event instead of classifying")

	return cmd
}
