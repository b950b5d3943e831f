package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/driftguard/driftguard/internal/domain/drift"
)

func newDriftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Inspect and resolve drift events",
	}

	cmd.AddCommand(newDriftListCmd())
	cmd.AddCommand(newDriftGetCmd())
	cmd.AddCommand(newDriftResolveCmd())
	cmd.AddCommand(newDriftSummaryCmd())

	return cmd
}

func newDriftListCmd() *cobra.Command {
	var (
		envID      int64
		resourceID string
		unresolved bool
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drift events",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, total, err := app.Drifts.List(cmd.Context(), drift.Filter{
				EnvironmentID: envID,
				ResourceID:    resourceID,
				Unresolved:    unresolved,
			}, limit, offset)
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(map[string]interface{}{"total": total, "events": events})
			}

			table := NewTable("ID", "RESOURCE", "TYPE", "SEVERITY", "DETECTED", "STATUS")
			for _, e := range events {
				table.AddRow(
					strconv.FormatInt(e.ID, 10),
					truncate(e.ResourceID, 40),
					e.DriftType,
					formatScore(e.SeverityScore),
					e.DetectedAt.Format("2006-01-02 15:04"),
					formatResolution(e.IsResolved(), e.ResolutionType),
				)
			}
			table.Render()
			fmt.Printf("\n%d of %d events\n", len(events), total)
			return nil
		},
	}

	cmd.Flags().Int64Var(&envID, "env", 0, "filter by environment ID")
	cmd.Flags().StringVar(&resourceID, "resource", "", "filter by resource identifier")
	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "only unresolved events")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")

	return cmd
}

func newDriftGetCmd() *cobra.Command {
	var withChanges bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a drift event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid event ID %q", args[0])
			}

			event, err := app.Drifts.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			if !withChanges {
				return printOutput(event)
			}

			changes, err := app.Drifts.GetChanges(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printOutput(map[string]interface{}{"event": event, "changes": changes})
		},
	}

	cmd.Flags().BoolVar(&withChanges, "changes", false, "include the field-level change set")

	return cmd
}

func newDriftResolveCmd() *cobra.Command {
	var (
		resolution string
		notes      string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve an open drift event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid event ID %q", args[0])
			}

			event, err := app.Drifts.Resolve(cmd.Context(), id, resolution, notes, actor)
			if err != nil {
				return err
			}

			fmt.Printf("Drift event %d resolved as %s (open for %s)\n", id, event.ResolutionType, event.Duration())
			return nil
		},
	}

	cmd.Flags().StringVar(&resolution, "type", "", "resolution type: auto_revert, codify_iac, accepted, escalated (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "resolution notes")
	cmd.Flags().StringVar(&actor, "actor", "cli", "who is resolving")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newDriftSummaryCmd() *cobra.Command {
	var envID int64

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize drift events for an environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := app.Drifts.Summary(cmd.Context(), envID)
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(summary)
			}

			fmt.Printf("Total: %d  Resolved: %d  Unresolved: %d  Avg severity (unresolved): %.2f\n",
				summary.Total, summary.Resolved, summary.Unresolved, summary.AvgSeverity)
			return nil
		},
	}

	cmd.Flags().Int64Var(&envID, "env", 0, "environment ID (required)")
	_ = cmd.MarkFlagRequired("env")

	return cmd
}
