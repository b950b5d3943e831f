package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/driftguard/driftguard/internal/domain/recommendation"
)

func newRecommendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Generate and manage remediation recommendations",
	}

	cmd.AddCommand(newRecommendGenerateCmd())
	cmd.AddCommand(newRecommendListCmd())
	cmd.AddCommand(newRecommendImplementCmd())
	cmd.AddCommand(newRecommendCancelCmd())
	cmd.AddCommand(newRecommendFeedbackCmd())

	return cmd
}

func newRecommendGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <event-id>",
		Short: "Generate a recommendation from an event's cause analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid event ID %q", args[0])
			}

			rec, err := app.Recommendations.Generate(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printOutput(rec)
		},
	}
}

func newRecommendListCmd() *cobra.Command {
	var (
		eventID int64
		active  bool
		limit   int
		offset  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, total, err := app.Recommendations.List(cmd.Context(), recommendation.Filter{
				EventID:    eventID,
				ActiveOnly: active,
			}, limit, offset)
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(map[string]interface{}{"total": total, "recommendations": recs})
			}

			table := NewTable("ID", "EVENT", "TYPE", "PRIORITY", "URGENCY", "TITLE", "ACTIVE")
			for _, r := range recs {
				table.AddRow(
					strconv.FormatInt(r.ID, 10),
					strconv.FormatInt(r.EventID, 10),
					r.Type,
					formatPriority(r.Priority),
					fmt.Sprintf("%.2f", r.UrgencyScore()),
					truncate(r.Title, 40),
					strconv.FormatBool(r.Active()),
				)
			}
			table.Render()
			fmt.Printf("\n%d of %d recommendations\n", len(recs), total)
			return nil
		},
	}

	cmd.Flags().Int64Var(&eventID, "event", 0, "filter by drift event ID")
	cmd.Flags().BoolVar(&active, "active", false, "only active recommendations")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")

	return cmd
}

func newRecommendImplementCmd() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "implement <id>",
		Short: "Mark a recommendation implemented",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid recommendation ID %q", args[0])
			}

			rec, err := app.Recommendations.Implement(cmd.Context(), id, actor, nil)
			if err != nil {
				return err
			}

			fmt.Printf("Recommendation %d (%s) marked implemented\n", rec.ID, rec.Type)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "cli", "who implemented it")

	return cmd
}

func newRecommendCancelCmd() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an active recommendation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid recommendation ID %q", args[0])
			}

			if err := app.Recommendations.Cancel(cmd.Context(), id, actor); err != nil {
				return err
			}

			fmt.Printf("Recommendation %d cancelled\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "cli", "who is cancelling")

	return cmd
}

func newRecommendFeedbackCmd() *cobra.Command {
	var (
		feedbackType string
		rating       int
		comments     string
		userID       int64
	)

	cmd := &cobra.Command{
		Use:   "feedback <id>",
		Short: "Record feedback on a recommendation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid recommendation ID %q", args[0])
			}

			fbID, err := app.Recommendations.AddFeedback(cmd.Context(), &recommendation.Feedback{
				RecommendationID: id,
				FeedbackType:     feedbackType,
				Rating:           rating,
				Comments:         comments,
				UserID:           userID,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Feedback %d recorded\n", fbID)
			return nil
		},
	}

	cmd.Flags().StringVar(&feedbackType, "type", "", "feedback type (required)")
	cmd.Flags().IntVar(&rating, "rating", 0, "rating 1-5")
	cmd.Flags().StringVar(&comments, "comments", "", "free-form comments")
	cmd.Flags().Int64Var(&userID, "user", 0, "user giving the feedback")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}
