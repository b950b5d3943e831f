package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/driftguard/driftguard/internal/services"
)

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage cloud environments",
	}

	cmd.AddCommand(newEnvCreateCmd())
	cmd.AddCommand(newEnvListCmd())
	cmd.AddCommand(newEnvGetCmd())
	cmd.AddCommand(newEnvUpdateCmd())

	return cmd
}

func newEnvCreateCmd() *cobra.Command {
	var (
		orgID     int64
		provider  string
		region    string
		accountID string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a new environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Environments.Create(cmd.Context(), services.CreateEnvironmentInput{
				OrgID:     orgID,
				Name:      args[0],
				Provider:  provider,
				Region:    region,
				AccountID: accountID,
			})
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(env)
			}
			fmt.Printf("Environment %q created with ID %d (slug %s)\n", env.Name, env.ID, env.Slug)
			return nil
		},
	}

	cmd.Flags().Int64Var(&orgID, "org", 0, "organization ID (required)")
	cmd.Flags().StringVar(&provider, "provider", "", "cloud provider: aws, gcp, azure (required)")
	cmd.Flags().StringVar(&region, "region", "", "cloud region")
	cmd.Flags().StringVar(&accountID, "account", "", "cloud account or project ID")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("provider")

	return cmd
}

func newEnvListCmd() *cobra.Command {
	var orgID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List environments of an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			envs, err := app.Environments.List(cmd.Context(), orgID)
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(envs)
			}

			table := NewTable("ID", "NAME", "SLUG", "PROVIDER", "REGION", "ACTIVE", "READY")
			for _, env := range envs {
				table.AddRow(
					strconv.FormatInt(env.ID, 10),
					env.Name,
					env.Slug,
					env.Provider,
					env.Region,
					strconv.FormatBool(env.IsActive),
					strconv.FormatBool(env.ReadyForScan()),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int64Var(&orgID, "org", 0, "organization ID (required)")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

func newEnvGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid environment ID %q", args[0])
			}

			env, err := app.Environments.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printOutput(env)
		},
	}
}

func newEnvUpdateCmd() *cobra.Command {
	var (
		region    string
		accountID string
		active    bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid environment ID %q", args[0])
			}

			updates := map[string]interface{}{}
			if cmd.Flags().Changed("region") {
				updates["region"] = region
			}
			if cmd.Flags().Changed("account") {
				updates["account_id"] = accountID
			}
			if cmd.Flags().Changed("active") {
				updates["is_active"] = active
			}

			env, err := app.Environments.Update(cmd.Context(), id, updates)
			if err != nil {
				return err
			}
			return printOutput(env)
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "cloud region")
	cmd.Flags().StringVar(&accountID, "account", "", "cloud account or project ID")
	cmd.Flags().BoolVar(&active, "active", true, "whether the environment is scanned")

	return cmd
}
