package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/driftguard/driftguard/internal/services"
)

func newIaCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iac",
		Short: "Manage IaC sources and declared resources",
	}

	cmd.AddCommand(newIaCRegisterCmd())
	cmd.AddCommand(newIaCSyncCmd())
	cmd.AddCommand(newIaCImportStateCmd())
	cmd.AddCommand(newIaCListCmd())

	return cmd
}

func newIaCRegisterCmd() *cobra.Command {
	var (
		orgID   int64
		url     string
		branch  string
		iacType string
	)

	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register an IaC source repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := app.IaC.RegisterRepository(cmd.Context(), services.RegisterRepositoryInput{
				OrgID:   orgID,
				Name:    args[0],
				URL:     url,
				Branch:  branch,
				IaCType: iacType,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Source repository %q registered with ID %d\n", repo.Name, repo.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&orgID, "org", 0, "organization ID (required)")
	cmd.Flags().StringVar(&url, "url", "", "repository URL (required)")
	cmd.Flags().StringVar(&branch, "branch", "main", "branch to track")
	cmd.Flags().StringVar(&iacType, "type", "terraform", "IaC type")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func newIaCSyncCmd() *cobra.Command {
	var (
		repoID   int64
		envID    int64
		revision string
	)

	cmd := &cobra.Command{
		Use:   "sync <dir>",
		Short: "Parse Terraform sources and sync declared resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := app.IaC.SyncDirectory(cmd.Context(), repoID, envID, args[0], revision)
			if err != nil {
				return err
			}

			fmt.Printf("Synced %d declared resources\n", count)
			return nil
		},
	}

	cmd.Flags().Int64Var(&repoID, "repo", 0, "source repository ID (required)")
	cmd.Flags().Int64Var(&envID, "env", 0, "environment ID (required)")
	cmd.Flags().StringVar(&revision, "revision", "", "source revision being synced")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("env")

	return cmd
}

func newIaCImportStateCmd() *cobra.Command {
	var (
		repoID   int64
		envID    int64
		revision string
	)

	cmd := &cobra.Command{
		Use:   "import-state <file>",
		Short: "Import declared resources from 'terraform show -json' output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			count, err := app.IaC.ImportState(cmd.Context(), repoID, envID, content, revision)
			if err != nil {
				return err
			}

			fmt.Printf("Imported %d declared resources\n", count)
			return nil
		},
	}

	cmd.Flags().Int64Var(&repoID, "repo", 0, "source repository ID (required)")
	cmd.Flags().Int64Var(&envID, "env", 0, "environment ID (required)")
	cmd.Flags().StringVar(&revision, "revision", "", "source revision being imported")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("env")

	return cmd
}

func newIaCListCmd() *cobra.Command {
	var envID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List declared resources of an environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			resources, err := app.IaC.ListDeclared(cmd.Context(), envID)
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(resources)
			}

			table := NewTable("ID", "RESOURCE", "TYPE", "REVISION")
			for _, res := range resources {
				table.AddRow(
					strconv.FormatInt(res.ID, 10),
					res.ResourceID,
					res.ResourceType,
					truncate(res.SourceRevision, 12),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int64Var(&envID, "env", 0, "environment ID (required)")
	_ = cmd.MarkFlagRequired("env")

	return cmd
}
