package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	outputFormat string
	app          *App
)

var rootCmd = &cobra.Command{
	Use:   "driftguard",
	Short: "DriftGuard - infrastructure drift detection and remediation",
	Long: `DriftGuard compares the infrastructure declared in IaC repositories
against live cloud state, tracks drift events through their lifecycle,
classifies probable causes and recommends remediations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		app, err = newApp()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.AddCommand(newEnvCmd())
	rootCmd.AddCommand(newIaCCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newDriftCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newRecommendCmd())
	rootCmd.AddCommand(newWorkerCmd())
}

func initViper() {
	viper.SetEnvPrefix("DRIFTGUARD")
	viper.AutomaticEnv()
	viper.SetDefault("output", "table")
}

func getOutputFormat() string {
	if outputFormat != "" && outputFormat != "table" {
		return outputFormat
	}
	return viper.GetString("output")
}
