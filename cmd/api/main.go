package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sitecms/api/internal/config"
)

var (
	cfgFile   string
	appConfig config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sitecms-api",
	Short: "Content API for the organisation website",
	Long: `sitecms-api serves the public site content and the operator admin
surface. Without a subcommand it runs the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(cfgFile)
		if err != nil {
			return err
		}
		appConfig = cfg
		return appConfig.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML file with environment-style keys")
	rootCmd.AddCommand(serveCmd, migrateCmd, operatorCmd, archiveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
