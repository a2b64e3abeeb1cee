package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pinger/internal/config"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "pinger",
	Short: "Measure latency and loss to a set of targets and ship them to a sink",
	// configuration errors are reported by main
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and targets file, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validate(cmd.OutOrStdout())
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the table definition for the configured SQL sink",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSchema(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Optional config file (toml, yaml or json)")
	config.BindFlags(rootCmd.PersistentFlags(), v)
	rootCmd.AddCommand(validateCmd, schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pinger:", err)
		os.Exit(1)
	}
}
