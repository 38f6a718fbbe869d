package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel string // Log verbosity level
	envFile  string // .env file with KONSTRUKT_* settings
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "konstrukt",
	Short: "Tick core of the konstrukt engine: job scheduling and simulation updates",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadDotEnv(envFile)
		level := logLevel
		if !cmd.Flags().Changed("log") {
			level = envString(envLog, level)
		}
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", level)
		}
		logrus.SetLevel(parsed)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up shared flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "File with KONSTRUKT_* environment settings (ignored if missing)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(traceCmd)
}
