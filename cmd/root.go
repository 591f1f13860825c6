// SPDX-License-Identifier: GPL-3.0-only
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bascanada/forklift-ops/pkg/log"
)

var (
	configPath string
	logger     log.MyLoggerOptions

	// appLogger is set by the root pre-run hook.
	appLogger = log.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "forklift-ops",
	Short: "Inspect pipeline failures and re-dispatch corrected messages",
	Long: `forklift-ops looks up failure events in the search backend, aggregates them
per owner, marks them remediated and re-publishes messages to the queue broker
or the partitioned log.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: onCommandStart,
}

func onCommandStart(cmd *cobra.Command, _ []string) error {
	appLogger = log.ConfigureMyLogger(&logger)
	initColor(cmd.OutOrStdout())
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}

func currentLogger() *slog.Logger {
	return appLogger
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $FORKLIFT_OPS_CONFIG or ~/.forklift-ops/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logger.Path, "logging-path", "", "file to output logs of the application")
	rootCmd.PersistentFlags().StringVar(&logger.Level, "logging-level", "", "logging level to output INFO WARN ERROR DEBUG TRACE")
	rootCmd.PersistentFlags().BoolVar(&logger.Stdout, "logging-stdout", false, "output application log in the stdout")
	rootCmd.PersistentFlags().BoolVar(&logger.JSON, "logging-json", false, "emit application logs as JSON")

	_ = rootCmd.RegisterFlagCompletionFunc("logging-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(sendCmd)
}
