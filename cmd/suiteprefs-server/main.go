// Package main is the entry point for the suiteprefs-server application.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "suiteprefs",
	Short: "Theme, language and telemetry preferences for a suite of apps",
	Long: `suiteprefs keeps the user-facing preferences of an application suite:
theme mode and custom palettes, the interface language, and consent for
analytics and error tracking.

Run "suiteprefs serve" to expose them over HTTP and a websocket change stream.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./suiteprefs.yaml, ./configs, /etc/suiteprefs)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(rekeyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
