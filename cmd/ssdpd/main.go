// Ssdpd is an SSDP discovery daemon.
//
// It joins the SSDP multicast group, answers M-SEARCH requests for the
// services configured in its config file, and records every advertisement
// it hears. Discovered services can be listed once (scan), followed live
// (watch), or served over HTTP while running as a daemon (run).
//
// Usage:
//
//	ssdpd [command] [flags]
//
// See 'ssdpd --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdpd/internal/logging"
	"github.com/muurk/ssdpd/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

// Global flags
var (
	configPath string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "ssdpd",
	Short: "SSDP discovery daemon",
	Long: `An SSDP (Simple Service Discovery Protocol) discovery daemon.

ssdpd listens on the SSDP multicast group, answers search requests for the
services you configure, and keeps a registry of every service announced on
the local network.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(cmd)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is the OS config dir, e.g. ~/.config/ssdpd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr (use with watch)")

	rootCmd.AddCommand(versionCmd)
}

// initLogging applies --log-level, then the environment. The run command
// logs at info by default since it has no other output.
func initLogging(cmd *cobra.Command) error {
	level := logLevel
	if level == "" {
		level = os.Getenv(logging.LogLevelEnvVar)
	}
	if level == "" && cmd.Name() == "run" {
		level = "info"
	}
	logging.SetOutput(logFile)
	if err := logging.Initialize(level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", version.Product, version.Full())
		fmt.Printf("SERVER header: %s\n", version.ServerHeader())
	},
}
