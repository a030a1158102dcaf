// Package cli is the ladderd command tree: run (supervisor), __worker
// (hidden re-exec target), status, config validate, and version. The root
// command has no action of its own; invoked without a subcommand it prints
// help.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const banner = `
  _            _     _               _
 | |  __ _  __| | __| | ___ _ __   __| |
 | | / _' |/ _' |/ _' |/ _ \ '__| / _' |
 | || (_| | (_| | (_| |  __/ |   | (_| |
 |_| \__,_|\__,_|\__,_|\___|_|    \__,_|
`

func printBanner() {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintln(os.Stderr, banner)
}

var (
	shmName          string
	instance         string
	configPath       string
	systemConfigPath string
	userConfigPath   string
)

var rootCmd = &cobra.Command{
	Use:           "ladderd",
	Short:         "Soft-real-time ladder-logic PLC runtime",
	Long:          "ladderd runs a scan-cycle ladder-logic program against GPIO I/O, exposes it over Modbus/TCP, and coordinates with an external vision process through a shared-memory mailbox.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the command tree.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&instance, "instance", "default", "Instance name, used to derive the shared memory segment path")
	rootCmd.PersistentFlags().StringVar(&shmName, "shm-name", "", "Explicit shared memory segment path, overriding --instance")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the unified ladder-logic configuration file (spec §6.2 unified mode, tried first)")
	rootCmd.PersistentFlags().StringVar(&systemConfigPath, "system-config", "", "Path to the split-mode system rung file (spec §6.2 split mode, fallback if --config is unset or fails to load)")
	rootCmd.PersistentFlags().StringVar(&userConfigPath, "user-config", "", "Path to the split-mode user rung/timer/counter file (spec §6.2 split mode)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func shmPath() string {
	if shmName != "" {
		return shmName
	}
	return "/dev/shm/ladderd." + instance
}
