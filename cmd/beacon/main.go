// main.go — beacon CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "beacon",
	Short:        "Beacon browser control plane",
	Long:         "Beacon — an AI-assistant-facing control plane for driving a remote browser through its debugging protocol, with policy enforcement at every privileged boundary.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("beacon version %s\n", version))

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDiscoverCmd())
}
