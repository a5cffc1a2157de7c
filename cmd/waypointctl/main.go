package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var daemonURL string

var rootCmd = &cobra.Command{
	Use:   "waypointctl",
	Short: "waypointctl - inspect and steer a running waypoint daemon",
	Long: `waypointctl talks to the local waypoint daemon over its HTTP API:
visit history, the watched-site list, and manual cool-down blocks.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&daemonURL, "daemon", "http://127.0.0.1:7713", "Base URL of the waypoint daemon")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sitesCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(statusCmd)
}
