package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"waypoint/pkg/client"
)

var blockMinutes int

var blockCmd = &cobra.Command{
	Use:   "block <url>",
	Short: "Put a watched site into a temporary cool-down",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(daemonURL)
		if err := c.Block(cmd.Context(), args[0], blockMinutes); err != nil {
			return err
		}
		fmt.Printf("Blocked for %d minutes.\n", blockMinutes)
		return nil
	},
}

func init() {
	blockCmd.Flags().IntVar(&blockMinutes, "minutes", 15, "Cool-down length in minutes")
}
