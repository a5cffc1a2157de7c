package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"waypoint/pkg/client"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Manage the watched-site list",
}

var sitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched sites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(daemonURL)
		sites, err := c.Sites(cmd.Context())
		if err != nil {
			return err
		}
		if len(sites) == 0 {
			fmt.Println("No watched sites.")
			return nil
		}
		for _, site := range sites {
			fmt.Println(site)
		}
		return nil
	},
}

var sitesAddCmd = &cobra.Command{
	Use:   "add <domain>",
	Short: "Add a domain to the watched list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(daemonURL)
		sites, err := c.Sites(cmd.Context())
		if err != nil {
			return err
		}
		updated, err := c.UpdateSites(cmd.Context(), append(sites, args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("Watching %d sites.\n", len(updated))
		return nil
	},
}

var sitesRemoveCmd = &cobra.Command{
	Use:   "remove <domain>",
	Short: "Remove a domain from the watched list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(daemonURL)
		sites, err := c.Sites(cmd.Context())
		if err != nil {
			return err
		}
		kept := sites[:0]
		removed := false
		for _, site := range sites {
			if site == args[0] {
				removed = true
				continue
			}
			kept = append(kept, site)
		}
		if !removed {
			return fmt.Errorf("%q is not in the watched list", args[0])
		}
		if _, err := c.UpdateSites(cmd.Context(), kept); err != nil {
			return err
		}
		fmt.Printf("Removed %s.\n", args[0])
		return nil
	},
}

func init() {
	sitesCmd.AddCommand(sitesListCmd)
	sitesCmd.AddCommand(sitesAddCmd)
	sitesCmd.AddCommand(sitesRemoveCmd)
}
