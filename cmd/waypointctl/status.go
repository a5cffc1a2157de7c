package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the daemon's health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, daemonURL+"/health/ready", nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("daemon unreachable: %w", err)
		}
		defer resp.Body.Close()

		var ready struct {
			Status string `json:"status"`
			Checks map[string]struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			} `json:"checks"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
			return err
		}

		fmt.Printf("daemon: %s\n", ready.Status)
		for name, check := range ready.Checks {
			if check.Error != "" {
				fmt.Printf("  %s: %s (%s)\n", name, check.Status, check.Error)
			} else {
				fmt.Printf("  %s: %s\n", name, check.Status)
			}
		}
		return nil
	},
}
