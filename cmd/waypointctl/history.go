package main

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"waypoint/pkg/client"
)

var historySite string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the visit history, grouped by day",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historySite, "site", "", "Only show visits to this site")
}

func runHistory(cmd *cobra.Command, args []string) error {
	c := client.New(daemonURL)
	history, err := c.History(cmd.Context())
	if err != nil {
		return err
	}

	if historySite != "" {
		filtered := history[:0]
		for _, visit := range history {
			if hostMatches(visit.URL, historySite) {
				filtered = append(filtered, visit)
			}
		}
		history = filtered
	}

	if len(history) == 0 {
		fmt.Println("No visits recorded.")
		return nil
	}

	// Group by calendar day, most recent day first
	byDay := map[string][]client.VisitRecord{}
	for _, visit := range history {
		day := visit.Timestamp.Local().Format("Mon, 02 Jan 2006")
		byDay[day] = append(byDay[day], visit)
	}
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		return byDay[days[i]][0].Timestamp.After(byDay[days[j]][0].Timestamp)
	})

	for _, day := range days {
		total := 0
		for _, visit := range byDay[day] {
			total += visit.Duration
		}
		fmt.Printf("%s - %d minutes total\n", day, total)
		for _, visit := range byDay[day] {
			fmt.Printf("  %s  %-4dmin  %s\n", visit.Timestamp.Local().Format("15:04"), visit.Duration, visit.URL)
			fmt.Printf("    reason: %s\n", visit.Reason)
			if visit.Reflection != nil {
				fmt.Printf("    reflection: %s\n", *visit.Reflection)
			}
		}
		fmt.Println()
	}
	return nil
}

func hostMatches(rawURL, site string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	site = strings.ToLower(site)
	return host == site || strings.HasSuffix(host, "."+site)
}
