package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccstats/internal/cache"
	"ccstats/internal/cli"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Per-day usage breakdown",
	RunE:  runDaily,
}

func init() {
	rootCmd.AddCommand(dailyCmd)
}

func runDaily(_ *cobra.Command, _ []string) error {
	res, err := loadStats()
	if err != nil {
		return err
	}

	if res.status == cache.StatusEmpty || len(res.stats.ByDate) == 0 {
		fmt.Println("\n  No usage found in the selected range.")
		return nil
	}

	fmt.Println()
	fmt.Print(cli.RenderDaily(res.stats))
	fmt.Println(cli.RenderCacheStatus(res.status))
	return nil
}
