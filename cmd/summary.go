package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccstats/internal/cache"
	"ccstats/internal/cli"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Usage summary with costs",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(_ *cobra.Command, _ []string) error {
	res, err := loadStats()
	if err != nil {
		return err
	}

	if res.status == cache.StatusEmpty {
		fmt.Println("\n  No usage found in the selected range.")
		fmt.Println("  Use Claude Code first, then come back!")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("CLAUDE USAGE  %s", rangeLabel(res.cfg))))
	fmt.Println()
	fmt.Print(cli.RenderSummary(res.stats, res.status))
	return nil
}
