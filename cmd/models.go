package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccstats/internal/cache"
	"ccstats/internal/cli"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Per-model usage breakdown",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(_ *cobra.Command, _ []string) error {
	res, err := loadStats()
	if err != nil {
		return err
	}

	if res.status == cache.StatusEmpty || len(res.stats.ByModel) == 0 {
		fmt.Println("\n  No usage found in the selected range.")
		return nil
	}

	fmt.Println()
	fmt.Print(cli.RenderModels(res.stats))
	fmt.Println(cli.RenderCacheStatus(res.status))
	return nil
}
