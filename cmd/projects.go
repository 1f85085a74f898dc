package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccstats/internal/cache"
	"ccstats/internal/cli"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Per-project usage breakdown",
	RunE:  runProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(_ *cobra.Command, _ []string) error {
	res, err := loadStats()
	if err != nil {
		return err
	}

	if res.status == cache.StatusEmpty || len(res.stats.ByProject) == 0 {
		fmt.Println("\n  No usage found in the selected range.")
		return nil
	}

	fmt.Println()
	fmt.Print(cli.RenderProjects(res.stats))
	fmt.Println(cli.RenderCacheStatus(res.status))
	return nil
}
