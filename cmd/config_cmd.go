package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccstats/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Default days:  %d\n", cfg.General.DefaultDays)
	fmt.Printf("    Log directory: %s\n", config.LogDir(cfg))
	fmt.Println()

	fmt.Println("  [Cache]")
	fmt.Printf("    TTL:          %s\n", cfg.Cache.TTL())
	fmt.Printf("    Stale window: %s\n", cfg.Cache.StaleWindow())
	fmt.Printf("    Database:     %s\n", config.DBPath())
	fmt.Println()

	fmt.Println("  [Sync]")
	fmt.Printf("    Batch size: %d\n", cfg.Sync.BatchSize)
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:  %s\n", daemonAddr(cfg))
	fmt.Printf("    Interval: %s\n", daemonInterval(cfg))
	fmt.Println()

	fmt.Println("  [Pricing]")
	if len(cfg.Pricing.Overrides) == 0 {
		fmt.Println("    Overrides: none (built-in rate table)")
	} else {
		fmt.Printf("    Overrides: %d model(s)\n", len(cfg.Pricing.Overrides))
		for name := range cfg.Pricing.Overrides {
			fmt.Printf("      - %s\n", name)
		}
	}

	return nil
}
